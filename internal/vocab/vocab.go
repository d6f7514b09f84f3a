// Package vocab maps source-vocabulary field values to the localized output vocabulary.
package vocab

import (
	"fmt"
	"sort"
	"strings"
)

// Localized output values.
const (
	Masculine   = "Masculino"
	Feminine    = "Femenino"
	Affirmative = "Sí"
	Negative    = "No"
)

var genderTable = map[string]string{
	"male":   Masculine,
	"m":      Masculine,
	"female": Feminine,
	"f":      Feminine,
}

var illnessTable = map[string]string{
	"yes":   Affirmative,
	"y":     Affirmative,
	"true":  Affirmative,
	"1":     Affirmative,
	"no":    Negative,
	"n":     Negative,
	"false": Negative,
	"0":     Negative,
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// LocalizeGender maps a gender value. Unmapped values are returned
// unchanged with ok=false.
func LocalizeGender(raw string) (string, bool) {
	if v, ok := genderTable[normalize(raw)]; ok {
		return v, true
	}
	return raw, false
}

// LocalizeIllness maps an illness flag. Unmapped values become Negative
// with ok=false; they are never passed through.
func LocalizeIllness(raw string) (string, bool) {
	if v, ok := illnessTable[normalize(raw)]; ok {
		return v, true
	}
	return Negative, false
}

// KnownGender reports whether raw is in the gender vocabulary.
func KnownGender(raw string) bool {
	_, ok := genderTable[normalize(raw)]
	return ok
}

// KnownIllness reports whether raw is in the illness vocabulary.
func KnownIllness(raw string) bool {
	_, ok := illnessTable[normalize(raw)]
	return ok
}

// Tracker localizes values for a batch and remembers what was unmapped.
// It is not safe for concurrent use.
type Tracker struct {
	gender  map[string]int
	illness map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{gender: map[string]int{}, illness: map[string]int{}}
}

// Gender localizes raw and records it if unmapped.
func (t *Tracker) Gender(raw string) string {
	v, ok := LocalizeGender(raw)
	if !ok {
		t.gender[raw]++
	}
	return v
}

// Illness localizes raw and records it if unmapped.
func (t *Tracker) Illness(raw string) string {
	v, ok := LocalizeIllness(raw)
	if !ok {
		t.illness[raw]++
	}
	return v
}

// UnmappedGender lists distinct unmapped gender values, sorted.
func (t *Tracker) UnmappedGender() []string { return sortedKeys(t.gender) }

// UnmappedIllness lists distinct unmapped illness values, sorted.
func (t *Tracker) UnmappedIllness() []string { return sortedKeys(t.illness) }

// Warnings renders one warning per field that had unmapped values.
func (t *Tracker) Warnings() []string {
	var out []string
	if vals := t.UnmappedGender(); len(vals) > 0 {
		out = append(out, fmt.Sprintf("unmapped gender values kept as-is: %s", quoteAll(vals)))
	}
	if vals := t.UnmappedIllness(); len(vals) > 0 {
		out = append(out, fmt.Sprintf("unmapped illness values set to %q: %s", Negative, quoteAll(vals)))
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quoteAll(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(q, ", ")
}
