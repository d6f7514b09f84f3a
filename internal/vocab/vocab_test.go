package vocab

import (
	"strings"
	"testing"
)

func TestLocalizeGender(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		mapped bool
	}{
		{"Male", Masculine, true},
		{" m ", Masculine, true},
		{"FEMALE", Feminine, true},
		{"f", Feminine, true},
		{"Other", "Other", false},
		{"", "", false},
		{" nonbinary ", " nonbinary ", false},
	}
	for _, tt := range tests {
		got, ok := LocalizeGender(tt.in)
		if got != tt.want || ok != tt.mapped {
			t.Errorf("LocalizeGender(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.mapped)
		}
	}
}

func TestLocalizeIllness(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		mapped bool
	}{
		{"Yes", Affirmative, true},
		{"y", Affirmative, true},
		{"TRUE", Affirmative, true},
		{"1", Affirmative, true},
		{"No", Negative, true},
		{" n ", Negative, true},
		{"false", Negative, true},
		{"0", Negative, true},
		{"maybe", Negative, false},
		{"", Negative, false},
		{"Sí", Negative, false},
	}
	for _, tt := range tests {
		got, ok := LocalizeIllness(tt.in)
		if got != tt.want || ok != tt.mapped {
			t.Errorf("LocalizeIllness(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.mapped)
		}
	}
}

func TestUnmappedIllnessNeverAffirmativeOrIdentity(t *testing.T) {
	for _, in := range []string{"maybe", "2", "yess", "positive", "SI"} {
		got, _ := LocalizeIllness(in)
		if got == Affirmative || got == in {
			t.Errorf("LocalizeIllness(%q) = %q", in, got)
		}
	}
}

func TestTrackerWarnings(t *testing.T) {
	tr := NewTracker()
	tr.Gender("Male")
	tr.Gender("Other")
	tr.Gender("Other")
	tr.Illness("maybe")
	tr.Illness("yes")

	if got := tr.UnmappedGender(); len(got) != 1 || got[0] != "Other" {
		t.Fatalf("UnmappedGender = %v", got)
	}
	w := tr.Warnings()
	if len(w) != 2 {
		t.Fatalf("warnings = %v", w)
	}
	if !strings.Contains(w[0], `"Other"`) || !strings.Contains(w[1], `"maybe"`) {
		t.Fatalf("warnings do not name values: %v", w)
	}

	if len(NewTracker().Warnings()) != 0 {
		t.Fatal("fresh tracker should have no warnings")
	}
}
