// Package rate provides the COP/USD exchange rate (TRM) used to convert incomes.
package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-person-etl/internal/logging"
	"go-person-etl/internal/metrics"
	"go-person-etl/pkg/utils"
)

const (
	// DefaultFallback is returned whenever the remote source cannot be used.
	DefaultFallback = 4200.00
	// DefaultTimeout bounds one remote fetch.
	DefaultTimeout = 10 * time.Second

	MinValid = 3000.0
	MaxValid = 6000.0
)

// Source says where a quoted rate came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
	SourceExplicit Source = "explicit"
)

// Quote is a resolved rate with its provenance.
type Quote struct {
	Rate   float64   `json:"rate"`
	Source Source    `json:"source"`
	Valid  bool      `json:"valid"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}

// Provider fetches the current rate, consulting the cache first.
// It never returns an error: any failure yields the fallback rate.
type Provider struct {
	url      string
	client   *http.Client
	fallback float64
	cache    Cache
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Provider.
type Option func(*Provider)

// WithCache enables read-through caching.
func WithCache(c Cache) Option {
	return func(p *Provider) {
		if c != nil {
			p.cache = c
		}
	}
}

// WithFallback overrides DefaultFallback.
func WithFallback(rate float64) Option {
	return func(p *Provider) {
		if rate > 0 {
			p.fallback = rate
		}
	}
}

// WithHTTPClient replaces the HTTP client; its timeout still applies.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.log = logging.Component(l, "rate") }
}

// WithMetrics records lookups by source.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// NewProvider creates a provider for the given endpoint.
func NewProvider(url string, timeout time.Duration, opts ...Option) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Provider{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		fallback: DefaultFallback,
		cache:    NoCache(),
		log:      logging.Component(nil, "rate"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentRate returns the rate to use for a batch.
func (p *Provider) CurrentRate(ctx context.Context) float64 {
	return p.Lookup(ctx).Rate
}

// Lookup resolves the rate from cache, then the remote source, then the fallback.
func (p *Provider) Lookup(ctx context.Context) Quote {
	log := logging.FromContext(ctx, p.log)

	if r, ok := p.cache.Read(); ok {
		p.metrics.RateLookup(string(SourceCache))
		return Quote{Rate: r, Source: SourceCache, Valid: Validate(r), At: time.Now()}
	}

	r, err := p.fetch(ctx)
	if err != nil {
		log.Warn("rate fetch failed, using fallback",
			zap.String("url", p.url),
			zap.Float64("fallback", p.fallback),
			zap.Error(err))
		p.metrics.RateLookup(string(SourceFallback))
		return Quote{Rate: p.fallback, Source: SourceFallback, Valid: Validate(p.fallback), At: time.Now(), Error: err.Error()}
	}

	if !Validate(r) {
		log.Warn("fetched rate outside expected range",
			zap.Float64("rate", r),
			zap.Float64("min", MinValid),
			zap.Float64("max", MaxValid))
	}
	p.cache.Write(r)
	p.metrics.RateLookup(string(SourceRemote))
	log.Info("rate fetched", zap.Float64("rate", r))
	return Quote{Rate: r, Source: SourceRemote, Valid: Validate(r), At: time.Now()}
}

// rateRow is the subset of the remote payload that is read.
type rateRow struct {
	Valor json.RawMessage `json:"valor"`
}

func (p *Provider) fetch(ctx context.Context) (float64, error) {
	if p.url == "" {
		return 0, fmt.Errorf("no rate source configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var rows []rateRow
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rows); err != nil {
		return 0, fmt.Errorf("decode rate payload: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("rate payload is empty")
	}
	return parseValor(rows[0].Valor)
}

// parseValor accepts the value as a JSON number or a numeric string.
func parseValor(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("rate payload has no valor field")
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	v, ok := utils.ParseNumber(strings.TrimSpace(text))
	if !ok {
		return 0, fmt.Errorf("valor %s is not numeric", strconv.Quote(string(raw)))
	}
	if v <= 0 {
		return 0, fmt.Errorf("valor %v is not positive", v)
	}
	return v, nil
}

// Validate reports whether rate is within the expected COP/USD range.
// It is advisory only.
func Validate(rate float64) bool {
	return rate >= MinValid && rate <= MaxValid
}

// Convert converts an amount with rate, rounded to two decimals.
func Convert(amount, rate float64) float64 {
	return utils.Round2(amount * rate)
}
