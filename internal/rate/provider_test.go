package rate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func rateServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLookupRemoteSuccess(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{"string valor", `[{"valor":"4012.35","vigenciadesde":"2026-05-01T00:00:00.000"}]`, 4012.35},
		{"numeric valor", `[{"valor":3987.1}]`, 3987.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := rateServer(t, http.StatusOK, tt.body)
			cache := NewFileCache(filepath.Join(t.TempDir(), "trm.json"), time.Hour, nil)
			p := NewProvider(srv.URL, time.Second, WithCache(cache))

			q := p.Lookup(context.Background())
			if q.Source != SourceRemote || q.Rate != tt.want {
				t.Fatalf("quote = %+v, want remote %v", q, tt.want)
			}
			if got, ok := cache.Read(); !ok || got != tt.want {
				t.Fatalf("cache not written through: %v %v", got, ok)
			}
		})
	}
}

func TestLookupFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"empty array", http.StatusOK, `[]`},
		{"malformed json", http.StatusOK, `{"valor":`},
		{"missing valor", http.StatusOK, `[{"other":"1"}]`},
		{"non numeric valor", http.StatusOK, `[{"valor":"abc"}]`},
		{"object not array", http.StatusOK, `{"valor":"4000"}`},
		{"negative valor", http.StatusOK, `[{"valor":"-1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := rateServer(t, tt.status, tt.body)
			p := NewProvider(srv.URL, time.Second)

			if got := p.CurrentRate(context.Background()); got != 4200.00 {
				t.Fatalf("CurrentRate = %v, want fallback 4200", got)
			}
			if q := p.Lookup(context.Background()); q.Source != SourceFallback || q.Error == "" {
				t.Fatalf("quote = %+v, want fallback with error", q)
			}
		})
	}
}

func TestLookupUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProvider(url, 200*time.Millisecond)
	if got := p.CurrentRate(context.Background()); got != DefaultFallback {
		t.Fatalf("CurrentRate = %v, want %v", got, DefaultFallback)
	}
}

func TestLookupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, 50*time.Millisecond, WithFallback(4300))
	start := time.Now()
	if got := p.CurrentRate(context.Background()); got != 4300 {
		t.Fatalf("CurrentRate = %v, want custom fallback 4300", got)
	}
	if time.Since(start) > time.Second {
		t.Fatal("fetch was not bounded by the timeout")
	}
}

func TestLookupCacheHitSkipsNetwork(t *testing.T) {
	srv, hits := rateServer(t, http.StatusOK, `[{"valor":"4500"}]`)
	cache := NewFileCache(filepath.Join(t.TempDir(), "trm.json"), time.Hour, nil)
	cache.Write(3950)

	p := NewProvider(srv.URL, time.Second, WithCache(cache))
	q := p.Lookup(context.Background())
	if q.Source != SourceCache || q.Rate != 3950 {
		t.Fatalf("quote = %+v, want cached 3950", q)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatalf("remote called %d times on cache hit", *hits)
	}
}

func TestFallbackNotCached(t *testing.T) {
	srv, _ := rateServer(t, http.StatusBadGateway, ``)
	cache := NewFileCache(filepath.Join(t.TempDir(), "trm.json"), time.Hour, nil)
	p := NewProvider(srv.URL, time.Second, WithCache(cache))

	p.CurrentRate(context.Background())
	if _, ok := cache.Read(); ok {
		t.Fatal("fallback rate must not be written to the cache")
	}
}

func TestValidate(t *testing.T) {
	cases := map[float64]bool{
		2999.99: false,
		3000:    true,
		4200:    true,
		6000:    true,
		6000.01: false,
	}
	for r, want := range cases {
		if got := Validate(r); got != want {
			t.Errorf("Validate(%v) = %v, want %v", r, got, want)
		}
	}
}

func TestConvert(t *testing.T) {
	if got := Convert(1000, 4000); got != 4000000 {
		t.Errorf("Convert = %v", got)
	}
	if got := Convert(12.345, 4012.35); got != 49532.46 {
		t.Errorf("Convert rounding = %v", got)
	}
}
