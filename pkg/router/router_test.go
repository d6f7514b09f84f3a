package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func named(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(name))
	}
}

func TestDispatch(t *testing.T) {
	r := New(nil)
	r.GET("/api/executions", named("list"))
	r.GET("/api/executions/*", named("one"))
	r.GET("/api/executions/*/logs", named("logs"))
	r.POST("/api/run-etl", named("run"))
	r.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("metrics")) }))

	tests := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/api/executions", 200, "list"},
		{http.MethodGet, "/api/executions/7", 200, "one"},
		{http.MethodGet, "/api/executions/7/logs", 200, "logs"},
		{http.MethodPost, "/api/run-etl", 200, "run"},
		{http.MethodGet, "/metrics", 200, "metrics"},
		{http.MethodGet, "/api/run-etl", 405, ""},
		{http.MethodDelete, "/api/executions/7", 405, ""},
		{http.MethodGet, "/api/unknown", 404, ""},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("code = %d, want %d", rec.Code, tc.code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tc.body)
			}
		})
	}
}

func TestMatchWildcardRoute(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/api/download/json", "/api/download/*", true},
		{"/api/download/a/b", "/api/download/*", true},
		{"/api/download", "/api/download/*", false},
		{"/api/download/", "/api/download/*", false},
		{"/api/executions/3/logs", "/api/executions/*/logs", true},
		{"/api/executions/3/other", "/api/executions/*/logs", false},
		{"/swagger/index.html", "/swagger/*", true},
	}
	for _, tc := range tests {
		if got := matchWildcardRoute(tc.path, tc.pattern); got != tc.want {
			t.Errorf("matchWildcardRoute(%q, %q) = %v", tc.path, tc.pattern, got)
		}
	}
}

func TestRequestIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := New(zap.New(core))
	r.GET("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) || fields["path"] != "/health" || fields["method"] != "GET" {
		t.Errorf("fields = %v", fields)
	}
}
