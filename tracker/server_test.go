package tracker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/pagewatch/tracker/internal/report"
)

func newServerHarness(t *testing.T) (*harness, *Tracker, *httptest.Server, *Metrics) {
	t.Helper()
	h := newHarness(t, "v1")
	path := filepath.Join(t.TempDir(), "index.html")
	m := NewMetrics()
	tr := h.build(t, func(o *Options) {
		o.Writer = report.NewFileWriter(path, "", o.Logger)
		o.ReportPath = path
		o.Metrics = m
	})
	srv := httptest.NewServer(NewServer(tr, m, tr.log).Handler())
	t.Cleanup(srv.Close)
	return h, tr, srv, m
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestServer_Healthz(t *testing.T) {
	_, _, srv, _ := newServerHarness(t)
	resp, body := get(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("healthz = %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestServer_ReportBeforeAndAfterFirstCycle(t *testing.T) {
	// WHAT: / is 404 until a report exists, then serves it.
	_, tr, srv, _ := newServerHarness(t)

	resp, _ := get(t, srv.URL+"/")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("before first cycle: status %d, want 404", resp.StatusCode)
	}

	if _, err := tr.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	resp, body := get(t, srv.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "<table") || !strings.Contains(body, "https://example.com/") {
		t.Errorf("unexpected report body: %.200s", body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("report served without CSP")
	}
}

func TestServer_HeadReport(t *testing.T) {
	_, tr, srv, _ := newServerHarness(t)
	tr.RunCycle(context.Background())
	req, _ := http.NewRequest(http.MethodHead, srv.URL+"/", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("HEAD / = %d", resp.StatusCode)
	}
}

func TestServer_Stats(t *testing.T) {
	_, tr, srv, _ := newServerHarness(t)
	tr.RunCycle(context.Background())
	tr.RunCycle(context.Background())

	resp, body := get(t, srv.URL+"/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st Stats
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatal(err)
	}
	if st.Cycles != 2 || st.Changes != 1 || st.Unchanged != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.State != "idle" || st.URL != "https://example.com/" || st.Fingerprint == "" {
		t.Errorf("stats = %+v", st)
	}
	if st.LastCycleID != "cycle-2" {
		t.Errorf("last cycle = %q", st.LastCycleID)
	}
}

func TestServer_Metrics(t *testing.T) {
	_, tr, srv, _ := newServerHarness(t)
	tr.RunCycle(context.Background())

	resp, body := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`pagewatch_cycles_total{result="changed"} 1`,
		"pagewatch_cycle_duration_seconds",
		"pagewatch_report_records",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.observeCycle("changed", 0)
	m.observeError("fetch")
	m.observeNotification(nil)
	if m.Registry() != nil {
		t.Error("nil metrics returned a registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler = %d, want 404", rec.Code)
	}
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	_, tr, _, m := newServerHarness(t)
	s := NewServer(tr, m, tr.log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe: %v", err)
	}
}
