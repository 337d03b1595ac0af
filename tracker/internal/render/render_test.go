package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazyhaar/pagewatch/tracker/internal/fetch"
)

func TestNew_Backends(t *testing.T) {
	// WHAT: Each backend name yields its type without launching a browser.
	// WHY: Chrome must start lazily, so config errors surface at startup
	// and a tracker that never sees a change never spawns Chrome.
	cases := []struct {
		backend string
		check   func(Renderer) bool
	}{
		{"", func(r Renderer) bool { _, ok := r.(*Rod); return ok }},
		{BackendRod, func(r Renderer) bool { _, ok := r.(*Rod); return ok }},
		{BackendChromedp, func(r Renderer) bool { _, ok := r.(*Chromedp); return ok }},
		{BackendHTTP, func(r Renderer) bool { _, ok := r.(*HTTP); return ok }},
	}
	for _, tc := range cases {
		r, err := New(Config{Backend: tc.backend})
		if err != nil {
			t.Fatalf("%q: %v", tc.backend, err)
		}
		if !tc.check(r) {
			t.Errorf("%q: got %T", tc.backend, r)
		}
		if rr, ok := r.(*Rod); ok && rr.browser != nil {
			t.Errorf("%q: browser launched eagerly", tc.backend)
		}
		r.Close()
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(Config{Backend: "selenium"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.Backend != BackendRod || c.Timeout != 30*time.Second || c.RecycleInterval != 4*time.Hour || c.Logger == nil {
		t.Errorf("defaults = %+v", c)
	}
}

func TestHTTP_FetchRendered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>hi</p></body></html>"))
	}))
	defer srv.Close()

	r, err := New(Config{Backend: BackendHTTP})
	if err != nil {
		t.Fatal(err)
	}
	body, err := r.FetchRendered(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<html><body><p>hi</p></body></html>" {
		t.Errorf("body = %q", body)
	}
}

func TestHTTP_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r, _ := New(Config{Backend: BackendHTTP, Plain: fetch.New(fetch.Config{})})
	_, err := r.FetchRendered(context.Background(), srv.URL)
	if !errors.Is(err, fetch.ErrStatus) {
		t.Errorf("err = %v, want ErrStatus", err)
	}
}

func TestRod_ClosedRefusesWork(t *testing.T) {
	r := newRod(Config{Logger: nil})
	r.cfg.defaults()
	r.log = r.cfg.Logger
	r.Close()
	if _, err := r.FetchRendered(context.Background(), "https://example.com"); err == nil {
		t.Error("closed renderer accepted work")
	}
}

func TestRod_HungChromeBoundedByTimeout(t *testing.T) {
	// WHAT: A Chrome endpoint that never answers the handshake fails the
	// call once Timeout elapses.
	// WHY: Launch and connect count against the render deadline; a stuck
	// browser must not stall the poll loop.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	r, err := New(Config{
		Backend:   BackendRod,
		RemoteURL: "ws://" + srv.Listener.Addr().String(),
		Timeout:   200 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	start := time.Now()
	_, err = r.FetchRendered(context.Background(), "https://example.com")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call took %v, want about 200ms", elapsed)
	}
	if rr := r.(*Rod); rr.browser != nil {
		t.Error("abandoned launch was kept as the live browser")
	}
}

func TestRod_CancelledContextSkipsLaunch(t *testing.T) {
	r := newRod(Config{})
	r.cfg.defaults()
	r.log = r.cfg.Logger
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.FetchRendered(ctx, "https://example.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if r.browser != nil {
		t.Error("browser launched for a cancelled call")
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "xhr": true}
	cases := map[string]bool{
		"Image":      true,
		"Font":       true,
		"Stylesheet": false,
		"Media":      false,
		"XHR":        true,
		"Document":   false,
	}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("shouldBlock(%q) = %v, want %v", typ, got, want)
		}
	}
}
