package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchPlain_Success(t *testing.T) {
	// WHAT: Basic HTTP GET returns the body untouched.
	// WHY: The tracker fingerprints these exact bytes.
	body := "Hello, World!"
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent"})
	got, err := f.FetchPlain(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got) != body {
		t.Errorf("body: got %q", got)
	}
	if gotUA != "test-agent" {
		t.Errorf("user agent: got %q", gotUA)
	}
}

func TestFetchPlain_Non2xx(t *testing.T) {
	// WHAT: 404 and 500 surface as ErrStatus.
	// WHY: A non-2xx page must not be fingerprinted as new content.
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			w.Write([]byte("error page"))
		}))

		f := New(Config{})
		_, err := f.FetchPlain(context.Background(), srv.URL)
		srv.Close()
		if !errors.Is(err, ErrStatus) {
			t.Fatalf("status %d: expected ErrStatus, got %v", code, err)
		}
	}
}

func TestFetchPlain_Timeout(t *testing.T) {
	// WHAT: Fetch respects the configured timeout.
	// WHY: A hanging site must not stall the poll loop forever.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 50 * time.Millisecond})
	if _, err := f.FetchPlain(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetchPlain_MaxBytes(t *testing.T) {
	// WHAT: A body over MaxBytes is an error, never a truncated success.
	// WHY: Pages differing only past the limit would otherwise share a
	// fingerprint and the change would go unnoticed.
	body := strings.Repeat("a", 64) + "OLD"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 64})
	got, err := f.FetchPlain(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no body, got %d bytes", len(got))
	}
}

func TestFetchPlain_MaxBytesExact(t *testing.T) {
	// WHAT: A body of exactly MaxBytes is returned whole.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 100})
	got, err := f.FetchPlain(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 100 {
		t.Errorf("body length: got %d, want 100", len(got))
	}
}

func TestFetchPlain_BlockPrivate(t *testing.T) {
	// WHAT: With BlockPrivate, loopback targets are refused before any request.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	f := New(Config{BlockPrivate: true})
	_, err := f.FetchPlain(context.Background(), srv.URL)
	if !errors.Is(err, ErrPrivateAddress) {
		t.Fatalf("expected ErrPrivateAddress, got %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{"http://192.168.1.1/data", ErrPrivateAddress},
		{"http://169.254.169.254/latest/", ErrPrivateAddress},
		{"http://[::1]/", ErrPrivateAddress},
		{"ftp://example.com/file", ErrUnsafeScheme},
		{"https://93.184.216.34/", nil},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.url, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: got %v, want %v", tt.url, err, tt.wantErr)
		}
	}

	if err := ValidateURL("http:///nohost"); err == nil {
		t.Error("expected error for URL without host")
	}
}
