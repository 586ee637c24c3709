package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logx "domwatch/pkg/logx"
)

func newTestRegistry(t *testing.T, handler http.Handler) *Registry {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r, err := NewRegistry(Config{BaseURL: srv.URL + "/v1/"}, logx.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestNewRegistryRejectsEmptyBase(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry(Config{BaseURL: "  "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestDomainData(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/domains/example.com", func(w http.ResponseWriter, req *http.Request) {
		if got := req.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"example.com","owner":"0xabc","price":2.5,"currency":"ETH","expiry":"2027-01-02T00:00:00Z"}`))
	})
	r := newTestRegistry(t, mux)

	d, err := r.DomainData(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("DomainData: %v", err)
	}
	if d == nil || d.Name != "example.com" || d.Owner != "0xabc" || d.Price != 2.5 || d.Currency != "ETH" {
		t.Fatalf("DomainData = %+v", d)
	}
	if d.Expiry.Year() != 2027 {
		t.Fatalf("expiry = %v", d.Expiry)
	}
}

func TestDomainDataNotFound(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, http.NotFoundHandler())
	d, err := r.DomainData(context.Background(), "missing.com")
	if err != nil {
		t.Fatalf("DomainData: %v", err)
	}
	if d != nil {
		t.Fatalf("unknown domain should yield nil data, got %+v", d)
	}
}

func TestDomainDataServerError(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	_, err := r.DomainData(context.Background(), "example.com")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v, want 500 status error", err)
	}
}

func TestDomainDataBadJSON(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"name": `))
	}))
	if _, err := r.DomainData(context.Background(), "example.com"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDomainActivities(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/domains/example.com/activities", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`[
  {"id":"a1","type":"transfer","price":1.5,"currency":"ETH","at":"2026-08-01T10:00:00Z"},
  {"id":"a2","type":"sale","price":3.0,"currency":"ETH","at":"2026-08-02T10:00:00Z"}
]`))
	})
	r := newTestRegistry(t, mux)

	acts, err := r.DomainActivities(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("DomainActivities: %v", err)
	}
	if len(acts) != 2 {
		t.Fatalf("len = %d, want 2", len(acts))
	}
	if acts[0].ID != "a1" || acts[0].Type != "transfer" || acts[0].Price != 1.5 {
		t.Fatalf("acts[0] = %+v", acts[0])
	}
}

func TestListingsAndOffersNotFoundAreEmpty(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, http.NotFoundHandler())

	ls, err := r.DomainListings(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("DomainListings: %v", err)
	}
	if len(ls) != 0 {
		t.Fatalf("listings = %v, want empty", ls)
	}

	os, err := r.DomainOffers(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("DomainOffers: %v", err)
	}
	if len(os) != 0 {
		t.Fatalf("offers = %v, want empty", os)
	}
}

func TestDomainPathEscaping(t *testing.T) {
	t.Parallel()

	var gotPath string
	r := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.EscapedPath()
		_, _ = w.Write([]byte(`{}`))
	}))

	if _, err := r.DomainData(context.Background(), "a b/c.com"); err != nil {
		t.Fatalf("DomainData: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/v1/domains/") || strings.Contains(gotPath[len("/v1/domains/"):], "/") {
		t.Fatalf("path = %q, domain should be escaped into a single segment", gotPath)
	}
}

func TestRequestHonorsContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	r := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		<-block
	}))
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := r.DomainData(ctx, "example.com"); err == nil {
		t.Fatal("expected context deadline error")
	}
}
