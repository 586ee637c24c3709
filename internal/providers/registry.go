// Package providers holds clients for the external domain-data APIs.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"domwatch/internal/watch"
	logx "domwatch/pkg/logx"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Registry is an HTTP client for the domain-registry API. It implements
// watch.EventProvider.
//
// Endpoints:
//
//	GET {base}/domains/{name}
//	GET {base}/domains/{name}/activities
//	GET {base}/domains/{name}/listings
//	GET {base}/domains/{name}/offers
type Registry struct {
	base    string
	timeout time.Duration
	client  *http.Client
	log     logx.Logger
}

func NewRegistry(cfg Config, log logx.Logger) (*Registry, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("providers: registry base URL is empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("providers: invalid registry base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		base:    base,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log.With(logx.String("comp", "providers.registry")),
	}, nil
}

type domainDoc struct {
	Name     string    `json:"name"`
	Owner    string    `json:"owner"`
	Expiry   time.Time `json:"expiry"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
}

type activityDoc struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	At       time.Time `json:"at"`
}

type listingDoc struct {
	ID       string    `json:"id"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	At       time.Time `json:"at"`
}

type offerDoc struct {
	ID       string    `json:"id"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	At       time.Time `json:"at"`
}

// DomainData returns nil (and no error) for a domain the registry does not
// know about.
func (r *Registry) DomainData(ctx context.Context, domain string) (*watch.DomainData, error) {
	var doc domainDoc
	found, err := r.getJSON(ctx, r.domainPath(domain), &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &watch.DomainData{
		Name:     doc.Name,
		Owner:    doc.Owner,
		Expiry:   doc.Expiry,
		Price:    doc.Price,
		Currency: doc.Currency,
	}, nil
}

func (r *Registry) DomainActivities(ctx context.Context, domain string) ([]watch.Activity, error) {
	var docs []activityDoc
	if _, err := r.getJSON(ctx, r.domainPath(domain)+"/activities", &docs); err != nil {
		return nil, err
	}
	out := make([]watch.Activity, 0, len(docs))
	for _, d := range docs {
		out = append(out, watch.Activity{ID: d.ID, Type: d.Type, Price: d.Price, Currency: d.Currency, At: d.At})
	}
	return out, nil
}

func (r *Registry) DomainListings(ctx context.Context, domain string) ([]watch.Listing, error) {
	var docs []listingDoc
	if _, err := r.getJSON(ctx, r.domainPath(domain)+"/listings", &docs); err != nil {
		return nil, err
	}
	out := make([]watch.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, watch.Listing{ID: d.ID, Price: d.Price, Currency: d.Currency, At: d.At})
	}
	return out, nil
}

func (r *Registry) DomainOffers(ctx context.Context, domain string) ([]watch.Offer, error) {
	var docs []offerDoc
	if _, err := r.getJSON(ctx, r.domainPath(domain)+"/offers", &docs); err != nil {
		return nil, err
	}
	out := make([]watch.Offer, 0, len(docs))
	for _, d := range docs {
		out = append(out, watch.Offer{ID: d.ID, Price: d.Price, Currency: d.Currency, At: d.At})
	}
	return out, nil
}

func (r *Registry) domainPath(domain string) string {
	return r.base + "/domains/" + url.PathEscape(domain)
}

// getJSON fetches u and decodes into v. It returns found=false for a 404
// without touching v.
func (r *Registry) getJSON(ctx context.Context, u string, v any) (found bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("registry: %s returned %s", req.URL.Path, resp.Status)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return false, fmt.Errorf("registry: decode %s: %w", req.URL.Path, err)
	}
	return true, nil
}
