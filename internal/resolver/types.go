// Package resolver turns a TikTok link into a direct watermark-free
// media URL by trying an ordered chain of third-party extractors.
package resolver

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Result is one successful extraction.
type Result struct {
	MediaURL string `json:"media_url"`
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
}

// Provider is one extraction strategy. Resolve returns ErrNoData (possibly
// wrapped) when the upstream answered but had nothing usable.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, videoURL string) (*Result, error)
}

// ErrNoData signals an upstream response without a usable media URL.
var ErrNoData = errors.New("no media data in response")

// ErrExhausted signals that every provider in the chain failed. This is
// an expected outcome when upstream services rate-limit or reject.
var ErrExhausted = errors.New("all providers exhausted")

const (
	providerTimeout = 30 * time.Second

	// Desktop UA: several extraction services reject default Go clients.
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func newProviderClient() *http.Client {
	return &http.Client{Timeout: providerTimeout}
}
