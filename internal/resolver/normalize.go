package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// shortLinkRe matches the redirect-style share domains that need one
// upstream hop to reach the canonical /@user/video/<id> form.
var (
	shortLinkRe = regexp.MustCompile(`^(?:https?://)?(?:vm|vt|t)\.tiktok\.com/`)
	schemeRe    = regexp.MustCompile(`^https?://`)
)

const (
	normalizeTimeout      = 10 * time.Second
	normalizeMaxRedirects = 5
)

// Normalizer resolves short share links to their canonical long form.
type Normalizer struct {
	client *http.Client
}

// NewNormalizer creates a Normalizer with bounded redirects and timeout.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		client: &http.Client{
			Timeout: normalizeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= normalizeMaxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

// Normalize resolves a short link to its final location. Non-short links
// pass through unchanged, and so does the input on any failure; a link
// we cannot normalize may still resolve through a provider.
func (n *Normalizer) Normalize(ctx context.Context, rawURL string) string {
	if !shortLinkRe.MatchString(rawURL) {
		return rawURL
	}

	target := rawURL
	if !schemeRe.MatchString(target) {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Debug("short link resolution failed", "url", rawURL, "error", err)
		return rawURL
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if final == "" {
		return rawURL
	}
	return final
}
