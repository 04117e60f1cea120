package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// retryAttempts is the total tries per provider (first call + retries).
	retryAttempts = 2

	// retryBaseDelay is the backoff before the second attempt; it doubles
	// for each further attempt.
	retryBaseDelay = time.Second
)

// Chain tries providers strictly in order. The first well-formed result
// short-circuits; a provider that exhausts its retries is logged and the
// chain moves on.
type Chain struct {
	norm      *Normalizer
	providers []Provider
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewChain creates a Chain over the given providers, in priority order.
func NewChain(norm *Normalizer, providers ...Provider) *Chain {
	return &Chain{
		norm:      norm,
		providers: providers,
		sleep:     sleepCtx,
	}
}

// FromNames builds the provider list from config names, skipping
// unknown entries with a warning.
func FromNames(names []string) []Provider {
	var out []Provider
	for _, name := range names {
		switch name {
		case "tikwm":
			out = append(out, NewTikWM())
		case "snapvid":
			out = append(out, NewSnapVid())
		case "tikdown":
			out = append(out, NewTikDown())
		case "mobile":
			out = append(out, NewMobile())
		default:
			slog.Warn("unknown provider in config, skipping", "name", name)
		}
	}
	return out
}

// Resolve normalizes the link and walks the provider chain. Returns
// ErrExhausted when every provider failed; that is an expected outcome
// with unreliable upstreams, not a bug.
func (c *Chain) Resolve(ctx context.Context, videoURL string) (*Result, error) {
	canonical := c.norm.Normalize(ctx, videoURL)
	if canonical != videoURL {
		slog.Debug("short link normalized", "from", videoURL, "to", canonical)
	}

	for _, p := range c.providers {
		res, err := c.tryProvider(ctx, p, canonical)
		if err == nil {
			slog.Info("video resolved", "provider", p.Name(), "author", res.Author)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("resolve %s: %w", videoURL, ctx.Err())
		}
		slog.Warn("provider failed, falling back", "provider", p.Name(), "error", err)
	}

	return nil, fmt.Errorf("resolve %s: %w", videoURL, ErrExhausted)
}

// tryProvider runs one provider with bounded retry and exponential
// backoff. The final attempt's error propagates.
func (c *Chain) tryProvider(ctx context.Context, p Provider, videoURL string) (*Result, error) {
	delay := retryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		res, err := p.Resolve(ctx, videoURL)
		if err == nil && res != nil && res.MediaURL != "" {
			return res, nil
		}
		if err == nil {
			err = ErrNoData
		}
		lastErr = err

		if attempt < retryAttempts {
			slog.Debug("provider attempt failed, retrying",
				"provider", p.Name(), "attempt", attempt, "delay", delay, "error", err)
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
			delay *= 2
		}
	}

	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
