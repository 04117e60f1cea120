// Package verify enforces the upload size ceiling with a metadata probe.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	probeTimeout      = 10 * time.Second
	probeMaxRedirects = 5
)

// TooLargeError reports a declared payload size over the ceiling.
// SizeMB is quoted verbatim in the user-facing rejection.
type TooLargeError struct {
	SizeMB  float64
	LimitMB int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("media size %.1f MB exceeds %d MB limit", e.SizeMB, e.LimitMB)
}

// Verifier HEAD-checks media URLs against the upload ceiling.
type Verifier struct {
	client   *http.Client
	maxBytes int64
	limitMiB int
}

// New creates a Verifier with the given ceiling in MiB.
func New(maxMiB int) *Verifier {
	return &Verifier{
		client: &http.Client{
			Timeout: probeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= probeMaxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		maxBytes: int64(maxMiB) * 1024 * 1024,
		limitMiB: maxMiB,
	}
}

// Check probes the media URL's declared size. A declared size over the
// ceiling returns *TooLargeError. A failed probe or missing size header
// is NOT a rejection: the declared size is advisory and the destination
// platform enforces the real limit on upload.
func (v *Verifier) Check(ctx context.Context, mediaURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, mediaURL, nil)
	if err != nil {
		return nil
	}

	resp, err := v.client.Do(req)
	if err != nil {
		slog.Debug("size probe failed, accepting unverified", "url", mediaURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.ContentLength <= 0 {
		slog.Debug("no declared size, accepting unverified", "url", mediaURL)
		return nil
	}

	if resp.ContentLength > v.maxBytes {
		return &TooLargeError{
			SizeMB:  float64(resp.ContentLength) / (1024 * 1024),
			LimitMB: v.limitMiB,
		}
	}
	return nil
}
