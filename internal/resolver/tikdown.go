package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const tikdownDefaultURL = "https://api.tikdown.org/v1/video"

// TikDown calls a JSON GET API: the link goes in a query parameter and
// the watermark-free URL comes back under video.no_watermark.
type TikDown struct {
	client  *http.Client
	baseURL string
}

// NewTikDown creates the TikDown provider.
func NewTikDown() *TikDown {
	return &TikDown{client: newProviderClient(), baseURL: tikdownDefaultURL}
}

func (p *TikDown) Name() string { return "tikdown" }

type tikdownResponse struct {
	Status string `json:"status"`
	Video  struct {
		NoWatermark string `json:"no_watermark"`
		Title       string `json:"title"`
		Author      string `json:"author"`
	} `json:"video"`
}

// Resolve issues GET ?url=<link>&hd=1 and expects status "success".
func (p *TikDown) Resolve(ctx context.Context, videoURL string) (*Result, error) {
	q := url.Values{"url": {videoURL}, "hd": {"1"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tikdown request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tikdown status %d", resp.StatusCode)
	}

	var out tikdownResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tikdown response: %w", err)
	}

	if out.Status != "success" || out.Video.NoWatermark == "" {
		return nil, fmt.Errorf("tikdown status %q: %w", out.Status, ErrNoData)
	}

	return &Result{
		MediaURL: out.Video.NoWatermark,
		Title:    out.Video.Title,
		Author:   out.Video.Author,
	}, nil
}
