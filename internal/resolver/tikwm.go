package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const tikwmDefaultURL = "https://www.tikwm.com/api/"

// TikWM calls the TikWM JSON API: a JSON POST whose response carries the
// watermark-free play URL under data.play.
type TikWM struct {
	client  *http.Client
	baseURL string
}

// NewTikWM creates the TikWM provider.
func NewTikWM() *TikWM {
	return &TikWM{client: newProviderClient(), baseURL: tikwmDefaultURL}
}

func (p *TikWM) Name() string { return "tikwm" }

type tikwmResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Play   string `json:"play"`
		Title  string `json:"title"`
		Author struct {
			Nickname string `json:"nickname"`
		} `json:"author"`
	} `json:"data"`
}

// Resolve posts {"url": videoURL} and expects code == 0 on success.
func (p *TikWM) Resolve(ctx context.Context, videoURL string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"url": videoURL})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tikwm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tikwm status %d", resp.StatusCode)
	}

	var out tikwmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tikwm response: %w", err)
	}

	if out.Code != 0 {
		return nil, fmt.Errorf("tikwm code %d (%s): %w", out.Code, out.Msg, ErrNoData)
	}
	if out.Data.Play == "" {
		return nil, fmt.Errorf("tikwm empty play url: %w", ErrNoData)
	}

	return &Result{
		MediaURL: out.Data.Play,
		Title:    out.Data.Title,
		Author:   out.Data.Author.Nickname,
	}, nil
}
