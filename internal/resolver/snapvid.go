package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const snapvidDefaultURL = "https://snapvid.app/action.php"

// SnapVid drives a web downloader front-end: a form-encoded POST whose
// response is an HTML fragment containing download anchors. The one
// labeled "no watermark" carries the direct media URL.
type SnapVid struct {
	client  *http.Client
	baseURL string
}

// NewSnapVid creates the SnapVid provider.
func NewSnapVid() *SnapVid {
	return &SnapVid{client: newProviderClient(), baseURL: snapvidDefaultURL}
}

func (p *SnapVid) Name() string { return "snapvid" }

// Resolve submits the link as form data and scrapes the result page.
func (p *SnapVid) Resolve(ctx context.Context, videoURL string) (*Result, error) {
	form := url.Values{"url": {videoURL}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapvid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapvid status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("parse snapvid response: %w", err)
	}

	var mediaURL string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(sel.Text()))
		if strings.Contains(label, "no watermark") || strings.Contains(label, "without watermark") {
			mediaURL, _ = sel.Attr("href")
			return false
		}
		return true
	})

	if mediaURL == "" || !strings.HasPrefix(mediaURL, "http") {
		return nil, fmt.Errorf("snapvid no download anchor: %w", ErrNoData)
	}

	title := strings.TrimSpace(doc.Find(".video-title").First().Text())
	author := strings.TrimSpace(doc.Find(".video-author").First().Text())

	return &Result{MediaURL: mediaURL, Title: title, Author: author}, nil
}
