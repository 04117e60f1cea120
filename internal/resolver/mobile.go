package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

const mobileDefaultURL = "https://api16-normal-c-useast1a.tiktokv.com/aweme/v1/feed/"

// mobileUserAgent mimics the official app; the feed endpoint rejects
// browser user agents.
const mobileUserAgent = "com.ss.android.ugc.trill/494+Mozilla/5.0+(Linux;+Android+12;+Pixel+6)"

var videoIDRe = regexp.MustCompile(`/video/(\d+)`)

// Mobile emulates the internal mobile API: the aweme feed endpoint
// returns raw play addresses when queried with a video ID and device
// parameters. Works only on canonical long-form links that carry the ID.
type Mobile struct {
	client  *http.Client
	baseURL string
}

// NewMobile creates the mobile-API provider.
func NewMobile() *Mobile {
	return &Mobile{client: newProviderClient(), baseURL: mobileDefaultURL}
}

func (p *Mobile) Name() string { return "mobile" }

type mobileResponse struct {
	AwemeList []struct {
		Desc   string `json:"desc"`
		Author struct {
			Nickname string `json:"nickname"`
		} `json:"author"`
		Video struct {
			PlayAddr struct {
				URLList []string `json:"url_list"`
			} `json:"play_addr"`
		} `json:"video"`
	} `json:"aweme_list"`
}

// Resolve extracts the numeric video ID from the canonical URL and asks
// the feed endpoint for its play address.
func (p *Mobile) Resolve(ctx context.Context, videoURL string) (*Result, error) {
	m := videoIDRe.FindStringSubmatch(videoURL)
	if m == nil {
		return nil, fmt.Errorf("no video id in %q: %w", videoURL, ErrNoData)
	}
	videoID := m[1]

	endpoint := fmt.Sprintf("%s?aweme_id=%s&version_code=2613&aid=1180&device_platform=android", p.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", mobileUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mobile feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mobile feed status %d", resp.StatusCode)
	}

	var out mobileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode mobile feed response: %w", err)
	}

	if len(out.AwemeList) == 0 || len(out.AwemeList[0].Video.PlayAddr.URLList) == 0 {
		return nil, fmt.Errorf("mobile feed empty for %s: %w", videoID, ErrNoData)
	}

	item := out.AwemeList[0]
	return &Result{
		MediaURL: item.Video.PlayAddr.URLList[0],
		Title:    item.Desc,
		Author:   item.Author.Nickname,
	}, nil
}
