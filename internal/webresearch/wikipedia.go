package webresearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Summary is the relevant slice of the Wikipedia page-summary response.
type Summary struct {
	Title     string
	Extract   string
	PageURL   string
	LeadImage *LeadImage
}

// LeadImage is the original or thumbnail image attached to a summary.
type LeadImage struct {
	URL    string
	Width  int
	Height int
}

// WikipediaClient looks up page summaries on the REST API.
type WikipediaClient struct {
	baseURL string
	fetch   *fetcher
}

type wikiSummaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
	OriginalImage *wikiImage `json:"originalimage"`
	Thumbnail     *wikiImage `json:"thumbnail"`
}

type wikiImage struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Summary fetches the page summary for a title. Not-found and transport
// failures surface as errors; callers degrade them to "no result".
func (c *WikipediaClient) Summary(ctx context.Context, title string) (*Summary, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("empty title")
	}

	endpoint := fmt.Sprintf("%s/page/summary/%s", c.baseURL, url.PathEscape(title))
	var raw wikiSummaryResponse
	if err := c.fetch.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	out := &Summary{
		Title:   raw.Title,
		Extract: raw.Extract,
		PageURL: raw.ContentURLs.Desktop.Page,
	}
	img := raw.OriginalImage
	if img == nil {
		img = raw.Thumbnail
	}
	if img != nil && img.Source != "" {
		out.LeadImage = &LeadImage{URL: img.Source, Width: img.Width, Height: img.Height}
	}
	return out, nil
}
