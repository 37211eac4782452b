package webresearch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ebahrami/underthreat/models"
)

// GBIFClient searches occurrence records for still images.
type GBIFClient struct {
	baseURL string
	fetch   *fetcher
}

type gbifSearchResponse struct {
	Results []struct {
		Species     string `json:"species"`
		RecordedBy  string `json:"recordedBy"`
		DatasetName string `json:"datasetName"`
		Media       []struct {
			Identifier string `json:"identifier"`
			Title      string `json:"title"`
			License    string `json:"license"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
		} `json:"media"`
	} `json:"results"`
}

// StillImages returns licensed image candidates for a scientific name.
// Only media whose normalized license is in the permitted set survive.
func (c *GBIFClient) StillImages(ctx context.Context, scientificName string, limit int) ([]models.ImageCandidate, error) {
	if limit <= 0 {
		limit = 12
	}

	q := url.Values{}
	q.Set("scientificName", scientificName)
	q.Set("mediaType", "StillImage")
	q.Set("limit", fmt.Sprint(limit))
	endpoint := fmt.Sprintf("%s/occurrence/search?%s", c.baseURL, q.Encode())

	var raw gbifSearchResponse
	if err := c.fetch.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	var out []models.ImageCandidate
	for _, rec := range raw.Results {
		for _, m := range rec.Media {
			lic, ok := NormalizeLicense(m.License)
			if !ok || m.Identifier == "" {
				continue
			}
			title := m.Title
			if title == "" {
				title = rec.Species
			}
			attribution := rec.RecordedBy
			if attribution == "" {
				attribution = rec.DatasetName
			}
			if attribution == "" {
				attribution = "GBIF contributor"
			}
			out = append(out, models.ImageCandidate{
				URL:         m.Identifier,
				License:     lic,
				Title:       title,
				Attribution: attribution,
				Source:      "GBIF",
				Width:       m.Width,
				Height:      m.Height,
			})
		}
	}
	return out, nil
}
