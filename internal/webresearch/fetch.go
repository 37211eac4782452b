package webresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ebahrami/underthreat/internal/cache"
)

// fetcher performs GET-and-decode with an optional read-through cache keyed
// by URL. Both clients share one instance (and one http.Client) per stage.
type fetcher struct {
	httpClient *http.Client
	userAgent  string
	cache      *cache.Cache
}

func (f *fetcher) getJSON(ctx context.Context, url string, out interface{}) error {
	if body, ok := f.cache.Get(ctx, url); ok {
		return json.Unmarshal(body, out)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	f.cache.Set(ctx, url, body)
	return nil
}
