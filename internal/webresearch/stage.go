package webresearch

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ebahrami/underthreat/config"
	"github.com/ebahrami/underthreat/internal/cache"
	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

// Stage fetches an external summary and licensed images for the first
// entity (or the raw query when nothing was resolved). Both fetches run
// concurrently; either may fail without aborting the stage.
type Stage struct {
	wiki       *WikipediaClient
	gbif       *GBIFClient
	logger     *log.Logger
	imageLimit int
}

// NewStage builds the web-enrichment stage. The cache may be nil.
func NewStage(cfg config.WebConfig, webCache *cache.Cache, logger *log.Logger) *Stage {
	if logger == nil {
		logger = log.New(os.Stdout, "[WEB] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	f := &fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  cfg.UserAgent,
		cache:      webCache,
	}
	wikiBase := cfg.WikipediaBaseURL
	if wikiBase == "" {
		wikiBase = "https://en.wikipedia.org/api/rest_v1"
	}
	gbifBase := cfg.GBIFBaseURL
	if gbifBase == "" {
		gbifBase = "https://api.gbif.org/v1"
	}
	imageLimit := cfg.ImageLimit
	if imageLimit <= 0 {
		imageLimit = 12
	}
	return &Stage{
		wiki:       &WikipediaClient{baseURL: wikiBase, fetch: f},
		gbif:       &GBIFClient{baseURL: gbifBase, fetch: f},
		logger:     logger,
		imageLimit: imageLimit,
	}
}

// ID implements workflow.Stage.
func (s *Stage) ID() workflow.StageID { return workflow.StageWebEnrichment }

// Run implements workflow.Stage.
func (s *Stage) Run(ctx context.Context, st workflow.State) workflow.Patch {
	var sci string
	if len(st.Entities) > 0 {
		sci = st.Entities[0]
	}
	subject := sci
	if subject == "" {
		subject = st.UserInput
	}

	var (
		wg       sync.WaitGroup
		summary  *Summary
		gbifImgs []models.ImageCandidate
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		out, err := s.wiki.Summary(ctx, subject)
		if err != nil {
			s.logger.Printf("wikipedia lookup failed for %q: %v", subject, err)
			return
		}
		summary = out
	}()

	// The media search needs a name to match against; skip it when no
	// entity was resolved.
	if sci != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.gbif.StillImages(ctx, sci, s.imageLimit)
			if err != nil {
				s.logger.Printf("gbif lookup failed for %q: %v", sci, err)
				return
			}
			gbifImgs = out
		}()
	}

	wg.Wait()

	var findings []models.Finding
	var images []models.ImageCandidate

	if summary != nil {
		if summary.Extract != "" && summary.PageURL != "" {
			findings = append(findings, models.Finding{
				Text:    summary.Extract,
				URL:     summary.PageURL,
				Source:  "Wikipedia",
				License: LicenseSA,
			})
		}
		if summary.LeadImage != nil {
			images = append(images, models.ImageCandidate{
				URL:         summary.LeadImage.URL,
				License:     LicenseSA,
				Title:       summary.Title,
				Attribution: "Wikipedia/Wikimedia Commons",
				Source:      "Wikipedia",
				Width:       summary.LeadImage.Width,
				Height:      summary.LeadImage.Height,
			})
		}
	}
	images = append(images, gbifImgs...)

	return workflow.Patch{
		WebFindings:     findings,
		ImageCandidates: dedupeByURL(images),
	}
}

// dedupeByURL keeps the first-seen candidate per URL.
func dedupeByURL(in []models.ImageCandidate) []models.ImageCandidate {
	seen := make(map[string]bool, len(in))
	out := make([]models.ImageCandidate, 0, len(in))
	for _, im := range in {
		if im.URL == "" || seen[im.URL] {
			continue
		}
		seen[im.URL] = true
		out = append(out, im)
	}
	return out
}
