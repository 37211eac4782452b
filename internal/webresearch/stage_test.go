package webresearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ebahrami/underthreat/config"
	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

const wikiLionSummary = `{
	"title": "Lion",
	"extract": "The lion is a large cat of the genus Panthera.",
	"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Lion"}},
	"originalimage": {"source": "https://upload.example.org/lion_full.jpg", "width": 2000, "height": 1500},
	"thumbnail": {"source": "https://upload.example.org/lion_thumb.jpg", "width": 320, "height": 240}
}`

const gbifLionResults = `{
	"results": [
		{
			"species": "Panthera leo",
			"recordedBy": "J. Doe",
			"media": [
				{"identifier": "https://img.gbif.org/1.jpg", "title": "Lioness", "license": "CC-BY 4.0", "width": 800, "height": 600},
				{"identifier": "https://img.gbif.org/2.jpg", "license": "all rights reserved"},
				{"identifier": "", "license": "CC0"}
			]
		},
		{
			"species": "Panthera leo",
			"datasetName": "iNaturalist",
			"media": [
				{"identifier": "https://img.gbif.org/3.jpg", "license": "cc0-1.0"},
				{"identifier": "https://img.gbif.org/1.jpg", "license": "CC-BY 4.0"}
			]
		}
	]
}`

func testWebConfig(wikiURL, gbifURL string) config.WebConfig {
	return config.WebConfig{
		WikipediaBaseURL: wikiURL,
		GBIFBaseURL:      gbifURL,
		UserAgent:        "under-threat-bot/test",
		Timeout:          5 * time.Second,
		ImageLimit:       12,
	}
}

func TestWikipediaSummary(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, wikiLionSummary)
	}))
	defer srv.Close()

	stage := NewStage(testWebConfig(srv.URL, srv.URL), nil, nil)
	out, err := stage.wiki.Summary(context.Background(), "Panthera leo")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if gotPath != "/page/summary/Panthera%20leo" && gotPath != "/page/summary/Panthera leo" {
		t.Fatalf("request path = %q", gotPath)
	}
	if gotUA != "under-threat-bot/test" {
		t.Fatalf("user agent = %q", gotUA)
	}
	if out.Extract != "The lion is a large cat of the genus Panthera." {
		t.Fatalf("Extract = %q", out.Extract)
	}
	if out.PageURL != "https://en.wikipedia.org/wiki/Lion" {
		t.Fatalf("PageURL = %q", out.PageURL)
	}
	// The original image outranks the thumbnail.
	if out.LeadImage == nil || out.LeadImage.URL != "https://upload.example.org/lion_full.jpg" {
		t.Fatalf("LeadImage = %+v", out.LeadImage)
	}
}

func TestWikipediaSummaryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	stage := NewStage(testWebConfig(srv.URL, srv.URL), nil, nil)
	if _, err := stage.wiki.Summary(context.Background(), "Nonexistentus maximus"); err == nil {
		t.Fatal("Summary() returned nil error for 404")
	}
}

func TestWikipediaSummaryEmptyTitle(t *testing.T) {
	stage := NewStage(testWebConfig("http://unused", "http://unused"), nil, nil)
	if _, err := stage.wiki.Summary(context.Background(), "   "); err == nil {
		t.Fatal("Summary() accepted a blank title")
	}
}

func TestGBIFStillImagesFiltersAndAttributes(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, gbifLionResults)
	}))
	defer srv.Close()

	stage := NewStage(testWebConfig(srv.URL, srv.URL), nil, nil)
	out, err := stage.gbif.StillImages(context.Background(), "Panthera leo", 10)
	if err != nil {
		t.Fatalf("StillImages() error = %v", err)
	}

	for _, frag := range []string{"scientificName=Panthera+leo", "mediaType=StillImage", "limit=10"} {
		if !strings.Contains(gotQuery, frag) {
			t.Fatalf("query = %q, missing %q", gotQuery, frag)
		}
	}

	// Unlicensed media and media without a URL are dropped; duplicates are
	// left for the stage to collapse.
	if len(out) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(out), out)
	}
	first := out[0]
	if first.URL != "https://img.gbif.org/1.jpg" || first.License != LicenseCCBY || first.Title != "Lioness" || first.Attribution != "J. Doe" {
		t.Fatalf("first candidate = %+v", first)
	}
	second := out[1]
	if second.License != LicenseCC0 || second.Attribution != "iNaturalist" || second.Title != "Panthera leo" {
		t.Fatalf("second candidate = %+v", second)
	}
	for _, c := range out {
		if c.Source != "GBIF" {
			t.Fatalf("candidate source = %q", c.Source)
		}
	}
}

func TestStageRunMergesAndDeduplicates(t *testing.T) {
	wiki := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, wikiLionSummary)
	}))
	defer wiki.Close()
	gbif := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gbifLionResults)
	}))
	defer gbif.Close()

	stage := NewStage(testWebConfig(wiki.URL, gbif.URL), nil, nil)
	patch := stage.Run(context.Background(), workflow.State{
		UserInput: "show me lions",
		Entities:  []string{"Panthera leo"},
	})

	if len(patch.WebFindings) != 1 {
		t.Fatalf("WebFindings = %+v", patch.WebFindings)
	}
	f := patch.WebFindings[0]
	if f.Source != "Wikipedia" || f.License != LicenseSA || f.URL != "https://en.wikipedia.org/wiki/Lion" {
		t.Fatalf("finding = %+v", f)
	}

	wantURLs := []string{
		"https://upload.example.org/lion_full.jpg",
		"https://img.gbif.org/1.jpg",
		"https://img.gbif.org/3.jpg",
	}
	gotURLs := make([]string, len(patch.ImageCandidates))
	for i, im := range patch.ImageCandidates {
		gotURLs[i] = im.URL
	}
	if !reflect.DeepEqual(gotURLs, wantURLs) {
		t.Fatalf("image URLs = %v, want %v", gotURLs, wantURLs)
	}
	if len(patch.Errors) != 0 {
		t.Fatalf("Errors = %v", patch.Errors)
	}
}

func TestStageRunDegradesWhenSourcesFail(t *testing.T) {
	wiki := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, wikiLionSummary)
	}))
	defer wiki.Close()
	gbif := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gbif.Close()

	stage := NewStage(testWebConfig(wiki.URL, gbif.URL), nil, nil)
	patch := stage.Run(context.Background(), workflow.State{
		UserInput: "lions",
		Entities:  []string{"Panthera leo"},
	})

	if len(patch.WebFindings) != 1 {
		t.Fatalf("WebFindings = %+v", patch.WebFindings)
	}
	if len(patch.ImageCandidates) != 1 || patch.ImageCandidates[0].Source != "Wikipedia" {
		t.Fatalf("ImageCandidates = %+v", patch.ImageCandidates)
	}
}

func TestStageRunSkipsMediaSearchWithoutEntity(t *testing.T) {
	wiki := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, wikiLionSummary)
	}))
	defer wiki.Close()

	var gbifCalls int32
	gbif := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gbifCalls, 1)
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer gbif.Close()

	stage := NewStage(testWebConfig(wiki.URL, gbif.URL), nil, nil)
	patch := stage.Run(context.Background(), workflow.State{UserInput: "what animal is called the king of the jungle"})

	if atomic.LoadInt32(&gbifCalls) != 0 {
		t.Fatalf("media search ran %d times without a resolved entity", gbifCalls)
	}
	if len(patch.WebFindings) != 1 {
		t.Fatalf("WebFindings = %+v", patch.WebFindings)
	}
}

func TestDedupeByURL(t *testing.T) {
	in := []models.ImageCandidate{
		{URL: "a", Title: "first"},
		{URL: "b"},
		{URL: "a", Title: "second"},
		{URL: ""},
		{URL: "c"},
	}
	out := dedupeByURL(in)
	if len(out) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(out), out)
	}
	if out[0].URL != "a" || out[0].Title != "first" {
		t.Fatalf("first-seen candidate not kept: %+v", out[0])
	}
	if out[1].URL != "b" || out[2].URL != "c" {
		t.Fatalf("order not preserved: %+v", out)
	}
}
