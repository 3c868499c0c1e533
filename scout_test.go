package scout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/scoutbase/scout/platform"
	"github.com/scoutbase/scout/scraper"
	"github.com/scoutbase/scout/search"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// siteFetcher serves one canned HTML document for every page of the site.
type siteFetcher struct {
	html  string
	delay time.Duration
}

func (f *siteFetcher) FetchHTML(ctx context.Context, _ string) (string, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.html, nil
}

// scriptedProvider answers per-platform based on the display name in the
// prompt, defaulting to NOT_FOUND.
type scriptedProvider struct {
	replies map[string]string
}

func (p *scriptedProvider) Complete(_ context.Context, _, user string) (string, error) {
	for key, reply := range p.replies {
		if strings.Contains(user, key) {
			return reply, nil
		}
	}
	return "NOT_FOUND", nil
}

func testScraper(html string) *scraper.Scraper {
	return scraper.New(
		scraper.WithFetcher(&siteFetcher{html: html}),
		scraper.WithLogger(quietLogger()),
	)
}

func testSearcher(replies map[string]string) *search.Searcher {
	return search.New(
		[]search.Strategy{{
			Name:      "scripted",
			Provider:  &scriptedProvider{replies: replies},
			WebSearch: true,
		}},
		search.WithLogger(quietLogger()),
		search.WithBatchDelay(0),
	)
}

// recorder collects every status update and signals terminal states.
type recorder struct {
	mu       sync.Mutex
	statuses []JobStatus
	done     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) observe(status JobStatus) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
	if status.Status.Terminal() {
		close(r.done)
	}
}

func (r *recorder) wait(t *testing.T) []JobStatus {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(10 * time.Second):
		t.Fatal("job never reached a terminal state")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]JobStatus(nil), r.statuses...)
}

// Website holds a matching Instagram link and nothing else; with no
// searcher configured, only Instagram resolves.
func TestDiscoveryWebsiteLinkOnly(t *testing.T) {
	html := `<footer><a href="https://instagram.com/acme">Follow us</a></footer>`
	rec := newRecorder()

	d := New(
		WithScraper(testScraper(html)),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	jobID, err := d.Start(context.Background(), "Acme Inc", "https://acme.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.wait(t)

	status, err := d.Status(jobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != StatusCompleted || status.Progress != 100 {
		t.Fatalf("status = %s/%d, want completed/100", status.Status, status.Progress)
	}

	results := status.Results
	if results == nil {
		t.Fatal("completed job has no results")
	}

	ig := results.Profiles[platform.Instagram]
	if ig.Confidence != platform.Verified || ig.Source != platform.SourceWebsiteLink {
		t.Errorf("instagram = %s/%s, want verified/website_link", ig.Confidence, ig.Source)
	}
	if ig.Handle != "acme" {
		t.Errorf("instagram handle = %q, want acme", ig.Handle)
	}
	if !ig.Validation.WebsiteMatch {
		t.Error("instagram missing websiteMatch detail")
	}

	for _, p := range platform.All() {
		if p == platform.Instagram {
			continue
		}
		if got := results.Profiles[p].Confidence; got != platform.NotFound {
			t.Errorf("%s = %s, want not_found", p, got)
		}
	}
	if results.TotalFound != 1 || results.VerifiedCount != 1 {
		t.Errorf("counts = total %d, verified %d; want 1, 1", results.TotalFound, results.VerifiedCount)
	}
	if results.NotFoundCount != len(platform.All())-1 {
		t.Errorf("notFoundCount = %d, want %d", results.NotFoundCount, len(platform.All())-1)
	}
}

// Empty website and a searcher that finds nothing: everything not_found.
func TestDiscoveryNothingFound(t *testing.T) {
	rec := newRecorder()
	d := New(
		WithScraper(testScraper("<html><body>coming soon</body></html>")),
		WithSearcher(testSearcher(nil)),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	final := statuses[len(statuses)-1]
	if final.Status != StatusCompleted {
		t.Fatalf("final status = %s, want completed", final.Status)
	}
	results := final.Results
	if results.TotalFound != 0 {
		t.Errorf("totalFound = %d, want 0", results.TotalFound)
	}
	for _, p := range platform.All() {
		if got := results.Profiles[p].Confidence; got != platform.NotFound {
			t.Errorf("%s = %s, want not_found", p, got)
		}
		// A search that came back empty leaves the placeholder alone.
		if got := results.Profiles[p].Source; got != platform.SourceWebsiteLink {
			t.Errorf("%s source = %s, want website_link placeholder", p, got)
		}
	}
}

// Without a searcher the job goes straight from scraping to validation;
// the search phase never shows up in the status stream.
func TestDiscoveryNoSearcherSkipsSearchPhase(t *testing.T) {
	rec := newRecorder()
	d := New(
		WithScraper(testScraper(`<a href="https://instagram.com/acme">ig</a>`)),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	sawProcessing := false
	for _, st := range statuses {
		if st.Status == StatusSearchingProfiles {
			t.Errorf("observed status %q at progress %d with no searcher configured", st.Status, st.Progress)
		}
		if st.Status == StatusScrapingWebsite && st.Progress == 30 {
			sawProcessing = true
		}
	}
	if !sawProcessing {
		t.Error("missing scraping_website snapshot at progress 30")
	}
	if statuses[len(statuses)-1].Status != StatusCompleted {
		t.Errorf("final status = %s, want completed", statuses[len(statuses)-1].Status)
	}
}

// Cancelling the caller's context after Start must not kill the job; the
// pipeline runs detached and still completes.
func TestStartDetachedFromCallerCancel(t *testing.T) {
	rec := newRecorder()
	d := New(
		WithScraper(testScraper(`<a href="https://instagram.com/acme">ig</a>`)),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	jobID, err := d.Start(ctx, "Acme", "https://acme.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	statuses := rec.wait(t)
	final := statuses[len(statuses)-1]
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed after caller cancel", final.Status, final.Error)
	}
	got, err := d.Status(jobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Results == nil || got.Results.Profiles[platform.Instagram].URL == "" {
		t.Error("detached job lost its results")
	}
}

// A provider answer that fails the platform's URL pattern is rejected, not
// softened into an uncertain hit.
func TestDiscoveryInvalidCandidateRejected(t *testing.T) {
	rec := newRecorder()
	d := New(
		WithScraper(testScraper("")),
		// A personal profile URL, not a company page.
		WithSearcher(testSearcher(map[string]string{
			"LinkedIn": "https://linkedin.com/in/jane-doe",
		})),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	results := statuses[len(statuses)-1].Results
	li := results.Profiles[platform.LinkedIn]
	if li.Confidence != platform.NotFound || li.URL != "" {
		t.Errorf("linkedin = %s %q, want not_found with no URL", li.Confidence, li.URL)
	}
}

func TestDiscoverySearchComplementsWebsite(t *testing.T) {
	html := `<a href="https://instagram.com/acme">ig</a>`
	rec := newRecorder()
	d := New(
		WithScraper(testScraper(html)),
		WithSearcher(testSearcher(map[string]string{
			"Instagram": "https://instagram.com/acme_wrong", // must not be asked
			"Twitter/X": "https://x.com/acme",
		})),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	results := statuses[len(statuses)-1].Results
	if got := results.Profiles[platform.Instagram].URL; got != "https://instagram.com/acme" {
		t.Errorf("instagram = %q, want the website link, not a search result", got)
	}
	tw := results.Profiles[platform.Twitter]
	if tw.URL != "https://x.com/acme" || tw.Source != platform.SourceDeepResearch {
		t.Errorf("twitter = %q/%s, want search hit", tw.URL, tw.Source)
	}
	if tw.Confidence != platform.Likely {
		t.Errorf("twitter confidence = %s, want likely", tw.Confidence)
	}
}

type fixedMetadata struct {
	meta *platform.Metadata
	err  error
}

func (f *fixedMetadata) Extract(context.Context, string, string) (*platform.Metadata, error) {
	return f.meta, f.err
}

func TestDiscoveryMetadata(t *testing.T) {
	rec := newRecorder()
	d := New(
		WithScraper(testScraper("")),
		WithMetadata(&fixedMetadata{meta: &platform.Metadata{
			Description:    "Payments platform.",
			Industry:       "Fintech",
			TargetAudience: "SMBs",
			Confidence:     "high",
		}}),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	results := statuses[len(statuses)-1].Results
	if results.Metadata == nil || results.Metadata.Industry != "Fintech" {
		t.Errorf("metadata = %+v", results.Metadata)
	}

	vars := CampaignVariables(results)
	if vars["competitor_industry"] != "Fintech" || vars["competitor_audience"] != "SMBs" {
		t.Errorf("metadata variables missing: %v", vars)
	}
}

// Metadata extraction is best effort; a failing extractor must not fail
// the job.
func TestDiscoveryMetadataFailureIgnored(t *testing.T) {
	rec := newRecorder()
	d := New(
		WithScraper(testScraper("")),
		WithMetadata(&fixedMetadata{err: errors.New("providers down")}),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	final := statuses[len(statuses)-1]
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed despite metadata failure", final.Status)
	}
	if final.Results.Metadata != nil {
		t.Errorf("metadata = %+v, want nil", final.Results.Metadata)
	}
}

func TestDiscoveryStatusMonotonic(t *testing.T) {
	order := map[Status]int{
		StatusPending:           0,
		StatusScrapingWebsite:   1,
		StatusSearchingProfiles: 2,
		StatusValidating:        3,
		StatusCompleted:         4,
	}

	rec := newRecorder()
	d := New(
		WithScraper(testScraper(`<a href="https://instagram.com/acme">ig</a>`)),
		WithSearcher(testSearcher(nil)),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	prevState, prevProgress := -1, -1
	for _, st := range statuses {
		rank, ok := order[st.Status]
		if !ok {
			t.Fatalf("unexpected status %q", st.Status)
		}
		if rank < prevState {
			t.Errorf("status went backwards: %v", statuses)
		}
		if st.Progress < prevProgress {
			t.Errorf("progress went backwards: %v", statuses)
		}
		prevState, prevProgress = rank, st.Progress
	}
	if statuses[len(statuses)-1].Status != StatusCompleted {
		t.Errorf("final status = %s", statuses[len(statuses)-1].Status)
	}
	if statuses[len(statuses)-1].CompletedAt == nil {
		t.Error("completed job missing completedAt")
	}
}

func TestRunSynchronous(t *testing.T) {
	d := New(
		WithScraper(testScraper(`<a href="https://instagram.com/acme">ig</a>`)),
		WithLogger(quietLogger()),
		WithPollInterval(10*time.Millisecond),
	)

	results, err := d.Run(context.Background(), "Acme", "https://acme.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results.VerifiedCount != 1 {
		t.Errorf("verifiedCount = %d, want 1", results.VerifiedCount)
	}
}

// A job that outlives the wait budget must surface a timeout error, never
// a silent empty result.
func TestRunTimesOut(t *testing.T) {
	slow := scraper.New(
		scraper.WithFetcher(&siteFetcher{html: "<html></html>", delay: 300 * time.Millisecond}),
		scraper.WithLogger(quietLogger()),
	)
	d := New(
		WithScraper(slow),
		WithLogger(quietLogger()),
		WithPollInterval(10*time.Millisecond),
		WithMaxWait(50*time.Millisecond),
	)

	results, err := d.Run(context.Background(), "Acme", "https://acme.com")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if results != nil {
		t.Errorf("results = %+v, want nil on timeout", results)
	}
}

func TestStartRequiresName(t *testing.T) {
	d := New(WithScraper(testScraper("")), WithLogger(quietLogger()))
	if _, err := d.Start(context.Background(), "", "https://acme.com"); err == nil {
		t.Fatal("want error for empty competitor name")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	d := New(WithScraper(testScraper("")), WithLogger(quietLogger()))
	if _, err := d.Status("disc_missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestSkipPlatforms(t *testing.T) {
	rec := newRecorder()
	d := New(
		WithScraper(testScraper("")),
		WithSkipPlatforms(platform.PlayStore, platform.AppStore),
		WithObserver(rec.observe),
		WithLogger(quietLogger()),
	)

	if _, err := d.Start(context.Background(), "Acme", "https://acme.com"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	statuses := rec.wait(t)

	results := statuses[len(statuses)-1].Results
	if _, ok := results.Profiles[platform.PlayStore]; ok {
		t.Error("playstore present despite skip")
	}
	if _, ok := results.Profiles[platform.AppStore]; ok {
		t.Error("appstore present despite skip")
	}
	if len(results.Profiles) != len(platform.All())-2 {
		t.Errorf("profiles len = %d", len(results.Profiles))
	}
}

func TestCampaignVariables(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	results := &platform.Results{
		CompetitorName: "Acme Inc",
		WebsiteURL:     "https://acme.com",
		DiscoveredAt:   now,
		Profiles: map[platform.Platform]*platform.Profile{
			platform.Instagram: {
				Platform:   platform.Instagram,
				URL:        "https://instagram.com/acme",
				Handle:     "acme",
				Confidence: platform.Verified,
			},
			platform.Facebook: {
				Platform:   platform.Facebook,
				URL:        "https://facebook.com/acme",
				Handle:     "acme",
				Confidence: platform.Likely,
			},
			platform.TikTok: {
				Platform:   platform.TikTok,
				Confidence: platform.NotFound,
			},
		},
	}

	got := CampaignVariables(results)

	want := map[string]string{
		"competitor_name":     "Acme Inc",
		"competitor_website":  "https://acme.com",
		"discovery_completed": "true",
		"discovery_date":      "2026-03-14T12:00:00Z",
		"instagram_username":  "acme",                      // handle-style key
		"facebook_url":        "https://facebook.com/acme", // url-style key
		"profiles_verified":   "instagram",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestCampaignVariablesHandleFallsBackToURL(t *testing.T) {
	results := &platform.Results{
		CompetitorName: "Acme",
		DiscoveredAt:   time.Now(),
		Profiles: map[platform.Platform]*platform.Profile{
			platform.Twitter: {
				Platform:   platform.Twitter,
				URL:        "https://x.com/acme",
				Confidence: platform.Likely, // no handle extracted
			},
		},
	}
	got := CampaignVariables(results)
	if got["twitter_username"] != "https://x.com/acme" {
		t.Errorf("twitter_username = %q, want URL fallback", got["twitter_username"])
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	status := JobStatus{JobID: "disc_1", Status: StatusPending, StartedAt: time.Now()}
	store.Put(status)

	got, ok := store.Get("disc_1")
	if !ok || got.JobID != "disc_1" {
		t.Fatalf("Get = (%+v, %v)", got, ok)
	}

	// Stored by value: mutating the original must not leak into the store.
	status.Status = StatusFailed
	if got, _ := store.Get("disc_1"); got.Status != StatusPending {
		t.Error("store leaked a shared reference")
	}

	store.Delete("disc_1")
	if _, ok := store.Get("disc_1"); ok {
		t.Error("Get after Delete = true")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	for i, age := range []time.Duration{time.Minute, 2 * time.Hour, 30 * time.Hour} {
		store.Put(JobStatus{
			JobID:     fmt.Sprintf("disc_%d", i),
			Status:    StatusCompleted,
			StartedAt: time.Now().Add(-age),
		})
	}

	if removed := store.Sweep(24 * time.Hour); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if _, ok := store.Get("disc_2"); ok {
		t.Error("expired job survived sweep")
	}
	if _, ok := store.Get("disc_0"); !ok {
		t.Error("fresh job removed by sweep")
	}
}
