// Package scout discovers a competitor's social media and review platform
// profiles from their name and website. Discovery runs as an asynchronous
// job: the website is scraped for direct profile links, remaining platforms
// are searched through AI providers, and every candidate is validated
// against the competitor identity before it lands in the results.
package scout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scoutbase/scout/platform"
	"github.com/scoutbase/scout/scraper"
	"github.com/scoutbase/scout/search"
	"github.com/scoutbase/scout/validate"
)

// Status is the lifecycle state of a discovery job.
type Status string

const (
	StatusPending           Status = "pending"
	StatusScrapingWebsite   Status = "scraping_website"
	StatusSearchingProfiles Status = "searching_profiles"
	StatusValidating        Status = "validating"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

// Terminal reports whether the job has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobStatus is a point-in-time snapshot of a discovery job.
type JobStatus struct {
	JobID       string            `json:"jobId"`
	Status      Status            `json:"status"`
	Progress    int               `json:"progress"`
	CurrentStep string            `json:"currentStep"`
	Results     *platform.Results `json:"results,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

var (
	// ErrJobNotFound is returned when a job ID is unknown to the store.
	ErrJobNotFound = errors.New("discovery job not found")
	// ErrTimeout is returned by Run when a job does not finish in time.
	ErrTimeout = errors.New("discovery timed out")
)

// Observer receives a snapshot after every job state change.
type Observer func(JobStatus)

// MetadataExtractor produces business metadata for a competitor website.
type MetadataExtractor interface {
	Extract(ctx context.Context, competitorName, websiteURL string) (*platform.Metadata, error)
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithStore sets the job status store. Defaults to an in-memory store.
func WithStore(store Store) Option {
	return func(d *Discoverer) { d.store = store }
}

// WithScraper sets the website scraper.
func WithScraper(s *scraper.Scraper) Option {
	return func(d *Discoverer) { d.scraper = s }
}

// WithSearcher sets the profile searcher. Without one, discovery relies on
// website links alone and unfound platforms are reported as not_found.
func WithSearcher(s *search.Searcher) Option {
	return func(d *Discoverer) { d.searcher = s }
}

// WithMetadata sets an optional business metadata extractor. Extraction
// failures are logged and discarded; metadata never fails a job.
func WithMetadata(m MetadataExtractor) Option {
	return func(d *Discoverer) { d.metadata = m }
}

// WithObserver registers a callback invoked after every status update.
func WithObserver(fn Observer) Option {
	return func(d *Discoverer) { d.observer = fn }
}

// WithSkipPlatforms excludes platforms from discovery entirely.
func WithSkipPlatforms(platforms ...platform.Platform) Option {
	return func(d *Discoverer) {
		for _, p := range platforms {
			d.skip[p] = true
		}
	}
}

// WithLogger sets the logger for discovery progress.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) { d.logger = logger }
}

// WithPollInterval sets how often Run polls for completion.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Discoverer) { d.pollInterval = interval }
}

// WithMaxWait sets how long Run waits before giving up on a job.
func WithMaxWait(maxWait time.Duration) Option {
	return func(d *Discoverer) { d.maxWait = maxWait }
}

// Discoverer runs competitor profile discovery jobs.
type Discoverer struct {
	store        Store
	scraper      *scraper.Scraper
	searcher     *search.Searcher
	metadata     MetadataExtractor
	observer     Observer
	skip         map[platform.Platform]bool
	logger       *slog.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

// New creates a Discoverer. A scraper is created with defaults if none is
// supplied; a searcher is optional.
func New(opts ...Option) *Discoverer {
	d := &Discoverer{
		skip:         make(map[platform.Platform]bool),
		logger:       slog.Default(),
		pollInterval: 500 * time.Millisecond,
		maxWait:      60 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store == nil {
		d.store = NewMemoryStore()
	}
	if d.scraper == nil {
		d.scraper = scraper.New(scraper.WithLogger(d.logger))
	}
	return d
}

// Start launches a discovery job and returns its ID immediately. The job
// runs on a background goroutine detached from ctx cancellation; pass a
// context that should outlive the caller's request.
func (d *Discoverer) Start(ctx context.Context, competitorName, websiteURL string) (string, error) {
	if competitorName == "" {
		return "", errors.New("competitor name is required")
	}

	jobID := "disc_" + uuid.NewString()
	now := time.Now()
	d.update(JobStatus{
		JobID:       jobID,
		Status:      StatusPending,
		Progress:    0,
		CurrentStep: "Queued for discovery",
		StartedAt:   now,
	})

	d.logger.InfoContext(ctx, "discovery started",
		"job_id", jobID,
		"competitor", competitorName,
		"website", websiteURL)

	go d.run(context.WithoutCancel(ctx), jobID, competitorName, websiteURL)
	return jobID, nil
}

// Status returns the current snapshot for a job.
func (d *Discoverer) Status(jobID string) (JobStatus, error) {
	status, ok := d.store.Get(jobID)
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return status, nil
}

// Run starts a job and blocks until it completes, polling the store. It
// returns ErrTimeout if the job is still running after the configured
// maximum wait, and an error carrying the job's failure message if the
// job failed.
func (d *Discoverer) Run(ctx context.Context, competitorName, websiteURL string) (*platform.Results, error) {
	jobID, err := d.Start(ctx, competitorName, websiteURL)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.maxWait)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		status, err := d.Status(jobID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case StatusCompleted:
			return status.Results, nil
		case StatusFailed:
			return nil, fmt.Errorf("discovery failed: %s", status.Error)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %s (job %s)", ErrTimeout, d.maxWait, jobID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// update stores a snapshot and notifies the observer.
func (d *Discoverer) update(status JobStatus) {
	d.store.Put(status)
	if d.observer != nil {
		d.observer(status)
	}
}

// advance mutates the snapshot to a new phase and publishes it.
func (d *Discoverer) advance(status *JobStatus, s Status, progress int, step string) {
	status.Status = s
	status.Progress = progress
	status.CurrentStep = step
	d.update(*status)
}

func (d *Discoverer) fail(status *JobStatus, err error) {
	now := time.Now()
	status.Status = StatusFailed
	status.Progress = 100
	status.CurrentStep = "Discovery failed"
	status.Error = err.Error()
	status.CompletedAt = &now
	d.update(*status)
	d.logger.Error("discovery failed", "job_id", status.JobID, "error", err)
}

// run executes the discovery pipeline for one job.
func (d *Discoverer) run(ctx context.Context, jobID, competitorName, websiteURL string) {
	status, ok := d.store.Get(jobID)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.fail(&status, fmt.Errorf("internal error: %v", r))
		}
	}()

	targets := d.targetPlatforms()
	results := &platform.Results{
		CompetitorName: competitorName,
		WebsiteURL:     websiteURL,
		Profiles:       make(map[platform.Platform]*platform.Profile, len(targets)),
		DiscoveredAt:   time.Now(),
	}
	for _, p := range targets {
		results.Profiles[p] = &platform.Profile{
			Platform:   p,
			Confidence: platform.NotFound,
			Source:     platform.SourceWebsiteLink,
		}
	}

	// Phase 1: scrape the competitor website for direct profile links.
	d.advance(&status, StatusScrapingWebsite, 10, "Scanning website for social media links")

	if websiteURL != "" {
		links := d.scraper.SocialLinks(ctx, websiteURL)
		for p, url := range links.Links {
			profile, ok := results.Profiles[p]
			if !ok {
				continue // skipped platform
			}
			profile.URL = url
			profile.Source = platform.SourceWebsiteLink
			if cfg, ok := platform.ConfigFor(p); ok {
				if handle, ok := cfg.ExtractHandle(url); ok {
					profile.Handle = handle
				}
			}
			// Links published on the competitor's own site are
			// authoritative.
			validate.UpgradeWebsiteLink(profile)
		}
		d.logger.InfoContext(ctx, "website scan finished",
			"job_id", jobID,
			"direct_links", len(links.Links),
			"raw_links", len(links.RawLinks))
	} else {
		d.logger.InfoContext(ctx, "no website provided, skipping scrape", "job_id", jobID)
	}

	d.advance(&status, StatusScrapingWebsite, 30, "Processing website results")

	// Phase 2: search for platforms the website did not link to. The
	// phase is skipped outright, status included, when nothing is
	// missing or no searcher is configured.
	var missing []platform.Platform
	for _, p := range targets {
		if results.Profiles[p].URL == "" {
			missing = append(missing, p)
		}
	}

	if d.searcher != nil && len(missing) > 0 {
		d.advance(&status, StatusSearchingProfiles, 40,
			fmt.Sprintf("Searching %d platforms", len(missing)))
		found := d.searcher.SearchAll(ctx, competitorName, missing)
		for p, profile := range found {
			// Unresolved platforms keep their website_link placeholder.
			if profile.URL == "" {
				continue
			}
			results.Profiles[p] = profile
		}
	}

	if d.metadata != nil && websiteURL != "" {
		meta, err := d.metadata.Extract(ctx, competitorName, websiteURL)
		if err != nil {
			d.logger.WarnContext(ctx, "metadata extraction failed", "job_id", jobID, "error", err)
		} else {
			results.Metadata = meta
		}
	}

	// Phase 3: validate every candidate against the competitor identity.
	d.advance(&status, StatusValidating, 80, "Validating discovered profiles")

	validate.Profiles(results.Profiles, competitorName, websiteURL)

	for _, profile := range results.Profiles {
		switch profile.Confidence {
		case platform.Verified:
			results.VerifiedCount++
			results.TotalFound++
		case platform.Likely:
			results.LikelyCount++
			results.TotalFound++
		case platform.Uncertain:
			results.TotalFound++
		case platform.NotFound:
			results.NotFoundCount++
		}
	}

	now := time.Now()
	status.Status = StatusCompleted
	status.Progress = 100
	status.CurrentStep = "Discovery complete"
	status.Results = results
	status.CompletedAt = &now
	d.update(status)

	d.logger.InfoContext(ctx, "discovery complete",
		"job_id", jobID,
		"found", results.TotalFound,
		"verified", results.VerifiedCount,
		"likely", results.LikelyCount,
		"not_found", results.NotFoundCount,
		"elapsed", time.Since(status.StartedAt).Round(time.Millisecond))
}

// targetPlatforms returns all registry platforms minus the skip list.
func (d *Discoverer) targetPlatforms() []platform.Platform {
	all := platform.All()
	targets := make([]platform.Platform, 0, len(all))
	for _, p := range all {
		if !d.skip[p] {
			targets = append(targets, p)
		}
	}
	return targets
}
