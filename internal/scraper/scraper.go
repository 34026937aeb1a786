// Package scraper turns a careers URL into normalized job postings. It
// routes each URL to an ATS-specific strategy (Greenhouse, Lever, Workday)
// and falls back to a rendered-DOM strategy when no ATS is detected or the
// ATS API fails.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/skalra/auros/internal/ats"
	"github.com/skalra/auros/internal/browser"
	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/retry"
	"github.com/skalra/auros/internal/textutil"
)

// maxJobsPerCompany caps how many postings one company contributes per scan.
const maxJobsPerCompany = 20

// fetchTimeout bounds a single ATS API request.
const fetchTimeout = 20 * time.Second

// SessionOpener opens a headless-browser session for the generic strategy
// and for Workday description fetches.
type SessionOpener func(ctx context.Context) (RenderSession, error)

// RenderSession is one browser+context pair. Close releases it; every page
// opened by Anchors or PageText is closed before the call returns.
type RenderSession interface {
	Anchors(ctx context.Context, pageURL string) ([]browser.Anchor, error)
	PageText(ctx context.Context, pageURL string) (string, error)
	Close()
}

// Config tunes politeness and the cross-host link policy.
type Config struct {
	MaxConcurrentPages int           // semaphore size for description fetches
	DelayMin           time.Duration // politeness window lower bound
	DelayMax           time.Duration // politeness window upper bound
	AllowedDomains     []string      // ATS hosts accepted on cross-host links
}

// Scraper fetches postings for one careers URL at a time. Safe for
// concurrent use.
type Scraper struct {
	client      *http.Client
	openSession SessionOpener
	limiter     *Politeness
	cfg         Config
	logger      *slog.Logger
}

// New creates a scraper. The HTTP client is used for ATS APIs only; the
// session opener handles everything that needs a real DOM.
func New(client *http.Client, openSession SessionOpener, cfg Config, logger *slog.Logger) *Scraper {
	if cfg.MaxConcurrentPages <= 0 {
		cfg.MaxConcurrentPages = 3
	}
	return &Scraper{
		client:      client,
		openSession: openSession,
		limiter:     NewPoliteness(cfg.DelayMin, cfg.DelayMax),
		cfg:         cfg,
		logger:      logger,
	}
}

// jobLink is a discovered posting before its description has been fetched.
type jobLink struct {
	Title string
	URL   string
}

// ScrapeJobs returns up to 20 postings with descriptions for careersURL.
// titleFilter, when non-nil, drops postings before the (expensive)
// description fetch. The whole attempt is retried on classified failures;
// a final failure is returned as a ScrapeError.
func (s *Scraper) ScrapeJobs(ctx context.Context, careersURL string, titleFilter func(string) bool) ([]model.Posting, error) {
	kind := ats.Detect(careersURL)

	run := func(ctx context.Context) ([]model.Posting, error) {
		switch kind {
		case ats.Greenhouse:
			postings, err := s.greenhouseJobs(ctx, careersURL)
			if err == nil {
				return filterPostings(postings, titleFilter), nil
			}
			if !model.IsScrapeFailure(err) {
				return nil, err
			}
			s.logger.Warn("greenhouse api failed, using rendered page", "url", careersURL, "error", err)
			return s.genericScrape(ctx, careersURL, titleFilter)

		case ats.Lever:
			postings, err := s.leverJobs(ctx, careersURL)
			if err == nil {
				return filterPostings(postings, titleFilter), nil
			}
			if !model.IsScrapeFailure(err) {
				return nil, err
			}
			s.logger.Warn("lever api failed, using rendered page", "url", careersURL, "error", err)
			return s.genericScrape(ctx, careersURL, titleFilter)

		case ats.Workday:
			links, err := s.workdayLinks(ctx, careersURL)
			if err == nil {
				// Workday's JSON API has no descriptions; fetch each
				// posting page like a generic link.
				return s.describeLinks(ctx, nil, filterLinks(links, titleFilter))
			}
			if !model.IsScrapeFailure(err) {
				return nil, err
			}
			s.logger.Warn("workday api failed, using rendered page", "url", careersURL, "error", err)
			return s.genericScrape(ctx, careersURL, titleFilter)
		}

		return s.genericScrape(ctx, careersURL, titleFilter)
	}

	postings, err := retry.Do(ctx, retry.DefaultAttempts, retry.DefaultBaseDelay, model.IsScrapeFailure, run)
	if err != nil {
		// Cancellation is not a scrape failure; it must propagate
		// unclassified so the scan terminates instead of recording it.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Error("company scrape failed", "url", careersURL, "error", err)
		return nil, model.NewScrapeError("scrape", err)
	}

	if len(postings) > maxJobsPerCompany {
		postings = postings[:maxJobsPerCompany]
	}
	return postings, nil
}

// describeLinks fetches the description for each link by rendering its page.
// Fetches run concurrently under the configured semaphore; individual
// failures are logged and dropped. A nil session opens a scoped one.
func (s *Scraper) describeLinks(ctx context.Context, session RenderSession, links []jobLink) ([]model.Posting, error) {
	if len(links) == 0 {
		return nil, nil
	}
	if len(links) > maxJobsPerCompany {
		links = links[:maxJobsPerCompany]
	}

	if session == nil {
		local, err := s.openSession(ctx)
		if err != nil {
			return nil, err
		}
		defer local.Close()
		return s.describeLinks(ctx, local, links)
	}

	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrentPages))
	results := make([]*model.Posting, len(links))

	var wg sync.WaitGroup
	for i, link := range links {
		wg.Add(1)
		go func(i int, link jobLink) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				s.logger.Warn("job fetch skipped", "url", link.URL, "error", err)
				return
			}
			defer sem.Release(1)

			if err := s.limiter.Wait(ctx); err != nil {
				s.logger.Warn("job fetch skipped", "url", link.URL, "error", err)
				return
			}
			text, err := session.PageText(ctx, link.URL)
			if err != nil {
				s.logger.Warn("job fetch skipped", "url", link.URL, "error", err)
				return
			}
			results[i] = &model.Posting{
				Title:       link.Title,
				URL:         link.URL,
				Description: textutil.Normalize(text),
			}
		}(i, link)
	}
	wg.Wait()

	postings := make([]model.Posting, 0, len(links))
	for _, r := range results {
		if r != nil {
			postings = append(postings, *r)
		}
	}
	return postings, nil
}

func filterPostings(postings []model.Posting, titleFilter func(string) bool) []model.Posting {
	if titleFilter == nil {
		return postings
	}
	kept := postings[:0]
	for _, p := range postings {
		if titleFilter(p.Title) {
			kept = append(kept, p)
		}
	}
	return kept
}

func filterLinks(links []jobLink, titleFilter func(string) bool) []jobLink {
	if titleFilter == nil {
		return links
	}
	kept := links[:0]
	for _, l := range links {
		if titleFilter(l.Title) {
			kept = append(kept, l)
		}
	}
	return kept
}
