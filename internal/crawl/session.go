// internal/crawl/session.go
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openshelf/bookscraper/internal/config"
	"github.com/openshelf/bookscraper/internal/extract"
	"github.com/openshelf/bookscraper/internal/fetch"
	"github.com/openshelf/bookscraper/internal/frontier"
	"github.com/openshelf/bookscraper/internal/monitoring"
	"github.com/openshelf/bookscraper/internal/output"
	"github.com/openshelf/bookscraper/pkg/types"
)

// ErrRecordInvalid marks a record that failed schema validation. Such
// records are logged and discarded, never persisted.
var ErrRecordInvalid = errors.New("record failed validation")

// Diagnostic reports one input URL that could not be turned into records.
// Failed pages never abort a crawl, but callers of the batch endpoints need
// to know which of their inputs produced nothing.
type Diagnostic struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Session drives one crawl: it drains the frontier, fetches each URL,
// extracts records, and persists the ones that validate.
type Session struct {
	cfg      *config.CrawlConfig
	fetcher  fetch.Fetcher
	browser  fetch.Fetcher
	frontier *frontier.Frontier
	expander *frontier.SocialExpander
	sink     output.Sink
	metrics  *monitoring.Metrics
	log      *logrus.Logger

	// writeMu serializes sink writes and the session bookkeeping shared
	// across the parallel page workers.
	writeMu         sync.Mutex
	profileBatch    []types.Record
	profilesEmitted int
	diagnostics     []Diagnostic
}

// NewSession wires a crawl session. browser may be nil; it is only used to
// re-fetch pages whose embedded graph arrived incomplete.
func NewSession(cfg *config.CrawlConfig, fetcher fetch.Fetcher, browser fetch.Fetcher,
	sink output.Sink, metrics *monitoring.Metrics, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	f := frontier.New()
	return &Session{
		cfg:      cfg,
		fetcher:  fetcher,
		browser:  browser,
		frontier: f,
		expander: frontier.NewSocialExpander(cfg.Origin, cfg.PopularityThreshold, log),
		sink:     sink,
		metrics:  metrics,
		log:      log,
	}
}

// Run seeds the frontier with the configured start URLs and processes it to
// exhaustion, fetching up to Concurrency pages in parallel. A session with
// max_profiles set stops once that many profile records have been emitted.
func (s *Session) Run(ctx context.Context) error {
	for _, url := range s.cfg.StartURLs {
		s.frontier.Enqueue(url)
	}

	for !s.profileCapReached() {
		batch := s.nextBatch()
		if len(batch) == 0 {
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, url := range batch {
			url := url
			group.Go(func() error {
				if err := s.processURL(groupCtx, url); err != nil {
					// A single bad page does not end the crawl.
					s.log.WithError(err).WithField("url", url).Error("page failed")
					s.recordDiagnostic(url, err)
				}
				return groupCtx.Err()
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		s.updateFrontierGauges()
	}

	if err := s.flushProfiles(); err != nil {
		return err
	}
	return s.sink.Flush()
}

// nextBatch pulls up to Concurrency URLs off the frontier.
func (s *Session) nextBatch() []string {
	batch := make([]string, 0, s.cfg.Concurrency)
	for len(batch) < s.cfg.Concurrency {
		url, ok := s.frontier.Next()
		if !ok {
			break
		}
		batch = append(batch, url)
	}
	return batch
}

func (s *Session) processURL(ctx context.Context, url string) error {
	kind := fetch.KindForURL(url)
	if kind == types.PageKind("") {
		s.log.WithField("url", url).Debug("skipping unrecognized URL")
		return nil
	}

	page, err := s.fetcher.Fetch(ctx, url, kind)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FetchErrors.WithLabelValues(string(kind)).Inc()
		}
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if s.metrics != nil {
		s.metrics.PagesFetched.WithLabelValues(string(kind)).Inc()
	}

	switch kind {
	case types.PageSitemap:
		return s.processSitemap(page)
	case types.PageProfile:
		return s.processProfile(ctx, page)
	default:
		return s.processContent(ctx, page)
	}
}

func (s *Session) processSitemap(page *types.RawPage) error {
	doc, err := frontier.ParseSitemap(page.Body)
	if err != nil {
		return fmt.Errorf("sitemap %s: %w", page.URL, err)
	}
	queued := doc.Enumerate(s.frontier)
	s.log.WithFields(logrus.Fields{
		"url":    page.URL,
		"index":  doc.Index,
		"queued": queued,
	}).Info("enumerated sitemap")
	return nil
}

func (s *Session) processProfile(ctx context.Context, page *types.RawPage) error {
	records, err := extract.BuildRecords(page)
	if err != nil {
		return err
	}
	if err := s.bufferProfiles(records); err != nil {
		return err
	}

	if _, err := s.expander.Expand(page, s.frontier); err != nil {
		return err
	}

	if s.cfg.CollectReviews {
		reviewURL, err := extract.ReviewListURL(s.cfg.Origin, page.URL)
		if err != nil {
			return err
		}
		s.frontier.Enqueue(reviewURL)
	}
	return nil
}

// processContent extracts records from a book, author or review-list page.
// A page whose embedded graph arrived incomplete gets exactly one re-fetch,
// through the browser when one is wired.
func (s *Session) processContent(ctx context.Context, page *types.RawPage) error {
	started := time.Now()
	records, err := extract.BuildRecords(page)
	if errors.Is(err, extract.ErrPageIncomplete) {
		if s.metrics != nil {
			s.metrics.PagesIncomplete.Inc()
			s.metrics.FetchRetries.Inc()
		}
		refetcher := s.fetcher
		if s.browser != nil {
			refetcher = s.browser
		}
		url, kind := page.URL, page.Kind
		s.log.WithField("url", url).Warn("page incomplete, retrying once")
		page, err = refetcher.Fetch(ctx, url, kind)
		if err != nil {
			return fmt.Errorf("refetch %s: %w", url, err)
		}
		records, err = extract.BuildRecords(page)
	}
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ExtractionTime.WithLabelValues(string(page.Kind)).Observe(time.Since(started).Seconds())
	}

	return s.persist(s.validate(records))
}

// validate drops records that fail their schema check.
func (s *Session) validate(records []types.Record) []types.Record {
	valid := records[:0]
	for _, record := range records {
		if err := record.Validate(); err != nil {
			s.log.WithError(fmt.Errorf("%w: %v", ErrRecordInvalid, err)).
				WithField("variant", record.Variant()).Warn("dropping record")
			if s.metrics != nil {
				s.metrics.RecordsDropped.WithLabelValues(string(record.Variant())).Inc()
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordsExtracted.WithLabelValues(string(record.Variant())).Inc()
		}
		valid = append(valid, record)
	}
	return valid
}

func (s *Session) persist(records []types.Record) error {
	if len(records) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persistLocked(records)
}

func (s *Session) persistLocked(records []types.Record) error {
	if err := s.sink.Write(records); err != nil {
		return fmt.Errorf("persist records: %w", err)
	}
	if s.metrics != nil {
		for _, record := range records {
			s.metrics.RecordsWritten.WithLabelValues(string(record.Variant())).Inc()
		}
	}
	return nil
}

// bufferProfiles groups profile records so downstream consumers see them in
// fixed-size batches rather than a trickle.
func (s *Session) bufferProfiles(records []types.Record) error {
	valid := s.validate(records)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.profilesEmitted += len(valid)
	s.profileBatch = append(s.profileBatch, valid...)
	if len(s.profileBatch) >= s.cfg.ProfileBatchSize {
		batch := s.profileBatch
		s.profileBatch = nil
		return s.persistLocked(batch)
	}
	return nil
}

// profileCapReached reports whether the session has emitted max_profiles
// profile records. Only profile records count against the cap; sitemap and
// review-list fetches spend none of it.
func (s *Session) profileCapReached() bool {
	if s.cfg.MaxProfiles <= 0 {
		return false
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.profilesEmitted >= s.cfg.MaxProfiles
}

func (s *Session) recordDiagnostic(url string, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.diagnostics = append(s.diagnostics, Diagnostic{URL: url, Error: err.Error()})
}

// Diagnostics returns the inputs that failed during the run, in discovery
// order.
func (s *Session) Diagnostics() []Diagnostic {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	out := make([]Diagnostic, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

func (s *Session) flushProfiles() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if len(s.profileBatch) == 0 {
		return nil
	}
	batch := s.profileBatch
	s.profileBatch = nil
	return s.persistLocked(batch)
}

func (s *Session) updateFrontierGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.FrontierPending.Set(float64(s.frontier.Pending()))
	s.metrics.FrontierSize.Set(float64(s.frontier.Size()))
}
