// pkg/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/openshelf/bookscraper/internal/config"
	"github.com/openshelf/bookscraper/internal/crawl"
	"github.com/openshelf/bookscraper/internal/fetch"
	"github.com/openshelf/bookscraper/internal/monitoring"
	"github.com/openshelf/bookscraper/internal/output"
	"github.com/openshelf/bookscraper/pkg/types"
)

// Server exposes batch scraping over HTTP: callers POST a set of URLs and
// get the extracted records back, optionally persisting them to the
// configured sinks as a side effect.
type Server struct {
	cfg      *config.CrawlConfig
	fetcher  fetch.Fetcher
	browser  fetch.Fetcher
	sink     output.Sink
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
	log      *logrus.Logger
	router   *mux.Router
}

// NewServer wires the HTTP surface. sink may be nil when the server should
// only ever return records inline.
func NewServer(cfg *config.CrawlConfig, fetcher fetch.Fetcher, browser fetch.Fetcher,
	sink output.Sink, metrics *monitoring.Metrics, registry *prometheus.Registry,
	log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:      cfg,
		fetcher:  fetcher,
		browser:  browser,
		sink:     sink,
		metrics:  metrics,
		registry: registry,
		log:      log,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/scrape-books", s.handleScrapeBooks).Methods(http.MethodPost)
	s.router.HandleFunc("/scrape-users", s.handleScrapeUsers).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.registry != nil {
		s.router.Handle("/metrics", monitoring.Handler(s.registry)).Methods(http.MethodGet)
	}
}

// ServeHTTP makes the server mountable and testable.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.API.ListenAddr).Info("API listening")
	return http.ListenAndServe(s.cfg.API.ListenAddr, s.router)
}

type scrapeBooksRequest struct {
	BookURLs []string `json:"book_urls"`
	Persist  bool     `json:"persist"`
}

type scrapeUsersRequest struct {
	Profiles       []string `json:"profiles"`
	Persist        bool     `json:"persist"`
	CollectReviews bool     `json:"collect_reviews"`
}

type scrapeResponse struct {
	Records     []types.Record     `json:"records"`
	Persisted   bool               `json:"persisted"`
	Count       int                `json:"count"`
	Diagnostics []crawl.Diagnostic `json:"diagnostics,omitempty"`
}

func (s *Server) handleScrapeBooks(w http.ResponseWriter, r *http.Request) {
	var req scrapeBooksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.BookURLs) == 0 {
		http.Error(w, "book_urls is required", http.StatusBadRequest)
		return
	}
	s.runBatch(w, r, req.BookURLs, req.Persist, false)
}

func (s *Server) handleScrapeUsers(w http.ResponseWriter, r *http.Request) {
	var req scrapeUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Profiles) == 0 {
		http.Error(w, "profiles is required", http.StatusBadRequest)
		return
	}
	s.runBatch(w, r, req.Profiles, req.Persist, req.CollectReviews)
}

// runBatch crawls exactly the requested URLs (no frontier expansion beyond
// review-list follow-ups) and replies with the records.
func (s *Server) runBatch(w http.ResponseWriter, r *http.Request, urls []string,
	persist, collectReviews bool) {
	capture := &captureSink{}
	sink := output.Sink(capture)
	if persist {
		if s.sink == nil {
			http.Error(w, "persistence is not configured", http.StatusBadRequest)
			return
		}
		sink = &teeSink{primary: s.sink, capture: capture}
	}

	batchCfg := *s.cfg
	batchCfg.StartURLs = urls
	batchCfg.CollectReviews = collectReviews
	// The batch endpoints crawl only what was asked for.
	batchCfg.PopularityThreshold = int(^uint(0) >> 1)

	session := crawl.NewSession(&batchCfg, s.fetcher, s.browser, sink, s.metrics, s.log)
	if err := session.Run(r.Context()); err != nil {
		s.log.WithError(err).Error("batch crawl failed")
		http.Error(w, "crawl failed", http.StatusInternalServerError)
		return
	}

	records := capture.snapshot()
	resp := scrapeResponse{
		Records:     records,
		Persisted:   persist,
		Count:       len(records),
		Diagnostics: session.Diagnostics(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Error("encode response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// captureSink keeps records in memory for the HTTP response.
type captureSink struct {
	mu      sync.Mutex
	records []types.Record
}

func (c *captureSink) Write(records []types.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, records...)
	return nil
}

func (c *captureSink) Flush() error { return nil }
func (c *captureSink) Close() error { return nil }

func (c *captureSink) snapshot() []types.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Record, len(c.records))
	copy(out, c.records)
	return out
}

// teeSink writes to the persistent sink and the in-memory capture.
type teeSink struct {
	primary output.Sink
	capture *captureSink
}

func (t *teeSink) Write(records []types.Record) error {
	if err := t.primary.Write(records); err != nil {
		return err
	}
	return t.capture.Write(records)
}

func (t *teeSink) Flush() error { return t.primary.Flush() }
func (t *teeSink) Close() error { return nil }
