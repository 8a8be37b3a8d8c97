// pkg/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/openshelf/bookscraper/internal/config"
	"github.com/openshelf/bookscraper/internal/output"
	"github.com/openshelf/bookscraper/pkg/types"
)

const testOrigin = "https://www.example-catalog.com"

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *stubFetcher) Fetch(_ context.Context, url string, kind types.PageKind) (*types.RawPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", url)
	}
	return &types.RawPage{URL: url, Kind: kind, Body: []byte(body)}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	records []types.Record
}

func (s *recordingSink) Write(records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *recordingSink) Flush() error { return nil }
func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

const apiBookHTML = `<html><body class="desktop withSiteHeaderTopFullImage">
	<h1 id="bookTitle">The Test Book</h1>
	<a class="authorName" href="/author/show/656983-someone"><span>Someone Great</span></a>
</body></html>`

func testServer(pages map[string]string, sink *recordingSink) *Server {
	cfg := config.Default()
	cfg.Origin = testOrigin
	cfg.Concurrency = 1
	log := logrus.New()
	log.SetOutput(io.Discard)
	var persistent output.Sink
	if sink != nil {
		persistent = sink
	}
	return NewServer(cfg, &stubFetcher{pages: pages}, nil, persistent, nil, nil, log)
}

func postJSON(t *testing.T, server *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestScrapeBooksReturnsRecords(t *testing.T) {
	bookURL := testOrigin + "/book/show/12345-the-test-book"
	server := testServer(map[string]string{bookURL: apiBookHTML}, nil)

	rec := postJSON(t, server, "/scrape-books",
		fmt.Sprintf(`{"book_urls": [%q]}`, bookURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Records   []map[string]interface{} `json:"records"`
		Persisted bool                     `json:"persisted"`
		Count     int                      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Records) != 1 {
		t.Fatalf("Response = %+v", resp)
	}
	if resp.Persisted {
		t.Fatal("Persist defaults to false")
	}
	if resp.Records[0]["title"] != "The Test Book" {
		t.Fatalf("Record = %v", resp.Records[0])
	}
}

func TestScrapeBooksPersistFlag(t *testing.T) {
	bookURL := testOrigin + "/book/show/12345-the-test-book"
	sink := &recordingSink{}
	server := testServer(map[string]string{bookURL: apiBookHTML}, sink)

	rec := postJSON(t, server, "/scrape-books",
		fmt.Sprintf(`{"book_urls": [%q], "persist": true}`, bookURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}
	if sink.count() != 1 {
		t.Fatalf("Persistent sink saw %d records, want 1", sink.count())
	}
}

func TestScrapeBooksReportsFailedInputs(t *testing.T) {
	goodURL := testOrigin + "/book/show/1-good"
	badURL := testOrigin + "/book/show/2-missing"
	server := testServer(map[string]string{goodURL: apiBookHTML}, nil)

	rec := postJSON(t, server, "/scrape-books",
		fmt.Sprintf(`{"book_urls": [%q, %q]}`, goodURL, badURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Count       int `json:"count"`
		Diagnostics []struct {
			URL   string `json:"url"`
			Error string `json:"error"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("Count = %d, want 1", resp.Count)
	}
	if len(resp.Diagnostics) != 1 || resp.Diagnostics[0].URL != badURL {
		t.Fatalf("Diagnostics = %+v, want the failed URL reported", resp.Diagnostics)
	}
	if resp.Diagnostics[0].Error == "" {
		t.Fatal("Diagnostic must carry the failure reason")
	}
}

func TestScrapeBooksRejectsEmptyRequest(t *testing.T) {
	server := testServer(nil, nil)

	rec := postJSON(t, server, "/scrape-books", `{"book_urls": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", rec.Code)
	}
}

func TestScrapeUsersReturnsProfiles(t *testing.T) {
	profileURL := testOrigin + "/user/show/3114744-david-basile"
	server := testServer(map[string]string{
		profileURL: `<html><body class="desktop withSiteHeaderTopFullImage"></body></html>`,
	}, nil)

	rec := postJSON(t, server, "/scrape-users",
		fmt.Sprintf(`{"profiles": [%q]}`, profileURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Records []map[string]interface{} `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0]["profile_url"] != profileURL {
		t.Fatalf("Records = %v", resp.Records)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
}
