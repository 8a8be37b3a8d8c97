// internal/crawl/session_test.go
package crawl

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/openshelf/bookscraper/internal/config"
	"github.com/openshelf/bookscraper/pkg/types"
)

const testOrigin = "https://www.example-catalog.com"

// stubFetcher serves pages from memory and counts fetches per URL.
type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetches map[string]int
}

func newStubFetcher(pages map[string]string) *stubFetcher {
	return &stubFetcher{pages: pages, fetches: make(map[string]int)}
}

func (f *stubFetcher) Fetch(_ context.Context, url string, kind types.PageKind) (*types.RawPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", url)
	}
	f.fetches[url]++
	return &types.RawPage{URL: url, Kind: kind, Body: []byte(body)}, nil
}

func (f *stubFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[url]
}

// memorySink collects written records.
type memorySink struct {
	mu      sync.Mutex
	records []types.Record
	batches []int
}

func (s *memorySink) Write(records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	s.batches = append(s.batches, len(records))
	return nil
}

func (s *memorySink) Flush() error { return nil }
func (s *memorySink) Close() error { return nil }

func (s *memorySink) byVariant(variant types.RecordVariant) []types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Record
	for _, r := range s.records {
		if r.Variant() == variant {
			out = append(out, r)
		}
	}
	return out
}

func testConfig(startURLs ...string) *config.CrawlConfig {
	cfg := config.Default()
	cfg.Origin = testOrigin
	cfg.StartURLs = startURLs
	cfg.Concurrency = 1
	return cfg
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

const sessionBookHTML = `<html><body class="desktop withSiteHeaderTopFullImage">
	<h1 id="bookTitle">The Test Book</h1>
	<a class="authorName" href="/author/show/656983-someone"><span>Someone Great</span></a>
	<span itemprop="ratingCount" content="812"></span>
</body></html>`

func profileHTML(friendSlug string, books int) string {
	return fmt.Sprintf(`<html><body class="desktop withSiteHeaderTopFullImage">
		<div class="left">
			<div class="friendName"><a href="/user/show/%s">friend</a></div>
			%d books | 10 friends
		</div>
	</body></html>`, friendSlug, books)
}

func TestSessionExtractsAndPersistsBook(t *testing.T) {
	bookURL := testOrigin + "/book/show/12345-the-test-book"
	fetcher := newStubFetcher(map[string]string{bookURL: sessionBookHTML})
	sink := &memorySink{}

	session := NewSession(testConfig(bookURL), fetcher, nil, sink, nil, testLogger())
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	books := sink.byVariant(types.VariantBook)
	if len(books) != 1 {
		t.Fatalf("Persisted %d book records, want 1", len(books))
	}
	book := books[0].(*types.BookRecord)
	if book.Title != "The Test Book" {
		t.Fatalf("Title = %q", book.Title)
	}
}

func TestSessionFollowsPopularConnections(t *testing.T) {
	rootURL := testOrigin + "/user/show/1-root"
	popularURL := testOrigin + "/user/show/2-popular"
	fetcher := newStubFetcher(map[string]string{
		rootURL:    profileHTML("2-popular", 120),
		popularURL: profileHTML("3-quiet", 10),
	})
	sink := &memorySink{}

	session := NewSession(testConfig(rootURL), fetcher, nil, sink, nil, testLogger())
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if fetcher.count(popularURL) != 1 {
		t.Fatalf("Popular connection fetched %d times, want 1", fetcher.count(popularURL))
	}
	quietURL := testOrigin + "/user/show/3-quiet"
	if fetcher.count(quietURL) != 0 {
		t.Fatal("Below-threshold connection must not be fetched")
	}

	profiles := sink.byVariant(types.VariantUserProfile)
	if len(profiles) != 2 {
		t.Fatalf("Persisted %d profile records, want 2", len(profiles))
	}
}

func TestSessionBatchesProfileRecords(t *testing.T) {
	rootURL := testOrigin + "/user/show/1-root"
	pages := map[string]string{rootURL: profileHTML("2-a", 120)}
	for i := 2; i <= 6; i++ {
		pages[fmt.Sprintf("%s/user/show/%d-a", testOrigin, i)] =
			profileHTML(fmt.Sprintf("%d-a", i+1), 120)
	}
	pages[testOrigin+"/user/show/7-a"] = profileHTML("8-a", 0)
	fetcher := newStubFetcher(pages)
	sink := &memorySink{}

	cfg := testConfig(rootURL)
	cfg.ProfileBatchSize = 5
	session := NewSession(cfg, fetcher, nil, sink, nil, testLogger())
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	profiles := sink.byVariant(types.VariantUserProfile)
	if len(profiles) != 7 {
		t.Fatalf("Persisted %d profile records, want 7", len(profiles))
	}
	if sink.batches[0] != 5 {
		t.Fatalf("First flush wrote %d records, want a full batch of 5", sink.batches[0])
	}
}

func TestSessionStopsAfterEmittedProfileCap(t *testing.T) {
	pages := make(map[string]string)
	for i := 1; i <= 4; i++ {
		pages[fmt.Sprintf("%s/user/show/%d-a", testOrigin, i)] =
			profileHTML(fmt.Sprintf("%d-a", i+1), 120)
	}
	fetcher := newStubFetcher(pages)
	sink := &memorySink{}

	cfg := testConfig(testOrigin + "/user/show/1-a")
	cfg.MaxProfiles = 2
	cfg.ProfileBatchSize = 1
	// Review-list follow-ups must not eat into the profile cap.
	cfg.CollectReviews = true
	session := NewSession(cfg, fetcher, nil, sink, nil, testLogger())
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	profiles := sink.byVariant(types.VariantUserProfile)
	if len(profiles) != 2 {
		t.Fatalf("Persisted %d profile records, want exactly the cap of 2", len(profiles))
	}
	if fetcher.count(testOrigin+"/user/show/3-a") != 0 {
		t.Fatal("Session must stop fetching once the profile cap is reached")
	}
}

func TestSessionReportsFailedInputs(t *testing.T) {
	goodURL := testOrigin + "/book/show/1-good"
	badURL := testOrigin + "/book/show/2-missing"
	fetcher := newStubFetcher(map[string]string{goodURL: sessionBookHTML})
	sink := &memorySink{}

	session := NewSession(testConfig(goodURL, badURL), fetcher, nil, sink, nil, testLogger())
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.byVariant(types.VariantBook)) != 1 {
		t.Fatal("Fetchable input should still produce its record")
	}
	diags := session.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Diagnostics = %+v, want one entry", diags)
	}
	if diags[0].URL != badURL || diags[0].Error == "" {
		t.Fatalf("Diagnostic = %+v", diags[0])
	}
}

func TestSessionRetriesIncompletePageOnce(t *testing.T) {
	bookURL := testOrigin + "/book/show/12345-the-test-book"
	incomplete := `<html><body class="modernLayout"><p>loading...</p></body></html>`
	fetcher := newStubFetcher(map[string]string{bookURL: incomplete})
	rendered := newStubFetcher(map[string]string{bookURL: sessionBookHTML})
	sink := &memorySink{}

	session := NewSession(testConfig(bookURL), fetcher, rendered, sink, nil, testLogger())
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if fetcher.count(bookURL) != 1 || rendered.count(bookURL) != 1 {
		t.Fatalf("Fetch counts = %d plain, %d rendered; want 1 and 1",
			fetcher.count(bookURL), rendered.count(bookURL))
	}
	if len(sink.byVariant(types.VariantBook)) != 1 {
		t.Fatal("Retry should have produced a persisted record")
	}
}

func TestSessionCollectsReviewsWhenConfigured(t *testing.T) {
	profileURL := testOrigin + "/user/show/3114744-david-basile"
	reviewURL := testOrigin + "/review/list/3114744-david-basile?shelf=read"
	reviewHTML := `<html><body class="desktop withSiteHeaderTopFullImage">
		<table id="books">
			<tr class="bookalike review">
				<td class="field title"><a title="The Test Book" href="/book/show/1-a">The Test Book</a></td>
				<td class="field rating"><span class="staticStars" title="liked it"></span></td>
			</tr>
		</table>
	</body></html>`
	fetcher := newStubFetcher(map[string]string{
		profileURL: `<html><body class="desktop withSiteHeaderTopFullImage"></body></html>`,
		reviewURL:  reviewHTML,
	})
	sink := &memorySink{}

	cfg := testConfig(profileURL)
	cfg.CollectReviews = true
	session := NewSession(cfg, fetcher, nil, sink, nil, testLogger())
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	reviews := sink.byVariant(types.VariantUserReview)
	if len(reviews) != 1 {
		t.Fatalf("Persisted %d review records, want 1", len(reviews))
	}
	review := reviews[0].(*types.UserReviewRecord)
	if review.UserID != 3114744 || review.UserRating != 3 {
		t.Fatalf("Review = %+v", review)
	}
}
