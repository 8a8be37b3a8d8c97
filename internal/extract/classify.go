// internal/extract/classify.go
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openshelf/bookscraper/pkg/types"
)

var (
	// ErrPageIncomplete signals that a modern page arrived without its
	// embedded graph fully rendered. The page is retry-eligible, not
	// malformed.
	ErrPageIncomplete = errors.New("page delivered incomplete")

	// ErrUnparseable signals that a page's container could not be decoded
	// at all. The page is dropped with a diagnostic; no partial record is
	// emitted.
	ErrUnparseable = errors.New("page unparseable")
)

// legacyBodyClassPrefix marks the server-rendered template; it is absent
// from the modern layout.
const legacyBodyClassPrefix = "desktop withSiteHeaderTopFullImage"

// DetectLayout inspects the layout marker on a parsed page.
func DetectLayout(doc *goquery.Document) types.PageLayout {
	class, _ := doc.Find("body").First().Attr("class")
	if strings.HasPrefix(class, legacyBodyClassPrefix) {
		return types.LayoutLegacy
	}
	return types.LayoutModern
}

// BuildRecords dispatches a fetched page to the extraction path for its
// kind and assembles the resulting canonical records. Book and author pages
// yield exactly one record, review-list pages yield one per shelf row, and
// profile pages yield the profile's own record (expansion of a profile's
// connections is the frontier's job).
func BuildRecords(page *types.RawPage) ([]types.Record, error) {
	switch page.Kind {
	case types.PageBook:
		record, err := BuildBook(page)
		if err != nil {
			return nil, err
		}
		return []types.Record{record}, nil
	case types.PageAuthor:
		record, err := BuildAuthor(page)
		if err != nil {
			return nil, err
		}
		return []types.Record{record}, nil
	case types.PageReviewList:
		reviews, err := BuildReviews(page)
		if err != nil {
			return nil, err
		}
		records := make([]types.Record, len(reviews))
		for i, review := range reviews {
			records[i] = review
		}
		return records, nil
	case types.PageProfile:
		return []types.Record{&types.UserProfileRecord{ProfileURL: pageURL(page)}}, nil
	default:
		return nil, fmt.Errorf("no extraction path for page kind %q", page.Kind)
	}
}

// parsePage parses the page body into a markup tree.
func parsePage(page *types.RawPage) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return doc, nil
}

// pageURL returns the fetched page's effective URL, preferring the
// post-redirect address.
func pageURL(page *types.RawPage) string {
	if page.FinalURL != "" {
		return page.FinalURL
	}
	return page.URL
}

// pagePath returns the URL path of the fetched page. Book records store
// relative paths because that is how review rows reference them.
func pagePath(page *types.RawPage) string {
	u, err := url.Parse(pageURL(page))
	if err != nil {
		return pageURL(page)
	}
	return u.Path
}
