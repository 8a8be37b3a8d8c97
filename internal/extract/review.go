// internal/extract/review.go
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openshelf/bookscraper/pkg/types"
)

// userSlugRegex pulls the "<id>-<name>" tail from profile and review-list
// URLs.
var userSlugRegex = regexp.MustCompile(`/(?:user/show|review/list)/([^/?#]+)`)

// starRatings maps the shelf table's rating phrases to star levels.
var starRatings = map[string]int{
	"did not like it": 1,
	"it was ok":       2,
	"liked it":        3,
	"really liked it": 4,
	"it was amazing":  5,
}

// ParseUserSlug splits a profile or review-list URL into the numeric user id
// and the full id-name slug.
func ParseUserSlug(pageURL string) (int, string, error) {
	m := userSlugRegex.FindStringSubmatch(pageURL)
	if m == nil {
		return 0, "", fmt.Errorf("no user slug in url %q", pageURL)
	}
	slug := m[1]
	idPart := slug
	if i := strings.IndexByte(slug, '-'); i >= 0 {
		idPart = slug[:i]
	}
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, "", fmt.Errorf("user slug %q has no numeric id", slug)
	}
	return id, slug, nil
}

// ReviewListURL converts a profile URL into the user's read-shelf page.
func ReviewListURL(origin, profileURL string) (string, error) {
	_, slug, err := ParseUserSlug(profileURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/review/list/%s?shelf=read", origin, slug), nil
}

// BuildReviews extracts one UserReviewRecord per shelf row of a
// /review/list page. Rows missing individual fields still produce a record;
// only a page without a recognizable user identity fails.
func BuildReviews(page *types.RawPage) ([]*types.UserReviewRecord, error) {
	userID, slug, err := ParseUserSlug(pageURL(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	doc, err := parsePage(page)
	if err != nil {
		return nil, err
	}

	var reviews []*types.UserReviewRecord
	doc.Find("tr.bookalike.review").Each(func(_ int, row *goquery.Selection) {
		record := &types.UserReviewRecord{
			UserID:     userID,
			UserIDSlug: slug,
		}

		title := row.Find("td.field.title a").First()
		record.BookLink, _ = title.Attr("href")
		record.BookName = strings.TrimSpace(title.AttrOr("title", title.Text()))

		author := row.Find("td.field.author a").First()
		record.AuthorLink, _ = author.Attr("href")
		record.AuthorName = strings.TrimSpace(author.Text())

		if raw := strings.TrimSpace(row.Find("td.field.date_read span.date_read_value").First().Text()); raw != "" {
			record.DateRead = FuzzyDate(raw)
		}
		if raw := strings.TrimSpace(row.Find("td.field.date_added span").First().Text()); raw != "" {
			record.DateAdded = FuzzyDate(raw)
		}

		phrase := strings.TrimSpace(row.Find("td.field.rating span.staticStars").First().AttrOr("title", ""))
		record.UserRating = starRatings[strings.ToLower(phrase)]

		reviews = append(reviews, record)
	})

	return reviews, nil
}
