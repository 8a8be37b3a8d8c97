// internal/frontier/social.go
package frontier

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/openshelf/bookscraper/pkg/types"
)

// booksCountRegex pulls the shelf size out of a connection block's
// "NNN books | MMM friends" caption.
var booksCountRegex = regexp.MustCompile(`\b(\d+)\sbooks`)

// profilePathPrefix identifies a profile page; author pages and anything
// else reached transitively are not expanded.
const profilePathPrefix = "/user/show/"

// DefaultPopularityThreshold is the shelf size a connection must strictly
// exceed before it is worth crawling onward.
const DefaultPopularityThreshold = 50

// SocialExpander walks a profile page's visible connections and queues the
// ones whose shelf size clears the popularity threshold.
type SocialExpander struct {
	Origin    string
	Threshold int
	Log       *logrus.Logger
}

// NewSocialExpander builds an expander for the given site origin. A zero
// threshold falls back to the default.
func NewSocialExpander(origin string, threshold int, log *logrus.Logger) *SocialExpander {
	if threshold <= 0 {
		threshold = DefaultPopularityThreshold
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SocialExpander{Origin: origin, Threshold: threshold, Log: log}
}

// Expand inspects a fetched page and queues its qualifying connections into
// the frontier. Non-profile pages are skipped without error. The page's own
// URL is never re-queued. Returns the number of connections queued.
func (e *SocialExpander) Expand(page *types.RawPage, f *Frontier) (int, error) {
	selfURL := page.URL
	if page.FinalURL != "" {
		selfURL = page.FinalURL
	}

	if !e.isProfile(selfURL) {
		e.Log.WithField("url", selfURL).Debug("skipping non-profile page")
		return 0, nil
	}
	f.MarkVisited(selfURL)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return 0, fmt.Errorf("parse profile page: %w", err)
	}

	queued := 0
	doc.Find("div.left").Each(func(_ int, block *goquery.Selection) {
		href, ok := block.Find("div.friendName a").First().Attr("href")
		if !ok {
			return
		}
		friendURL := e.absolute(href)
		count := friendBookCount(block)
		f.Observe(friendURL, count)
		if count <= e.Threshold {
			return
		}
		if friendURL == selfURL {
			return
		}
		if f.Enqueue(friendURL) {
			queued++
		}
	})

	e.Log.WithFields(logrus.Fields{
		"url":    selfURL,
		"queued": queued,
	}).Debug("expanded profile connections")
	return queued, nil
}

func (e *SocialExpander) isProfile(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Path, profilePathPrefix)
}

func (e *SocialExpander) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return e.Origin + href
}

// friendBookCount scans a connection block's caption text for the shelf
// size. The last match wins when the block repeats the caption; a block
// with no caption counts as zero.
func friendBookCount(block *goquery.Selection) int {
	count := 0
	for _, m := range booksCountRegex.FindAllStringSubmatch(block.Text(), -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			count = n
		}
	}
	return count
}
