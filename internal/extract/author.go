// internal/extract/author.go
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openshelf/bookscraper/pkg/types"
)

// BuildAuthor extracts one AuthorRecord from an /author/show page. Author
// pages still ship the server-rendered template, so this is a pure markup
// path.
func BuildAuthor(page *types.RawPage) (*types.AuthorRecord, error) {
	doc, err := parsePage(page)
	if err != nil {
		return nil, err
	}

	src := &Source{Doc: doc}
	record := &types.AuthorRecord{URL: pagePath(page)}

	if name, ok := (Chain{
		Markup{Selector: "h1.authorName > span[itemprop=name]"},
		Markup{Selector: "h1.authorName"},
	}).Extract(src); ok {
		record.Name = name
	}

	if raw, ok := (Chain{Markup{Selector: "div.dataItem[itemprop=birthDate]"}}).Extract(src); ok {
		record.BirthDate = FuzzyDate(raw)
	}
	if raw, ok := (Chain{Markup{Selector: "div.dataItem[itemprop=deathDate]"}}).Extract(src); ok {
		record.DeathDate = FuzzyDate(raw)
	}

	if raw, ok := (Chain{Markup{Selector: "span.average[itemprop=ratingValue]"}}).Extract(src); ok {
		record.AvgRating = ParseRating(raw)
	}
	if raw, ok := (Chain{
		Markup{Selector: "span[itemprop=ratingCount]", Attr: "content"},
		Markup{Selector: "span[itemprop=ratingCount]", Pattern: `([\d,]+)`},
	}).Extract(src); ok {
		record.NumRatings = ParseCount(raw)
	}
	if raw, ok := (Chain{
		Markup{Selector: "span[itemprop=reviewCount]", Attr: "content"},
		Markup{Selector: "span[itemprop=reviewCount]", Pattern: `([\d,]+)`},
	}).Extract(src); ok {
		record.NumReviews = ParseCount(raw)
	}

	record.Genres = types.GenreSet(MarkupAll(doc, `div.dataItem > a[href*="/genres/"]`))
	record.Influences = types.GenreSet(MarkupAll(doc, `div.dataItem > span > a[href*="/author/show/"]`))

	record.About = aboutText(doc)

	return record, nil
}

// aboutText flattens the author bio: tags stripped by the text walk, lines
// trimmed, empties dropped, and the leading "edit data" chrome removed.
func aboutText(doc *goquery.Document) string {
	sel := doc.Find("div.aboutAuthorInfo").First()
	if sel.Length() == 0 {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) > 0 && strings.EqualFold(lines[0], "edit data") {
		lines = lines[1:]
	}
	return strings.Join(lines, " ")
}
