// internal/extract/book.go
package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/openshelf/bookscraper/internal/graph"
	"github.com/openshelf/bookscraper/pkg/types"
)

// Entity type tags in the modern layout's object graph.
const (
	entityBook        = "Book"
	entityWork        = "Work"
	entityContributor = "Contributor"
	entitySeries      = "Series"
	entityBookGenre   = "BookGenre"
	entityGenre       = "Genre"
)

// Similar-editions metadata hides identifiers inside escaped script text on
// legacy pages; these pull them back out.
const (
	editionISBNPattern   = `editionInfo\\'>\\nisbn:\s(\d+)\\n<\\`
	editionISBN13Pattern = `editionInfo\\'>\\nisbn13:\s(\d+)\\n<\\`
	editionASINPattern   = `editionInfo\\'>\\nasin:\s([A-Za-z0-9]+)\\n<\\`
)

// BuildBook extracts one BookRecord from a /book/show page, choosing the
// legacy or modern path off the page's layout marker.
func BuildBook(page *types.RawPage) (*types.BookRecord, error) {
	doc, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	if DetectLayout(doc) == types.LayoutLegacy {
		return buildLegacyBook(page, doc), nil
	}
	return buildModernBook(page, doc)
}

// buildLegacyBook drives the field pipeline over the server-rendered markup.
func buildLegacyBook(page *types.RawPage, doc *goquery.Document) *types.BookRecord {
	src := &Source{Doc: doc}
	record := &types.BookRecord{URL: pagePath(page)}

	if title, ok := (Chain{Markup{Selector: "#bookTitle"}}).Extract(src); ok {
		record.Title = title
	}
	if author, ok := (Chain{Markup{Selector: "a.authorName > span"}}).Extract(src); ok {
		record.Author = author
	}
	if authorURL, ok := (Chain{Markup{Selector: "a.authorName", Attr: "href"}}).Extract(src); ok {
		record.AuthorURL = authorURL
	}

	if raw, ok := (Chain{Markup{Selector: "[itemprop=ratingCount]", Attr: "content"}}).Extract(src); ok {
		record.NumRatings = ParseCount(raw)
	}
	if raw, ok := (Chain{Markup{Selector: "[itemprop=reviewCount]", Attr: "content"}}).Extract(src); ok {
		record.NumReviews = ParseCount(raw)
	}
	if raw, ok := (Chain{Markup{Selector: "span[itemprop=ratingValue]"}}).Extract(src); ok {
		record.AvgRating = ParseRating(raw)
	}
	if raw, ok := (Chain{Markup{Selector: "span[itemprop=numberOfPages]"}}).Extract(src); ok {
		record.NumPages = LeadingPageCount(raw)
	}
	if raw, ok := (Chain{Markup{Selector: "div[itemprop=inLanguage]"}}).Extract(src); ok {
		record.Language = Language(raw)
	}

	publishChain := Chain{
		Markup{Selector: "div.row", Contains: "published"},
		Markup{Selector: "nobr.greyText", Contains: "published"},
	}
	if raw, ok := publishChain.Extract(src); ok {
		record.PublishDate = FuzzyDate(raw)
	}
	if raw, ok := (Chain{Markup{Selector: "nobr.greyText", Contains: "first published"}}).Extract(src); ok {
		record.OriginalPublishYear = FirstPublishedYear(raw)
	}

	record.Genres = types.GenreSet(MarkupAll(doc, `div.left > a.bookPageGenreLink[href*="/genres/"]`))
	if series, ok := (Chain{Markup{Selector: `div.infoBoxRowItem > a[href*="/series/"]`}}).Extract(src); ok {
		record.Series = series
	}

	isbnChain := Chain{
		Markup{Selector: "div.infoBoxRowItem[itemprop=isbn]", Pattern: `\b(\d{10})\b`},
		Markup{Selector: "span[itemprop=isbn]", Pattern: `\b(\d{10})\b`},
		Markup{Selector: "div.infoBoxRowItem", Pattern: `\b(\d{10})\b`},
		Markup{Selector: "script", Pattern: editionISBNPattern},
	}
	if raw, ok := isbnChain.Extract(src); ok {
		record.ISBN = ISBN(raw)
	}

	isbn13Chain := Chain{
		Markup{Selector: "div.infoBoxRowItem[itemprop=isbn]", Pattern: `\b(\d{13})\b`},
		Markup{Selector: "span[itemprop=isbn]", Pattern: `\b(\d{13})\b`},
		Markup{Selector: "div.infoBoxRowItem", Pattern: `\b(\d{13})\b`},
		Markup{Selector: "script", Pattern: editionISBN13Pattern},
	}
	if raw, ok := isbn13Chain.Extract(src); ok {
		record.ISBN13 = ISBN13(raw)
	}

	asinChain := Chain{
		Markup{Selector: "div.infoBoxRowItem[itemprop=asin]"},
		Markup{Selector: "script", Pattern: editionASINPattern},
	}
	if raw, ok := asinChain.Extract(src); ok {
		record.ASIN = ASIN(raw)
	}

	if script, err := (Markup{Selector: `script[type*="protovis"]`}).Lookup(src); err == nil && script != "" {
		record.RatingHistogram = DecodeHistogram(script)
	}

	return record
}

// buildModernBook resolves the embedded object graph and drives the same
// field pipeline over graph paths. A page whose graph has not been delivered
// yet is flagged for a retry fetch rather than treated as malformed.
func buildModernBook(page *types.RawPage, doc *goquery.Document) (*types.BookRecord, error) {
	script := doc.Find("#__NEXT_DATA__").First().Text()
	if script == "" {
		return nil, fmt.Errorf("%w: no embedded page data on %s", ErrPageIncomplete, pageURL(page))
	}

	g, err := graph.DecodeEmbedded([]byte(script))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	book, bookOK := g.Resolve(entityBook, graph.Largest)
	work, workOK := g.Resolve(entityWork, graph.Largest)
	contributor, contribOK := g.Resolve(entityContributor, graph.Largest)
	if !bookOK || (!workOK && !contribOK) {
		return nil, fmt.Errorf("%w: object graph on %s is missing its core entities", ErrPageIncomplete, pageURL(page))
	}

	entities := map[string]graph.Node{
		entityBook:        book,
		entityWork:        work,
		entityContributor: contributor,
	}
	if series, ok := g.Resolve(entitySeries, graph.First); ok {
		entities[entitySeries] = series
	}
	src := &Source{Entities: entities}

	record := &types.BookRecord{URL: pagePath(page)}

	if title, ok := (Chain{GraphPath{Entity: entityBook, Path: []string{"title"}}}).Extract(src); ok {
		record.Title = title
	}
	if author, ok := (Chain{GraphPath{Entity: entityContributor, Path: []string{"name"}}}).Extract(src); ok {
		record.Author = author
	}
	if authorURL, ok := (Chain{GraphPath{Entity: entityContributor, Path: []string{"webUrl"}}}).Extract(src); ok {
		record.AuthorURL = authorURL
	}

	if raw, ok := (Chain{GraphPath{Entity: entityWork, Path: []string{"stats", "ratingsCount"}}}).Extract(src); ok {
		record.NumRatings = ParseCount(raw)
	}
	if raw, ok := (Chain{GraphPath{Entity: entityWork, Path: []string{"stats", "textReviewsCount"}}}).Extract(src); ok {
		record.NumReviews = ParseCount(raw)
	}
	if raw, ok := (Chain{GraphPath{Entity: entityWork, Path: []string{"stats", "averageRating"}}}).Extract(src); ok {
		record.AvgRating = ParseRating(raw)
	}
	if raw, ok := (Chain{GraphPath{Entity: entityBook, Path: []string{"details", "numPages"}}}).Extract(src); ok {
		record.NumPages = LeadingPageCount(raw)
	}
	if raw, ok := (Chain{GraphPath{Entity: entityBook, Path: []string{"details", "language", "name"}}}).Extract(src); ok {
		record.Language = Language(raw)
	}

	// publish_date and original_publish_year both read publicationTime; on
	// this layout the two will always agree. Kept faithful to the source
	// feed's behavior.
	if epoch, ok := book.Path("details", "publicationTime").Int64(); ok {
		stamp := EpochToTimestamp(epoch)
		record.PublishDate = &stamp
		year := YearFromEpoch(epoch)
		record.OriginalPublishYear = &year
	}

	if raw, ok := (Chain{GraphPath{Entity: entityBook, Path: []string{"details", "isbn"}}}).Extract(src); ok {
		record.ISBN = ISBN(raw)
	}
	if raw, ok := (Chain{GraphPath{Entity: entityBook, Path: []string{"details", "isbn13"}}}).Extract(src); ok {
		record.ISBN13 = ISBN13(raw)
	}
	if raw, ok := (Chain{GraphPath{Entity: entityBook, Path: []string{"details", "asin"}}}).Extract(src); ok {
		record.ASIN = ASIN(raw)
	}

	if series, ok := (Chain{GraphPath{Entity: entitySeries, Path: []string{"title"}}}).Extract(src); ok {
		record.Series = series
	}

	record.Genres = types.GenreSet(modernGenres(book))

	if counts, ok := ratingsDistribution(work); ok {
		record.RatingHistogram = HistogramFromCounts(counts)
	}

	return record, nil
}

// modernGenres unwraps the book's genre links. Entries that are not genre
// links, or whose inner node is not a genre, are skipped individually.
func modernGenres(book graph.Node) []string {
	links, ok := book.Get("bookGenres").List()
	if !ok {
		return nil
	}
	var genres []string
	for _, link := range links {
		linkNode, ok := link.Node()
		if !ok || linkNode.TypeTag() != entityBookGenre {
			continue
		}
		genreNode, ok := linkNode.Get("genre").Node()
		if !ok || genreNode.TypeTag() != entityGenre {
			continue
		}
		if name, ok := genreNode.Get("name").String(); ok && name != "" {
			genres = append(genres, name)
		}
	}
	return genres
}

// ratingsDistribution reads the modern layout's five-count rating list,
// ordered star 1 first.
func ratingsDistribution(work graph.Node) ([]int, bool) {
	values, ok := work.Path("stats", "ratingsCountDist").List()
	if !ok || len(values) != 5 {
		return nil, false
	}
	counts := make([]int, 5)
	for i, v := range values {
		n, ok := v.Int()
		if !ok {
			return nil, false
		}
		counts[i] = n
	}
	return counts, true
}
