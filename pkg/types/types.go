// pkg/types/types.go
package types

import (
	"fmt"
	"sort"
)

// PageLayout identifies which of the two site templates produced a page.
type PageLayout string

const (
	// LayoutLegacy is the server-rendered template. It is recognized by a
	// body class beginning with "desktop withSiteHeaderTopFullImage".
	LayoutLegacy PageLayout = "legacy"
	// LayoutModern is the template that embeds a denormalized JSON object
	// graph in a __NEXT_DATA__ script tag.
	LayoutModern PageLayout = "modern"
)

// PageKind classifies what a fetched URL is expected to contain.
type PageKind string

const (
	PageBook       PageKind = "book"
	PageAuthor     PageKind = "author"
	PageProfile    PageKind = "profile"
	PageReviewList PageKind = "reviews"
	PageSitemap    PageKind = "sitemap"
)

// RawPage is one fetched document. It is created once per fetch, never
// mutated, and consumed exactly once by the page classifier.
type RawPage struct {
	URL      string   `json:"url"`
	FinalURL string   `json:"final_url,omitempty"`
	Kind     PageKind `json:"kind"`
	Body     []byte   `json:"-"`
}

// RecordVariant names a canonical record type. The values double as sink
// routing keys and output file prefixes.
type RecordVariant string

const (
	VariantBook        RecordVariant = "book"
	VariantAuthor      RecordVariant = "author"
	VariantUserProfile RecordVariant = "userprofile"
	VariantUserReview  RecordVariant = "userreview"
)

// Record is the common surface of all canonical record variants.
type Record interface {
	Variant() RecordVariant
	// Key returns the record's natural identity (a URL or user id).
	Key() string
	// Validate reports whether the record satisfies the sink schema. A
	// failing record is discarded with a diagnostic, never persisted.
	Validate() error
}

// BookRecord is the canonical output for one /book/show page.
type BookRecord struct {
	URL                 string      `json:"url"`
	Title               string      `json:"title,omitempty"`
	Author              string      `json:"author,omitempty"`
	AuthorURL           string      `json:"author_url,omitempty"`
	NumRatings          *int        `json:"num_ratings,omitempty"`
	NumReviews          *int        `json:"num_reviews,omitempty"`
	AvgRating           *float64    `json:"avg_rating,omitempty"`
	NumPages            *int        `json:"num_pages,omitempty"`
	Language            string      `json:"language,omitempty"`
	PublishDate         *string     `json:"publish_date,omitempty"`
	OriginalPublishYear *int        `json:"original_publish_year,omitempty"`
	ISBN                *string     `json:"isbn,omitempty"`
	ISBN13              *string     `json:"isbn13,omitempty"`
	ASIN                *string     `json:"asin,omitempty"`
	Series              string      `json:"series,omitempty"`
	Genres              []string    `json:"genres,omitempty"`
	RatingHistogram     map[int]int `json:"rating_histogram,omitempty"`
}

func (r *BookRecord) Variant() RecordVariant { return VariantBook }
func (r *BookRecord) Key() string            { return r.URL }

func (r *BookRecord) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("book record missing url")
	}
	if err := validateHistogram(r.RatingHistogram); err != nil {
		return fmt.Errorf("book %s: %w", r.URL, err)
	}
	return nil
}

// AuthorRecord is the canonical output for one /author/show page.
type AuthorRecord struct {
	URL        string   `json:"url"`
	Name       string   `json:"name,omitempty"`
	BirthDate  *string  `json:"birth_date,omitempty"`
	DeathDate  *string  `json:"death_date,omitempty"`
	AvgRating  *float64 `json:"avg_rating,omitempty"`
	NumRatings *int     `json:"num_ratings,omitempty"`
	NumReviews *int     `json:"num_reviews,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Influences []string `json:"influences,omitempty"`
	About      string   `json:"about,omitempty"`
}

func (r *AuthorRecord) Variant() RecordVariant { return VariantAuthor }
func (r *AuthorRecord) Key() string            { return r.URL }

func (r *AuthorRecord) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("author record missing url")
	}
	return nil
}

// UserProfileRecord marks one discovered user profile.
type UserProfileRecord struct {
	ProfileURL string `json:"profile_url"`
}

func (r *UserProfileRecord) Variant() RecordVariant { return VariantUserProfile }
func (r *UserProfileRecord) Key() string            { return r.ProfileURL }

func (r *UserProfileRecord) Validate() error {
	if r.ProfileURL == "" {
		return fmt.Errorf("profile record missing url")
	}
	return nil
}

// UserReviewRecord is one shelf entry from a user's read list.
type UserReviewRecord struct {
	UserID     int     `json:"user_id"`
	UserIDSlug string  `json:"user_id_slug,omitempty"`
	BookLink   string  `json:"book_link,omitempty"`
	BookName   string  `json:"book_name,omitempty"`
	AuthorLink string  `json:"author_link,omitempty"`
	AuthorName string  `json:"author_name,omitempty"`
	DateRead   *string `json:"date_read,omitempty"`
	DateAdded  *string `json:"date_added,omitempty"`
	UserRating int     `json:"user_rating"`
}

func (r *UserReviewRecord) Variant() RecordVariant { return VariantUserReview }
func (r *UserReviewRecord) Key() string            { return fmt.Sprintf("%d", r.UserID) }

func (r *UserReviewRecord) Validate() error {
	if r.UserID == 0 {
		return fmt.Errorf("review record missing user id")
	}
	return nil
}

// validateHistogram enforces the histogram shape: when present, exactly the
// keys 1..5, each with a non-negative count.
func validateHistogram(h map[int]int) error {
	if h == nil {
		return nil
	}
	if len(h) != 5 {
		return fmt.Errorf("rating histogram has %d keys, want 5", len(h))
	}
	for star := 1; star <= 5; star++ {
		count, ok := h[star]
		if !ok {
			return fmt.Errorf("rating histogram missing star level %d", star)
		}
		if count < 0 {
			return fmt.Errorf("rating histogram has negative count for star %d", star)
		}
	}
	return nil
}

// GenreSet deduplicates genre names with set semantics. The result is sorted
// so that equal sets compare equal regardless of discovery order.
func GenreSet(genres []string) []string {
	if len(genres) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// ValidVariants returns all record variants, in sink-routing order.
func ValidVariants() []RecordVariant {
	return []RecordVariant{VariantBook, VariantAuthor, VariantUserProfile, VariantUserReview}
}
