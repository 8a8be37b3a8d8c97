// internal/output/sink.go
package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openshelf/bookscraper/internal/extract"
	"github.com/openshelf/bookscraper/pkg/types"
)

// Sink persists canonical records. Implementations segregate records by
// variant; a single Write call may carry a mix.
type Sink interface {
	Write(records []types.Record) error
	Flush() error
	Close() error
}

// nowFunc is swapped in tests to pin the ingest timestamp.
var nowFunc = time.Now

// document flattens a record for persistence and stamps the ingest time.
// The stamp happens here, at the sink boundary, so a record re-extracted
// later gets a fresh one.
func document(record types.Record) (map[string]interface{}, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", record.Variant(), err)
	}
	doc := make(map[string]interface{})
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("flatten %s record: %w", record.Variant(), err)
	}
	doc["ingest_time"] = nowFunc().UTC().Format(extract.TimeFormat)
	return doc, nil
}

// variantColumns fixes the column order used by tabular sinks.
var variantColumns = map[types.RecordVariant][]string{
	types.VariantBook: {
		"url", "title", "author", "author_url", "num_ratings", "num_reviews",
		"avg_rating", "num_pages", "language", "publish_date",
		"original_publish_year", "isbn", "isbn13", "asin", "series", "genres",
		"rating_histogram", "ingest_time",
	},
	types.VariantAuthor: {
		"url", "name", "birth_date", "death_date", "avg_rating", "num_ratings",
		"num_reviews", "genres", "influences", "about", "ingest_time",
	},
	types.VariantUserProfile: {
		"profile_url", "ingest_time",
	},
	types.VariantUserReview: {
		"user_id", "user_id_slug", "book_link", "book_name", "author_link",
		"author_name", "date_read", "date_added", "user_rating", "ingest_time",
	},
}

// splitByVariant groups a mixed batch for per-variant persistence.
func splitByVariant(records []types.Record) map[types.RecordVariant][]types.Record {
	grouped := make(map[types.RecordVariant][]types.Record)
	for _, record := range records {
		grouped[record.Variant()] = append(grouped[record.Variant()], record)
	}
	return grouped
}
