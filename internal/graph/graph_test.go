// internal/graph/graph_test.go
package graph

import (
	"testing"
)

const twoBooksJSON = `{
	"Book:ref1": {
		"__typename": "Book",
		"title": "Partial",
		"details": {"isbn": "1234567890"},
		"legacyId": 1
	},
	"Book:ref2": {
		"__typename": "Book",
		"title": "Complete",
		"legacyId": 2,
		"webUrl": "/book/show/2",
		"description": "x",
		"details": {
			"isbn": "1234567890",
			"isbn13": "1234567890123",
			"numPages": 320,
			"language": {"name": "English"},
			"publicationTime": 1199145600000
		},
		"bookGenres": []
	},
	"Work:ref3": {
		"__typename": "Work",
		"stats": {"ratingsCount": 100, "averageRating": 4.1}
	}
}`

func TestResolveLargestPicksMostCompleteNode(t *testing.T) {
	g, err := Decode([]byte(twoBooksJSON))
	if err != nil {
		t.Fatalf("Failed to decode graph: %v", err)
	}

	node, ok := g.Resolve("Book", Largest)
	if !ok {
		t.Fatal("Expected a Book node to resolve")
	}

	title, _ := node.Get("title").String()
	if title != "Complete" {
		t.Fatalf("Expected the node with more leaf fields, got title %q", title)
	}
}

func TestResolveLargestTieKeepsFirst(t *testing.T) {
	g, err := Decode([]byte(`{
		"Series:a": {"__typename": "Series", "title": "A", "id": 1},
		"Series:b": {"__typename": "Series", "title": "B", "id": 2}
	}`))
	if err != nil {
		t.Fatalf("Failed to decode graph: %v", err)
	}

	node, ok := g.Resolve("Series", Largest)
	if !ok {
		t.Fatal("Expected a Series node to resolve")
	}
	if title, _ := node.Get("title").String(); title != "A" {
		t.Fatalf("Tie should keep the first-encountered node, got %q", title)
	}
}

func TestResolveFirstUsesInsertionOrder(t *testing.T) {
	g, err := Decode([]byte(`{
		"Series:later": {"__typename": "Series", "title": "Second Series", "webUrl": "x", "id": 9},
		"Series:tiny": {"__typename": "Series", "title": "First By Order"}
	}`))
	if err != nil {
		t.Fatalf("Failed to decode graph: %v", err)
	}

	node, ok := g.Resolve("Series", First)
	if !ok {
		t.Fatal("Expected a Series node to resolve")
	}
	if title, _ := node.Get("title").String(); title != "Second Series" {
		t.Fatalf("First should follow insertion order, got %q", title)
	}
}

func TestResolveMissingType(t *testing.T) {
	g, err := Decode([]byte(twoBooksJSON))
	if err != nil {
		t.Fatalf("Failed to decode graph: %v", err)
	}

	if _, ok := g.Resolve("Contributor", Largest); ok {
		t.Fatal("Expected no Contributor node")
	}
}

func TestLeafCountRecursesNestedMaps(t *testing.T) {
	node := Node{
		"__typename": "Book",
		"title":      "x",
		"details": map[string]interface{}{
			"isbn": "1",
			"language": map[string]interface{}{
				"name": "English",
			},
		},
		"genres": []interface{}{"a", "b"},
	}

	// __typename, title, isbn, name, genres (a list is one leaf)
	if got := node.LeafCount(); got != 5 {
		t.Fatalf("Expected leaf count 5, got %d", got)
	}
}

func TestDecodeSkipsScalarEntries(t *testing.T) {
	g, err := Decode([]byte(`{
		"ROOT_QUERY": {"__typename": "Query"},
		"version": 3,
		"Book:x": {"__typename": "Book", "title": "t"}
	}`))
	if err != nil {
		t.Fatalf("Failed to decode graph: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("Expected scalar entries to be skipped, got %d nodes", g.Len())
	}
}

func TestDecodeEmbedded(t *testing.T) {
	body := []byte(`{"props":{"pageProps":{"apolloState":{
		"Book:x": {"__typename": "Book", "title": "t"}
	}}}}`)

	g, err := DecodeEmbedded(body)
	if err != nil {
		t.Fatalf("Failed to decode embedded graph: %v", err)
	}
	if _, ok := g.Resolve("Book", Largest); !ok {
		t.Fatal("Expected Book node in embedded graph")
	}
}

func TestDecodeEmbeddedRejectsMalformed(t *testing.T) {
	if _, err := DecodeEmbedded([]byte(`{"props":`)); err == nil {
		t.Fatal("Expected error for truncated document")
	}
	if _, err := DecodeEmbedded([]byte(`{"props":{"pageProps":{}}}`)); err == nil {
		t.Fatal("Expected error when object graph is absent")
	}
}

func TestPathLookup(t *testing.T) {
	node := Node{
		"stats": map[string]interface{}{
			"ratingsCount": float64(812),
		},
	}

	count, ok := node.Path("stats", "ratingsCount").Int()
	if !ok || count != 812 {
		t.Fatalf("Expected ratingsCount 812, got %d (ok=%v)", count, ok)
	}

	if v := node.Path("stats", "missing", "deeper"); !v.IsNil() {
		t.Fatal("Expected nil value for missing path")
	}
}
