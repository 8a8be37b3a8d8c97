// internal/frontier/sitemap_test.go
package frontier

import (
	"bytes"
	"compress/gzip"
	"reflect"
	"testing"
)

const sitemapIndexXMLDoc = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>https://example.com/sitemap.user.1.xml.gz</loc></sitemap>
	<sitemap><loc>https://example.com/sitemap.user.2.xml.gz</loc></sitemap>
</sitemapindex>`

const leafSitemapOne = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.com/user/show/1-a</loc></url>
	<url><loc>https://example.com/user/show/2-b</loc></url>
</urlset>`

const leafSitemapTwo = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.com/user/show/2-b</loc></url>
	<url><loc>https://example.com/user/show/3-c</loc></url>
</urlset>`

func TestParseSitemapIndex(t *testing.T) {
	doc, err := ParseSitemap([]byte(sitemapIndexXMLDoc))
	if err != nil {
		t.Fatalf("ParseSitemap failed: %v", err)
	}
	if !doc.Index {
		t.Fatal("Document should classify as an index")
	}
	want := []string{
		"https://example.com/sitemap.user.1.xml.gz",
		"https://example.com/sitemap.user.2.xml.gz",
	}
	if !reflect.DeepEqual(doc.Locations, want) {
		t.Fatalf("Locations = %v", doc.Locations)
	}
}

func TestParseSitemapGzipped(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(leafSitemapOne)); err != nil {
		t.Fatalf("Compress fixture: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Compress fixture: %v", err)
	}

	doc, err := ParseSitemap(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseSitemap failed: %v", err)
	}
	if doc.Index || len(doc.Locations) != 2 {
		t.Fatalf("Decoded doc = %+v", doc)
	}
}

func TestParseSitemapRejectsOtherXML(t *testing.T) {
	if _, err := ParseSitemap([]byte(`<?xml version="1.0"?><rss></rss>`)); err == nil {
		t.Fatal("Expected error for non-sitemap XML")
	}
}

// An index with two leaves whose entries overlap yields each profile URL
// exactly once.
func TestEnumerateIndexThenLeavesWithoutDuplicates(t *testing.T) {
	f := New()

	index, err := ParseSitemap([]byte(sitemapIndexXMLDoc))
	if err != nil {
		t.Fatalf("Parse index: %v", err)
	}
	if queued := index.Enumerate(f); queued != 2 {
		t.Fatalf("Index queued %d children, want 2", queued)
	}

	// Drain the two child sitemaps as the crawl would.
	for i := 0; i < 2; i++ {
		if _, ok := f.Next(); !ok {
			t.Fatal("Expected a queued child sitemap")
		}
	}

	one, err := ParseSitemap([]byte(leafSitemapOne))
	if err != nil {
		t.Fatalf("Parse leaf one: %v", err)
	}
	two, err := ParseSitemap([]byte(leafSitemapTwo))
	if err != nil {
		t.Fatalf("Parse leaf two: %v", err)
	}

	queued := one.Enumerate(f) + two.Enumerate(f)
	if queued != 3 {
		t.Fatalf("Leaves queued %d profiles, want 3 (shared entry deduplicated)", queued)
	}

	seen := make(map[string]bool)
	for url, ok := f.Next(); ok; url, ok = f.Next() {
		if seen[url] {
			t.Fatalf("URL %q handed out twice", url)
		}
		seen[url] = true
	}
	if len(seen) != 3 {
		t.Fatalf("Enumerated %d profiles, want 3", len(seen))
	}
}
