// internal/frontier/sitemap.go
package frontier

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
)

// gzipMagic is the two-byte header of a gzip stream. Sitemap servers hand
// out .xml.gz files whose bodies may or may not already be decompressed by
// transport-level content encoding, so the bytes are sniffed rather than
// trusting the URL suffix.
var gzipMagic = []byte{0x1f, 0x8b}

// SitemapDoc is a parsed sitemap document: either an index pointing at
// further sitemaps, or a leaf listing page locations.
type SitemapDoc struct {
	Index     bool
	Locations []string
}

type sitemapIndexXML struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSetXML struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// ParseSitemap decodes a sitemap body, transparently gunzipping compressed
// payloads, and classifies it by its root element.
func ParseSitemap(body []byte) (*SitemapDoc, error) {
	if bytes.HasPrefix(body, gzipMagic) {
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap: %w", err)
		}
		defer r.Close()
		body, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap: %w", err)
		}
	}

	root, err := rootElement(body)
	if err != nil {
		return nil, err
	}

	switch root {
	case "sitemapindex":
		var idx sitemapIndexXML
		if err := xml.Unmarshal(body, &idx); err != nil {
			return nil, fmt.Errorf("decode sitemap index: %w", err)
		}
		doc := &SitemapDoc{Index: true}
		for _, entry := range idx.Sitemaps {
			if entry.Loc != "" {
				doc.Locations = append(doc.Locations, entry.Loc)
			}
		}
		return doc, nil
	case "urlset":
		var set urlSetXML
		if err := xml.Unmarshal(body, &set); err != nil {
			return nil, fmt.Errorf("decode sitemap: %w", err)
		}
		doc := &SitemapDoc{}
		for _, entry := range set.URLs {
			if entry.Loc != "" {
				doc.Locations = append(doc.Locations, entry.Loc)
			}
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unexpected sitemap root element %q", root)
	}
}

// Enumerate feeds a parsed sitemap into the frontier. Index entries are
// queued for fetching as further sitemaps; leaf entries are queued as
// profile URLs with no popularity gate. The frontier's dedup keeps a
// profile listed in two leaves from being queued twice, and keeps index
// cycles from recursing forever. Returns the number of newly queued URLs.
func (d *SitemapDoc) Enumerate(f *Frontier) int {
	queued := 0
	for _, loc := range d.Locations {
		if f.Enqueue(loc) {
			queued++
		}
	}
	return queued
}

func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("scan sitemap root: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
