// internal/extract/strategy.go
package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openshelf/bookscraper/internal/graph"
)

// Source is the material one page offers to extraction strategies: the
// parsed markup tree for legacy pages, the resolved graph entities for
// modern ones. Exactly one side is populated per page.
type Source struct {
	Doc      *goquery.Document
	Entities map[string]graph.Node
}

// Strategy is a single extraction attempt against a page source. A lookup
// failure is non-fatal and equivalent to an empty result; the chain moves
// on to the next strategy either way.
type Strategy interface {
	Lookup(src *Source) (string, error)
}

// Chain evaluates strategies in declared order and returns the first result
// that is non-empty after trimming surrounding whitespace.
type Chain []Strategy

// Extract runs the chain. The boolean is false when every strategy came back
// empty or failed.
func (c Chain) Extract(src *Source) (string, bool) {
	for _, strategy := range c {
		value, err := strategy.Lookup(src)
		if err != nil {
			continue
		}
		value = strings.TrimSpace(value)
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// Markup queries the legacy markup tree with a CSS selector. An optional
// attribute name reads that attribute instead of element text, an optional
// pattern pulls a substring (first capture group when present), and an
// optional Contains filter keeps only elements whose text mentions a phrase.
type Markup struct {
	Selector string
	Attr     string
	Pattern  string
	Contains string
}

func (m Markup) Lookup(src *Source) (string, error) {
	if src == nil || src.Doc == nil {
		return "", fmt.Errorf("markup strategy needs a parsed document")
	}

	var re *regexp.Regexp
	if m.Pattern != "" {
		var err error
		re, err = regexp.Compile(m.Pattern)
		if err != nil {
			return "", fmt.Errorf("markup pattern %q: %w", m.Pattern, err)
		}
	}

	var result string
	src.Doc.Find(m.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var text string
		if m.Attr != "" {
			text, _ = sel.Attr(m.Attr)
		} else {
			text = sel.Text()
		}
		if m.Contains != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(m.Contains)) {
			return true
		}
		if re != nil {
			match := re.FindStringSubmatch(text)
			if match == nil {
				return true
			}
			if len(match) > 1 {
				text = match[1]
			} else {
				text = match[0]
			}
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return true
		}
		result = text
		return false
	})

	return result, nil
}

// MarkupAll collects the trimmed texts of every element a selector matches.
// List-valued fields (genres, influences) use this directly rather than the
// first-wins chain.
func MarkupAll(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// GraphPath reads a scalar by walking keys through one resolved entity.
type GraphPath struct {
	Entity string
	Path   []string
}

func (g GraphPath) Lookup(src *Source) (string, error) {
	if src == nil || src.Entities == nil {
		return "", fmt.Errorf("graph strategy needs resolved entities")
	}
	node, ok := src.Entities[g.Entity]
	if !ok || node == nil {
		return "", fmt.Errorf("entity %q not resolved", g.Entity)
	}
	value := node.Path(g.Path...)
	if value.IsNil() {
		return "", nil
	}
	return stringifyScalar(value), nil
}

// stringifyScalar renders a graph scalar the way it would appear in markup,
// so one normalizer chain serves both layouts.
func stringifyScalar(v graph.Value) string {
	if s, ok := v.String(); ok {
		return s
	}
	if f, ok := v.Float(); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
