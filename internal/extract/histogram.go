// internal/extract/histogram.go
package extract

import (
	"strconv"
	"strings"
)

// ratingGraphCall is the render call the legacy template embeds, e.g.
//
//	renderRatingGraph([6, 3, 2, 2, 1]);
//	if ($('rating_details')) { ... }
//
// The bracketed literal lists counts for star levels 5 down to 1.
const ratingGraphCall = "renderRatingGraph"

// DecodeHistogram parses the rating histogram out of embedded script text.
// It returns a zero-filled map over star levels 1..5, or nil when the text
// carries no histogram call — many legacy pages simply have none.
func DecodeHistogram(scriptText string) map[int]int {
	var fragment string
	for _, stmt := range strings.Split(scriptText, ";") {
		if strings.Contains(stmt, ratingGraphCall) {
			fragment = strings.TrimSpace(stmt)
			break
		}
	}
	if fragment == "" {
		return nil
	}

	start := strings.Index(fragment, "[")
	end := strings.Index(fragment, "]")
	if start < 0 || end < start {
		return nil
	}

	hist := emptyHistogram()
	for i, field := range strings.Split(fragment[start+1:end], ",") {
		star := 5 - i
		if star < 1 {
			return nil
		}
		count, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil
		}
		hist[star] = count
	}
	return hist
}

// HistogramFromCounts re-indexes an already-ordered list of five counts
// (star 1 first), as delivered by the modern layout, into the same
// {star: count} shape DecodeHistogram produces.
func HistogramFromCounts(counts []int) map[int]int {
	if len(counts) != 5 {
		return nil
	}
	hist := emptyHistogram()
	for i, count := range counts {
		hist[i+1] = count
	}
	return hist
}

func emptyHistogram() map[int]int {
	return map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
}
