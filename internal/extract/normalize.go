// internal/extract/normalize.go
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TimeFormat is the fixed timestamp layout every date field normalizes to.
const TimeFormat = "2006-01-02 15:04:05"

var (
	firstPublishedRegex = regexp.MustCompile(`(?i)first published\D*(\d{4})`)
	longDateRegex       = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`)
	monthYearRegex      = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+(\d{4})`)
	bareYearRegex       = regexp.MustCompile(`\b(\d{4})\b`)

	languageCaser = cases.Title(language.English)
)

// Validators are pure and total: invalid input maps to nil, never to an
// error escaping the function.

// ISBN accepts exactly ten numeric characters.
func ISBN(raw string) *string {
	s := strings.TrimSpace(raw)
	if len(s) != 10 || !allDigits(s) {
		return nil
	}
	return &s
}

// ISBN13 accepts exactly thirteen numeric characters.
func ISBN13(raw string) *string {
	s := strings.TrimSpace(raw)
	if len(s) != 13 || !allDigits(s) {
		return nil
	}
	return &s
}

// ASIN accepts exactly ten characters of any charset.
func ASIN(raw string) *string {
	s := strings.TrimSpace(raw)
	if len(s) != 10 {
		return nil
	}
	return &s
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FuzzyDate parses a free-text date and normalizes it to TimeFormat.
// Missing components resolve to the minimum default, so a bare year yields
// that year's start. Unparseable input yields nil.
func FuzzyDate(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	if t, err := dateparse.ParseAny(s); err == nil {
		return timestamp(t)
	}

	// The site wraps dates in prose ("Published March 14th 2017 by ...").
	// Pull the most specific date-looking fragment instead; components the
	// text omits fall back to the minimum default.
	if m := longDateRegex.FindStringSubmatch(s); m != nil {
		month, monthOK := monthByName(m[1])
		day, dayErr := strconv.Atoi(m[2])
		year, yearErr := strconv.Atoi(m[3])
		if monthOK && dayErr == nil && yearErr == nil && day >= 1 && day <= 31 {
			return timestamp(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
		}
	}
	if m := monthYearRegex.FindStringSubmatch(s); m != nil {
		month, monthOK := monthByName(m[1])
		year, yearErr := strconv.Atoi(m[2])
		if monthOK && yearErr == nil {
			return timestamp(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
		}
	}
	if m := bareYearRegex.FindStringSubmatch(s); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil && year >= 1 {
			return timestamp(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
		}
	}

	return nil
}

func monthByName(name string) (time.Month, bool) {
	switch strings.ToLower(name[:3]) {
	case "jan":
		return time.January, true
	case "feb":
		return time.February, true
	case "mar":
		return time.March, true
	case "apr":
		return time.April, true
	case "may":
		return time.May, true
	case "jun":
		return time.June, true
	case "jul":
		return time.July, true
	case "aug":
		return time.August, true
	case "sep":
		return time.September, true
	case "oct":
		return time.October, true
	case "nov":
		return time.November, true
	case "dec":
		return time.December, true
	}
	return 0, false
}

func timestamp(t time.Time) *string {
	s := t.Format(TimeFormat)
	return &s
}

// EpochToTimestamp converts integer epoch seconds to TimeFormat. The modern
// layout reports publication times in epoch milliseconds; magnitudes beyond
// the year-33658 mark are treated as milliseconds.
func EpochToTimestamp(epoch int64) string {
	return epochTime(epoch).UTC().Format(TimeFormat)
}

// YearFromEpoch returns the calendar year of an epoch timestamp.
func YearFromEpoch(epoch int64) int {
	return epochTime(epoch).UTC().Year()
}

func epochTime(epoch int64) time.Time {
	const millisecondThreshold = int64(1) << 40
	if epoch >= millisecondThreshold || epoch <= -millisecondThreshold {
		return time.UnixMilli(epoch)
	}
	return time.Unix(epoch, 0)
}

// FirstPublishedYear matches a case-insensitive "first published" phrase
// followed by a four-digit year.
func FirstPublishedYear(raw string) *int {
	m := firstPublishedRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &year
}

// LeadingPageCount takes the leading numeric token of a free-text "N pages"
// string.
func LeadingPageCount(raw string) *int {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// ParseCount parses an integer that may carry thousands separators.
func ParseCount(raw string) *int {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return nil
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &n
}

// ParseRating parses a decimal average rating.
func ParseRating(raw string) *float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Language canonicalizes a language name: anything after the first ";" is
// commentary, and casing is normalized ("english" and "ENGLISH" converge).
func Language(raw string) string {
	s := strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
	if s == "" {
		return ""
	}
	return languageCaser.String(strings.ToLower(s))
}
