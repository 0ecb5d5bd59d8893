// Package normalize converts noisy scalar strings from credit reports into
// canonical values. Every function is total: bad input yields nil or the
// zero value, never an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	nonMoneyRegex   = regexp.MustCompile(`[^0-9.\-]+`)
	usDateRegex     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	scoreTokenRegex = regexp.MustCompile(`\b\d{3}\b`)
	scoreRangeRegex = regexp.MustCompile(`\b\d{3}\s*(?:-|–)\s*\d{3}\b`)
)

// fallbackDateLayouts are tried in order once the explicit MM/DD/YYYY form did not apply.
var fallbackDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/2006",
	"1/2006",
	"Jan 2006",
	"January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"01-02-2006",
	"2006/01/02",
}

var placeholders = map[string]struct{}{
	"-": {}, "--": {}, "---": {}, "n/a": {}, "na": {}, "none": {}, "null": {},
}

// Money strips everything except digits, dots and minus signs and parses the rest.
func Money(s string) *float64 {
	cleaned := nonMoneyRegex.ReplaceAllString(s, "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Date parses MM/DD/YYYY strictly and falls back to a fixed set of layouts.
// Results are UTC midnight (or the parsed instant for timestamp layouts).
func Date(s string) *time.Time {
	s = Text(s)
	if s == "" {
		return nil
	}
	if m := usDateRegex.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 {
			return nil
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalises overflow (Feb 30 -> Mar 2); reject those.
		if t.Month() != time.Month(month) || t.Day() != day {
			return nil
		}
		return &t
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ISODate renders a date as YYYY-MM-DD, or "" for nil.
func ISODate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Text collapses runs of whitespace and trims.
func Text(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// NullableText returns nil for blank strings and common placeholders.
func NullableText(s string) *string {
	s = Text(s)
	if s == "" {
		return nil
	}
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return nil
	}
	return &s
}

// Statement applies the consumer statement sentinel.
func Statement(s string) string {
	if v := NullableText(s); v != nil && !strings.EqualFold(*v, entity.NoneReported) {
		return *v
	}
	return entity.NoneReported
}

// Score returns the first three-digit token within the valid score range.
// Out-of-range tokens are skipped, never clamped, and range bounds such as
// "300-850" are not scores.
func Score(s string) *int {
	s = scoreRangeRegex.ReplaceAllString(s, " ")
	for _, tok := range scoreTokenRegex.FindAllString(s, -1) {
		v, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if v >= 300 && v <= 850 {
			return &v
		}
	}
	return nil
}

// Bureau returns the canonical bureau name contained in s, or "".
func Bureau(s string) string {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "transunion"), strings.Contains(l, "trans union"):
		return entity.BureauTransUnion
	case strings.Contains(l, "experian"):
		return entity.BureauExperian
	case strings.Contains(l, "equifax"):
		return entity.BureauEquifax
	}
	return ""
}

// Key lower-cases s and drops everything that is not a letter or digit.
// Used to compare loosely-spelled labels ("Date Opened:", "date_opened").
func Key(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
