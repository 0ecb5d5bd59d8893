package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/normalize"
)

// matcher extracts one raw field value from a text block.
type matcher func(block string) (string, bool)

// firstMatch runs matchers in order and returns the first non-empty hit.
func firstMatch(block string, matchers []matcher) (string, bool) {
	for _, m := range matchers {
		if v, ok := m(block); ok {
			return v, true
		}
	}
	return "", false
}

// rx builds a matcher from a pattern whose first capture group is the value.
func rx(pattern string) matcher {
	re := regexp.MustCompile(pattern)
	return func(block string) (string, bool) {
		m := re.FindStringSubmatch(block)
		if len(m) < 2 {
			return "", false
		}
		v := normalize.Text(m[1])
		return v, v != ""
	}
}

// labeled matches "Label: value" (or "Label  value") at the start of a line
// for any of the given labels, capturing the rest of the line.
func labeled(labels ...string) matcher {
	alts := make([]string, len(labels))
	for i, l := range labels {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(l), " ", `[ \t]+`)
	}
	return rx(`(?im)^[ \t]*(?:` + strings.Join(alts, "|") + `)[ \t]*(?::|-|\t|[ \t]{2,})[ \t]*([^\n]+)$`)
}

// inline matches "label: value" anywhere in the block where the value has the given shape.
func inline(label, value string) matcher {
	return rx(`(?i)(?:^|[\s|,;])` + label + `\s*:?\s*(` + value + `)`)
}

const (
	moneyShape = `-?\$?\s?\d[\d,]*(?:\.\d{1,2})?`
	dateShape  = `\d{1,2}/\d{1,2}/\d{4}|\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2}`
)

var (
	moneyToken = regexp.MustCompile(moneyShape)
	dateToken  = regexp.MustCompile(dateShape)
)

func textField(block string, ms []matcher) string {
	v, _ := firstMatch(block, ms)
	return v
}

// moneyField takes the first amount token of each candidate in turn. Text
// after the amount on the same line never reaches the normalizer.
func moneyField(block string, ms []matcher) *float64 {
	for _, m := range ms {
		v, ok := m(block)
		if !ok {
			continue
		}
		if tok := moneyToken.FindString(v); tok != "" {
			if out := normalize.Money(tok); out != nil {
				return out
			}
		}
	}
	return nil
}

// dateField prefers a date token inside each candidate and falls back to the
// whole value for spelled-out dates. A candidate that does not coerce gives
// way to the next one.
func dateField(block string, ms []matcher) *time.Time {
	for _, m := range ms {
		v, ok := m(block)
		if !ok {
			continue
		}
		if tok := dateToken.FindString(v); tok != "" {
			if out := normalize.Date(tok); out != nil {
				return out
			}
		}
		if out := normalize.Date(v); out != nil {
			return out
		}
	}
	return nil
}
