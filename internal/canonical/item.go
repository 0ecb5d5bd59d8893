package canonical

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/normalize"
)

// Scraper metadata keys carried on every captured item.
const (
	positionKey = "Position"
	statusKey   = "_STATUS"
)

// item is one captured-list entry with values flattened to text and keys
// normalised for alias lookup.
type item struct {
	fields   map[string]string
	keys     []string // original keys, sorted, metadata excluded
	values   map[string]string
	text     string // bare string entries
	position int
	status   string
}

func decodeItem(raw json.RawMessage, fallbackPosition int) (item, bool) {
	it := item{fields: map[string]string{}, values: map[string]string{}, position: fallbackPosition}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		s := scalarText(raw)
		if s == "" {
			return it, false
		}
		it.text = s
		return it, true
	}

	for k, v := range obj {
		s := scalarText(v)
		switch k {
		case positionKey:
			if p, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil && p > 0 {
				it.position = p
			}
			continue
		case statusKey:
			it.status = s
			continue
		}
		it.keys = append(it.keys, k)
		it.values[k] = s
		nk := normalize.Key(k)
		if _, dup := it.fields[nk]; !dup || it.fields[nk] == "" {
			it.fields[nk] = s
		}
	}
	sort.Strings(it.keys)
	return it, !it.empty()
}

// scalarText renders a JSON value as plain text. Strings are unquoted, null is
// empty and nested values keep their compact JSON form.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}

func (it item) empty() bool {
	if strings.TrimSpace(it.text) != "" {
		return false
	}
	for _, v := range it.values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// get returns the first non-empty value among the aliases, compared on
// normalised keys.
func (it item) get(aliases ...string) string {
	for _, a := range aliases {
		if v := it.fields[normalize.Key(a)]; v != "" {
			return v
		}
	}
	return ""
}

// allText joins every value in key order; bare strings return themselves.
func (it item) allText() string {
	if it.text != "" {
		return it.text
	}
	parts := make([]string, 0, len(it.keys))
	for _, k := range it.keys {
		if v := it.values[k]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func (it item) money(aliases ...string) *float64 {
	v := it.get(aliases...)
	if v == "" {
		return nil
	}
	return normalize.Money(v)
}

func (it item) date(aliases ...string) *time.Time {
	v := it.get(aliases...)
	if v == "" {
		return nil
	}
	return normalize.Date(v)
}

func (it item) str(aliases ...string) string {
	return normalize.Text(it.get(aliases...))
}
