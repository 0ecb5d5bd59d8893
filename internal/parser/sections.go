package parser

import (
	"regexp"
	"sort"
	"strings"
)

// Section keys produced by Segment.
const (
	SectionPersonalInformation = "personal_information"
	SectionAccountSummary      = "account_summary"
	SectionAccounts            = "accounts"
	SectionCollections         = "collections"
	SectionPublicRecords       = "public_records"
	SectionInquiries           = "inquiries"
)

// minSectionBody is added to the header length to get the minimum content length.
const minSectionBody = 50

type sectionHeader struct {
	name     string
	variants []*regexp.Regexp
}

// headerPatterns lists header phrasings per section, most specific first.
var headerPatterns = []sectionHeader{
	{SectionPersonalInformation, headerVariants(
		"personal information", "personal info", "identification information",
		"consumer information", "personal data",
	)},
	{SectionAccountSummary, headerVariants(
		"account summary", "summary of accounts", "credit summary", "report summary",
	)},
	{SectionAccounts, headerVariants(
		"account information", "account details", "credit accounts", "account history",
		"tradelines", "accounts",
	)},
	{SectionCollections, headerVariants(
		"collection accounts", "collections",
	)},
	{SectionPublicRecords, headerVariants(
		"public records", "public record information", "bankruptcies",
	)},
	{SectionInquiries, headerVariants(
		"credit inquiries", "hard inquiries", "requests for your credit history",
		"inquiries",
	)},
}

func headerVariants(phrases ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		words := strings.Fields(p)
		for i := range words {
			words[i] = regexp.QuoteMeta(words[i])
		}
		// Headers start a line, optionally after numbering or bullets.
		out = append(out, regexp.MustCompile(`(?im)^[^\pL\n]{0,8}(`+strings.Join(words, `[ \t]+`)+`)\b`))
	}
	return out
}

type headerMatch struct {
	name  string
	start int
	end   int
}

// findHeaders returns, per section, the first variant that matches anywhere
// in text (earliest occurrence of that variant).
func findHeaders(text string) []headerMatch {
	var found []headerMatch
	for _, sec := range headerPatterns {
		for _, rx := range sec.variants {
			if loc := rx.FindStringSubmatchIndex(text); loc != nil {
				found = append(found, headerMatch{name: sec.name, start: loc[2], end: loc[3]})
				break
			}
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	return found
}

// Segment splits text into named sections. A section runs from its header to
// the earliest header of any other section that starts after it, or to the end
// of the document. Sections whose content is too short to be more than a
// stray header are dropped.
func Segment(text string) map[string]string {
	sections := map[string]string{}
	headers := findHeaders(text)
	for _, h := range headers {
		end := len(text)
		for _, other := range headers {
			if other.start > h.start && other.start < end {
				end = other.start
			}
		}
		content := strings.TrimSpace(text[h.start:end])
		if len(content) < (h.end-h.start)+minSectionBody {
			continue
		}
		sections[h.name] = content
	}
	return sections
}

// sectionBody drops the header line from a segmented section.
func sectionBody(section string) string {
	if i := strings.IndexByte(section, '\n'); i >= 0 {
		return section[i+1:]
	}
	return ""
}
