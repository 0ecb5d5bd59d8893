package canonical

import (
	"regexp"
	"strings"
)

// Canonical section identifiers for captured-list keys.
const (
	SectionScores              = "scores"
	SectionPersonalInformation = "personalInformation"
	SectionConsumerStatements  = "consumerStatements"
	SectionRealEstate          = "realEstateAccounts"
	SectionRevolving           = "revolvingAccounts"
	SectionOtherAccounts       = "otherAccounts"
	SectionPublicRecords       = "publicRecords"
	SectionCollections         = "collections"
	SectionInquiries           = "inquiries"
	SectionCreditorAddresses   = "creditorAddresses"
)

type aliasRule struct {
	pattern *regexp.Regexp
	name    string
}

// aliasRules are tested in order against the cleaned key; first match wins.
var aliasRules = []aliasRule{
	{regexp.MustCompile(`^(?:credit\s*|fico\s*|vantage\s*)?scores?\b`), SectionScores},
	{regexp.MustCompile(`^personal\s*info`), SectionPersonalInformation},
	{regexp.MustCompile(`^consumer\s*state`), SectionConsumerStatements},
	{regexp.MustCompile(`^(?:real\s*estate|mortgage)`), SectionRealEstate},
	{regexp.MustCompile(`^(?:revolving|credit\s*cards?\b)`), SectionRevolving},
	{regexp.MustCompile(`^(?:other|installment)\b`), SectionOtherAccounts},
	{regexp.MustCompile(`^public\s*rec`), SectionPublicRecords},
	{regexp.MustCompile(`^collection`), SectionCollections},
	{regexp.MustCompile(`^inquir`), SectionInquiries},
	{regexp.MustCompile(`^creditor\s*(?:contact|addr)`), SectionCreditorAddresses},
}

var (
	ellipsisSuffix = regexp.MustCompile(`(?:…|\.{3})+$`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

// cleanKey lower-cases a scraper label and drops truncation ellipses.
func cleanKey(key string) string {
	k := strings.TrimSpace(key)
	k = ellipsisSuffix.ReplaceAllString(k, "")
	k = spaceRun.ReplaceAllString(strings.TrimSpace(k), " ")
	return strings.ToLower(k)
}

// Canonicalize maps a raw captured-list key to its section identifier. Unknown
// keys come back unchanged with ok set to false.
func Canonicalize(key string) (name string, ok bool) {
	k := cleanKey(key)
	for _, r := range aliasRules {
		if r.pattern.MatchString(k) {
			return r.name, true
		}
	}
	return key, false
}
