// Package parser turns text extracted from a credit report document into
// typed entities. Extraction is heuristic: ordered pattern lists per field,
// first match wins, and unparseable values become nil instead of errors.
package parser

import (
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

// Counts summarises the secondary entity lists.
type Counts struct {
	Collections   int `json:"collections"`
	PublicRecords int `json:"publicRecords"`
	Inquiries     int `json:"inquiries"`
}

// ParseResult is the per-invocation output of Parse. It is never stored directly.
type ParseResult struct {
	Bureau            BureauDetection       `json:"bureau"`
	Sections          map[string]string     `json:"sections"`
	Accounts          []entity.Account      `json:"accounts"`
	PersonalInfo      map[string]*string    `json:"personalInfo"`
	Scores            []entity.Score        `json:"scores"`
	Inquiries         []entity.Inquiry      `json:"inquiries"`
	Collections       []entity.Collection   `json:"collections"`
	PublicRecords     []entity.PublicRecord `json:"publicRecords"`
	ConsumerStatement string                `json:"consumerStatement"`
	Counts            Counts                `json:"counts"`
	ConfidenceScore   int                   `json:"confidenceScore"`
	Errors            []string              `json:"errors"`
	Warnings          []string              `json:"warnings"`
}

// Parse runs the whole free-text pipeline: bureau detection, segmentation,
// per-section extraction and confidence scoring.
func Parse(text string) *ParseResult {
	res := &ParseResult{
		Sections:      map[string]string{},
		Accounts:      []entity.Account{},
		PersonalInfo:  map[string]*string{},
		Scores:        []entity.Score{},
		Inquiries:     []entity.Inquiry{},
		Collections:   []entity.Collection{},
		PublicRecords: []entity.PublicRecord{},
		Errors:        []string{},
		Warnings:      []string{},
	}
	if strings.TrimSpace(text) == "" {
		res.Errors = append(res.Errors, "document text is empty")
		res.Bureau = BureauDetection{Name: entity.BureauUnknown, Confidence: ConfidenceLow, Indicators: []string{}}
		res.ConsumerStatement = entity.NoneReported
		res.ConfidenceScore = Confidence(res.Bureau.Confidence, 0, 0)
		return res
	}

	res.Bureau = DetectBureau(text)
	if res.Bureau.Name == entity.BureauUnknown {
		res.Warnings = append(res.Warnings, "bureau could not be determined")
	}
	bureau := res.Bureau.Name

	res.Sections = Segment(text)
	for _, name := range []string{SectionPersonalInformation, SectionAccounts} {
		if _, ok := res.Sections[name]; !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("section %s not found", name))
		}
	}

	if sec, ok := res.Sections[SectionPersonalInformation]; ok {
		res.safely(SectionPersonalInformation, func() { res.PersonalInfo = ExtractPersonalInfo(sec) })
	}
	if sec, ok := res.Sections[SectionAccounts]; ok {
		res.safely(SectionAccounts, func() { res.Accounts = ExtractAccounts(sec, bureau) })
		if len(res.Accounts) == 0 {
			res.Warnings = append(res.Warnings, "accounts section contained no parseable tradelines")
		}
	}
	if sec, ok := res.Sections[SectionCollections]; ok {
		res.safely(SectionCollections, func() { res.Collections = ExtractCollections(sec, bureau) })
	}
	if sec, ok := res.Sections[SectionPublicRecords]; ok {
		res.safely(SectionPublicRecords, func() { res.PublicRecords = ExtractPublicRecords(sec, bureau) })
	}
	if sec, ok := res.Sections[SectionInquiries]; ok {
		res.safely(SectionInquiries, func() { res.Inquiries = ExtractInquiries(sec, bureau) })
	}
	res.safely("scores", func() { res.Scores = ExtractScores(text, bureau) })
	res.ConsumerStatement = ExtractConsumerStatement(text)

	res.Counts = Counts{
		Collections:   len(res.Collections),
		PublicRecords: len(res.PublicRecords),
		Inquiries:     len(res.Inquiries),
	}
	res.ConfidenceScore = Confidence(res.Bureau.Confidence, len(res.Sections), len(res.Accounts))
	return res
}

// safely runs one section extractor; a panic degrades to a warning so one bad
// section never aborts the document.
func (r *ParseResult) safely(section string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("section %s failed to parse: %v", section, rec))
		}
	}()
	fn()
}
