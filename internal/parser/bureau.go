package parser

import (
	"sort"
	"strings"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

// Detection confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// detectionWindow is how much of the document header is inspected.
const detectionWindow = 1000

// BureauDetection is the auditable outcome of DetectBureau.
type BureauDetection struct {
	Name       string   `json:"name"`
	Confidence string   `json:"confidence"`
	Indicators []string `json:"indicators"`
}

type bureauSignature struct {
	bureau     string
	indicators []string
}

// The three indicator sets are disjoint.
var bureauSignatures = []bureauSignature{
	{
		bureau: entity.BureauEquifax,
		indicators: []string{
			"equifax",
			"equifax.com",
			"equifax information services",
			"800-685-1111",
			"866-349-5191",
		},
	},
	{
		bureau: entity.BureauExperian,
		indicators: []string{
			"experian",
			"experian.com",
			"experian information solutions",
			"888-397-3742",
			"prepared for you by experian",
		},
	},
	{
		bureau: entity.BureauTransUnion,
		indicators: []string{
			"transunion",
			"trans union",
			"transunion.com",
			"800-916-8800",
			"transunion consumer relations",
		},
	},
}

// DetectBureau counts indicator hits per bureau in the document header. The
// bureau with the strictly highest count wins; ties and zero hits are Unknown.
func DetectBureau(text string) BureauDetection {
	window := text
	if len(window) > detectionWindow {
		window = window[:detectionWindow]
	}
	lower := strings.ToLower(window)

	best, bestCount, tied := "", 0, false
	matched := []string{}
	for _, sig := range bureauSignatures {
		hits := indicatorHits(lower, sig.indicators)
		count := 0
		for _, ind := range sig.indicators {
			if hits[ind] {
				count++
				matched = append(matched, ind)
			}
		}
		switch {
		case count > bestCount:
			best, bestCount, tied = sig.bureau, count, false
		case count == bestCount && count > 0:
			tied = true
		}
	}

	if bestCount == 0 || tied {
		return BureauDetection{Name: entity.BureauUnknown, Confidence: ConfidenceLow, Indicators: matched}
	}
	return BureauDetection{Name: best, Confidence: confidenceFor(bestCount), Indicators: matched}
}

// indicatorHits matches longer indicators first and blanks out what they
// cover, so "experian" inside "experian.com" is not counted a second time.
func indicatorHits(lower string, indicators []string) map[string]bool {
	ordered := append([]string(nil), indicators...)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	hits := map[string]bool{}
	for _, ind := range ordered {
		if strings.Contains(lower, ind) {
			hits[ind] = true
			lower = strings.ReplaceAll(lower, ind, strings.Repeat("\x00", len(ind)))
		}
	}
	return hits
}

func confidenceFor(count int) string {
	switch {
	case count >= 2:
		return ConfidenceHigh
	case count == 1:
		return ConfidenceMedium
	}
	return ConfidenceLow
}
