package parser

const (
	maxBureauPoints  = 30
	maxSectionPoints = 40
	maxAccountPoints = 30
	pointsPerSection = 8
	pointsPerAccount = 3
)

var bureauPoints = map[string]int{
	ConfidenceHigh:   30,
	ConfidenceMedium: 20,
	ConfidenceLow:    10,
}

// Confidence combines bureau detection, segmented sections and parsed
// accounts into an advisory 0–100 score.
func Confidence(bureauConfidence string, sections, accounts int) int {
	score := capInt(bureauPoints[bureauConfidence], maxBureauPoints) +
		capInt(sections*pointsPerSection, maxSectionPoints) +
		capInt(accounts*pointsPerAccount, maxAccountPoints)
	return capInt(score, 100)
}

func capInt(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
