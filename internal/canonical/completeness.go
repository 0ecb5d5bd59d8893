package canonical

import (
	"strings"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

// MissingBureaus lists, lower-case and in fixed order, every required bureau
// without a score entry carrying a valid score.
func MissingBureaus(scores []entity.Score) []string {
	have := map[string]bool{}
	for _, s := range scores {
		if s.Score != nil {
			have[s.Bureau] = true
		}
	}
	missing := []string{}
	for _, b := range entity.RequiredBureaus {
		if !have[b] {
			missing = append(missing, strings.ToLower(b))
		}
	}
	return missing
}

// Status picks the terminal run status for a scrape-sourced report.
func Status(missing []string) string {
	if len(missing) > 0 {
		return entity.StatusPartial
	}
	return entity.StatusCompleted
}
