package entity

import "encoding/json"

// CategoryScrape holds upstream scraping credentials.
const CategoryScrape = "scrape"

// Setting represents a configuration record.
type Setting struct {
	ID       string          `json:"id" db:"id"`
	Category string          `json:"category,omitempty" db:"category"`
	Metadata json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}

// NewSetting creates a new Setting.
func NewSetting(id string, category string, metadata json.RawMessage) *Setting {
	return &Setting{ID: id, Category: category, Metadata: metadata}
}

// ScrapeSettings is the metadata shape of the scrape category.
type ScrapeSettings struct {
	BaseURL string `json:"baseUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	RobotID string `json:"robotId,omitempty"`
}
