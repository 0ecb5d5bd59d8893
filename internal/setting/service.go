package setting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/setting/repo"
)

// Service encapsulates business logic for settings and depends on a repo.
type Service struct {
	repo *repo.Repo
}

// NewService constructs a Service with the provided repository.
func NewService(r *repo.Repo) *Service {
	return &Service{repo: r}
}

// sentinel errors for common failure modes
var ErrNotFound = errors.New("not found")

// Scrape returns the stored scrape credentials.
func (s *Service) Scrape(ctx context.Context) (*entity.ScrapeSettings, error) {
	st, err := s.repo.GetByID(ctx, entity.CategoryScrape)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var out entity.ScrapeSettings
	if err := json.Unmarshal(st.Metadata, &out); err != nil {
		return nil, fmt.Errorf("decode scrape settings: %w", err)
	}
	return &out, nil
}

// SaveScrape stores the scrape credentials.
func (s *Service) SaveScrape(ctx context.Context, in entity.ScrapeSettings) error {
	meta, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, entity.NewSetting(entity.CategoryScrape, entity.CategoryScrape, meta))
}

// ApplyScrape overlays stored non-empty credentials on cfg. A missing row
// leaves cfg unchanged.
func (s *Service) ApplyScrape(ctx context.Context, cfg *scrape.Config) error {
	st, err := s.Scrape(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if st.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(st.BaseURL, "/")
	}
	if st.APIKey != "" {
		cfg.APIKey = st.APIKey
	}
	if st.RobotID != "" {
		cfg.RobotID = st.RobotID
	}
	return nil
}
