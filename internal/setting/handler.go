package setting

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
)

// Handler contains dependencies for handling setting endpoints.
type Handler struct {
	logger *zap.SugaredLogger
	cfg    scrape.Config
}

// NewHandler constructs a new Handler over the effective scrape config.
func NewHandler(logger *zap.SugaredLogger, cfg scrape.Config) *Handler {
	return &Handler{logger: logger, cfg: cfg}
}

// Scrape reports the effective upstream settings without revealing the key.
func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	delays := make([]string, 0, len(h.cfg.DownloadRetryDelays))
	for _, d := range h.cfg.DownloadRetryDelays {
		delays = append(delays, d.String())
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"baseUrl":        h.cfg.BaseURL,
		"robotId":        h.cfg.RobotID,
		"apiKeySet":      h.cfg.APIKey != "",
		"pollTimeout":    h.cfg.Timeout.String(),
		"downloadDelays": delays,
	}); err != nil {
		h.logger.Debugw("write settings response", "err", err)
	}
}
