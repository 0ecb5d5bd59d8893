package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
)

// Handler exposes the ingestion service over HTTP.
type Handler struct {
	svc     *Service
	logger  *zap.SugaredLogger
	maxBody int64
	wg      sync.WaitGroup
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	maxBody := svc.cfg.MaxPayloadBytes
	if maxBody <= 0 {
		maxBody = 64 << 20
	}
	return &Handler{svc: svc, logger: logger, maxBody: maxBody}
}

// ScrapeRunRequest starts background collection of an upstream run.
type ScrapeRunRequest struct {
	RobotID string `json:"robotId"`
	RunID   string `json:"runId"`
	UserID  string `json:"userId"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  string      `json:"code,omitempty"`
	Run   *entity.Run `json:"run,omitempty"`
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		h.logger.Debugw("invalid ingestion payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Code: CodeSchemaInvalid})
		return
	}
	run, err := h.svc.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, err, run)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) Renormalize(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Renormalize(r.Context(), chi.URLParam(r, "runId"), r.URL.Query().Get("userId"))
	if err != nil {
		h.writeError(w, err, run)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), chi.URLParam(r, "runId"), r.URL.Query().Get("userId"))
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), r.URL.Query().Get("userId"), limit)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context(), chi.URLParam(r, "runId"), r.URL.Query().Get("userId"))
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ScrapeRun accepts the request and collects the upstream run in the
// background. Progress is visible through GetRun.
func (h *Handler) ScrapeRun(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Code: CodeSchemaInvalid})
		return
	}
	if err := requireIDs(req.RunID, req.UserID); err != nil {
		h.writeError(w, err, nil)
		return
	}
	ctx := context.WithoutCancel(r.Context())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if _, err := h.svc.CollectScrapeRun(ctx, req.RobotID, req.RunID, req.UserID); err != nil {
			h.logger.Debugw("background scrape collection ended with error", "run_id", req.RunID, "err", err)
		}
	}()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"runId": req.RunID, "status": "processing"})
}

// Parse runs the free-text parser over the request body. A JSON body with a
// "text" field is accepted as well as plain text.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Code: CodeSchemaInvalid})
		return
	}
	text := string(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &in); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Code: CodeSchemaInvalid})
			return
		}
		text = in.Text
	}
	h.writeJSON(w, http.StatusOK, h.svc.Parse(text))
}

// Wait blocks until background scrape collections have finished.
func (h *Handler) Wait() { h.wg.Wait() }

// StatusFor maps an ingestion error to its HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	switch CodeOf(err) {
	case CodeSchemaInvalid:
		return http.StatusBadRequest
	case scrape.CodeBadCredentials, scrape.CodeRobotNotFound, scrape.CodeRunFailed, scrape.CodeRunTimeout:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error, run *entity.Run) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warnw("ingestion request failed", "err", err)
	} else {
		h.logger.Debugw("ingestion request rejected", "err", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Code: CodeOf(err), Run: run})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
