package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/construdata/proposta-cli/internal/model"
	"github.com/construdata/proposta-cli/internal/pipeline"
	"github.com/construdata/proposta-cli/internal/store"
)

// extractResponse is the success contract of POST /api/extract.
type extractResponse struct {
	Success          bool             `json:"success"`
	Method           string           `json:"method"`
	Data             *extractPayload  `json:"data"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	Warning          string           `json:"warning,omitempty"`
}

type extractPayload struct {
	ID string `json:"id"`
	*model.Proposal
	QualityScore float64 `json:"quality_score"`
}

// errorResponse is the hard-failure contract.
type errorResponse struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error"`
	RequestID   string   `json:"request_id"`
	Suggestions []string `json:"suggestions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge,
			"arquivo excede o limite de upload",
			[]string{"Reduza o tamanho do arquivo (máximo 15MB)"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest,
			"campo 'file' ausente no formulário",
			[]string{"Envie o PDF no campo multipart 'file'"})
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeError(w, r, http.StatusBadRequest, "arquivo vazio ou ilegível", nil)
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, r, http.StatusUnsupportedMediaType,
			"apenas arquivos PDF são aceitos",
			[]string{"Verifique se o arquivo é um PDF válido"})
		return
	}

	userID := r.FormValue("user_id")

	result, err := s.orch.Process(r.Context(), data, header.Filename, userID)
	if err != nil {
		var failure *pipeline.Failure
		if errors.As(err, &failure) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:       "não foi possível extrair o documento",
				RequestID:   failure.RequestID,
				Suggestions: failure.Suggestions,
			})
			return
		}
		writeError(w, r, http.StatusInternalServerError, "falha interna no processamento", nil)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Success: true,
		Method:  string(result.Method),
		Data: &extractPayload{
			ID:           result.RunID,
			Proposal:     result.Proposal,
			QualityScore: result.Quality,
		},
		ProcessingTimeMS: result.Elapsed.Milliseconds(),
		Warning:          result.Warning,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Method: model.ExtractionMethod(r.URL.Query().Get("method")),
		UserID: r.URL.Query().Get("user_id"),
		Limit:  50,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "falha ao listar extrações", nil)
		return
	}
	if runs == nil {
		runs = []model.ExtractionRun{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "extração não encontrada", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "run": run})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError emits the structured failure contract with the request's
// correlation id. The caller never sees a raw fault.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, suggestions []string) {
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, status, errorResponse{
		Error:       msg,
		RequestID:   middleware.GetReqID(r.Context()),
		Suggestions: suggestions,
	})
}
