package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rpattn/fieldmap/internal/config"
	"github.com/rpattn/fieldmap/internal/domain"
	"github.com/rpattn/fieldmap/internal/export"
	"github.com/rpattn/fieldmap/internal/lookup"
	"github.com/rpattn/fieldmap/internal/mapper"
	"github.com/rpattn/fieldmap/internal/middleware"
	"github.com/rpattn/fieldmap/internal/repository"
	"github.com/rpattn/fieldmap/internal/source"
)

const maxUploadBytes = 32 << 20

// Handler exposes mapping runs and previews over HTTP.
type Handler struct {
	executor    *mapper.Executor
	definitions repository.MappingRepository
	logger      zerolog.Logger
}

// NewHandler wires the endpoints. definitions may be nil, in which case
// requests must carry their definition inline.
func NewHandler(executor *mapper.Executor, definitions repository.MappingRepository, logger zerolog.Logger) *Handler {
	return &Handler{executor: executor, definitions: definitions, logger: logger}
}

// Routes builds the router with request logging and, when lookups is not
// nil, per-request lookup loaders.
func (h *Handler) Routes(lookups lookup.Source) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /map", h.handleMap)
	mux.HandleFunc("POST /preview", h.handlePreview)
	mux.HandleFunc("GET /definitions", h.handleListDefinitions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var handler http.Handler = mux
	if lookups != nil {
		handler = lookup.Middleware(lookups)(handler)
	}
	handler = middleware.LoggingMiddleware(h.logger)(handler)
	return middleware.RequestIDMiddleware(handler)
}

// handleMap maps an uploaded CSV or XLSX file. The definition is passed as
// the "definition" form value (JSON) or by "definitionName".
func (h *Handler) handleMap(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid form data: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file required: %w", err))
		return
	}
	defer file.Close()

	def, status, err := h.resolveDefinition(r)
	if err != nil {
		writeError(w, status, err)
		return
	}

	opts, err := executionOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read file: %w", err))
		return
	}
	table, err := source.ParseBytes(header.Filename, data, source.Options{
		TableName: def.Source.Name,
		Sheet:     r.FormValue("sheet"),
		Coerce:    formBool(r, "coerce"),
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, source.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, err)
		return
	}

	plan, err := h.executor.Compile(def)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	result, err := h.executor.Execute(r.Context(), plan, table.Records, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	format := strings.TrimSpace(r.FormValue("format"))
	if format == "" || strings.EqualFold(format, "json") {
		writeJSON(w, http.StatusOK, result)
		return
	}
	h.writeExport(w, format, def, result)
}

type previewRequest struct {
	Definition     *domain.MappingDefinition `json:"definition"`
	DefinitionName string                    `json:"definitionName"`
	Fields         []domain.FieldDescriptor  `json:"fields"`
}

// handlePreview evaluates a definition against field descriptors.
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid preview request: %w", err))
		return
	}

	var def domain.MappingDefinition
	switch {
	case req.Definition != nil:
		def = *req.Definition
	case req.DefinitionName != "":
		stored, status, err := h.loadDefinition(r, req.DefinitionName)
		if err != nil {
			writeError(w, status, err)
			return
		}
		def = stored
	default:
		writeError(w, http.StatusBadRequest, errors.New("definition or definitionName is required"))
		return
	}

	plan, err := h.executor.Compile(def)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	row, err := h.executor.Preview(r.Context(), plan, req.Fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handler) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	if h.definitions == nil {
		writeError(w, http.StatusNotFound, errors.New("no definition store configured"))
		return
	}
	defs, err := h.definitions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if defs == nil {
		defs = []domain.MappingDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (h *Handler) resolveDefinition(r *http.Request) (domain.MappingDefinition, int, error) {
	if raw := strings.TrimSpace(r.FormValue("definition")); raw != "" {
		def, err := config.ParseDefinition(".json", []byte(raw))
		if err != nil {
			return domain.MappingDefinition{}, http.StatusBadRequest, err
		}
		return def, http.StatusOK, nil
	}
	if name := strings.TrimSpace(r.FormValue("definitionName")); name != "" {
		return h.loadDefinition(r, name)
	}
	return domain.MappingDefinition{}, http.StatusBadRequest, errors.New("definition or definitionName is required")
}

func (h *Handler) loadDefinition(r *http.Request, name string) (domain.MappingDefinition, int, error) {
	if h.definitions == nil {
		return domain.MappingDefinition{}, http.StatusBadRequest, errors.New("no definition store configured")
	}
	def, err := h.definitions.GetByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.MappingDefinition{}, http.StatusNotFound, err
		}
		return domain.MappingDefinition{}, http.StatusInternalServerError, err
	}
	return def, http.StatusOK, nil
}

func (h *Handler) writeExport(w http.ResponseWriter, rawFormat string, def domain.MappingDefinition, result domain.MappingExecutionResult) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, def.Target, result.Rows, export.Options{IncludeErrors: true}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	contentType := "text/csv"
	if format == export.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.DefaultFileName(def.Name, format)))
	w.Header().Set("X-Run-ID", result.RunID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write export response")
	}
}

func executionOptions(r *http.Request) (domain.MappingExecutionOptions, error) {
	var opts domain.MappingExecutionOptions
	var err error
	if opts.Limit, err = formInt(r, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = formInt(r, "offset"); err != nil {
		return opts, err
	}
	return opts, nil
}

func formInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return value, nil
}

func formBool(r *http.Request, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(r.FormValue(key)))
	return err == nil && value
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
