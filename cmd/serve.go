package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/doc-investigator/internal/document"
	"github.com/sells-group/doc-investigator/internal/investigator"
	"github.com/sells-group/doc-investigator/internal/llm"
	"github.com/sells-group/doc-investigator/internal/model"
	"github.com/sells-group/doc-investigator/internal/report"
	"github.com/sells-group/doc-investigator/internal/store"
)

const (
	maxUploadBytes   = 100 << 20
	multipartMemory  = 32 << 20
	defaultListLimit = 50
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP API for asking, evaluating and reporting",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the HTTP routes. env.Investigator may be nil, in which
// case /ask answers 503.
func buildRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{env: env}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/ask", h.ask)
	r.Get("/interactions", h.listInteractions)
	r.Get("/interactions/{id}", h.getInteraction)
	r.Post("/interactions/{id}/evaluation", h.evaluate)
	r.Post("/export", h.export)
	r.Get("/report", h.reportInline)
	r.Post("/report/export", h.reportExport)
	r.Get("/cache/stats", h.cacheStats)

	return r
}

type handlers struct {
	env *appEnv
}

// ask expects a multipart form with one or more "files" parts and a
// "question" field.
func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	if h.env.Investigator == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	var docs []model.Document
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close() //nolint:errcheck
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload "+fh.Filename)
			return
		}
		docs = append(docs, model.Document{Name: fh.Filename, Data: data})
	}

	ans, err := h.env.Investigator.Ask(r.Context(), docs, r.FormValue("question"))
	if err != nil {
		h.fail(w, r, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *handlers) listInteractions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	evaluation, ok := parseEvaluationFilter(q.Get("evaluation"))
	if !ok {
		writeError(w, http.StatusBadRequest, "evaluation must be UNSET, YES or NO")
		return
	}
	limit := defaultListLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.env.Store.List(r.Context(), store.ListFilter{
		Fingerprint: q.Get("fingerprint"),
		Evaluation:  evaluation,
		Limit:       limit,
	})
	if err != nil {
		h.fail(w, r, "list interactions", err)
		return
	}
	if records == nil {
		records = []model.InteractionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handlers) getInteraction(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.env.Store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get interaction", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type evaluationRequest struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

func (h *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	verdict, err := model.ParseVerdict(req.Verdict)
	if err != nil {
		writeError(w, http.StatusBadRequest, "verdict must be yes or no")
		return
	}

	if err := h.env.Evaluator.Evaluate(r.Context(), id, verdict, req.Reason); err != nil {
		h.fail(w, r, "evaluate", err)
		return
	}

	rec, err := h.env.Store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "evaluate", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	n, err := h.env.Exporter.Export(r.Context(), h.env.ExportPath)
	if err != nil {
		h.fail(w, r, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": h.env.ExportPath, "rows": n})
}

// reportInline returns the report body as an HTML fragment for embedding.
func (h *handlers) reportInline(w http.ResponseWriter, r *http.Request) {
	rep, err := h.env.Reports.Generate(r.Context(), h.env.ExportPath)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	body, err := rep.RenderInline()
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, string(body)) //nolint:errcheck
}

type reportExportRequest struct {
	Label string `json:"label"`
}

func (h *handlers) reportExport(w http.ResponseWriter, r *http.Request) {
	var req reportExportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	rep, err := h.env.Reports.Generate(r.Context(), h.env.ExportPath)
	if err != nil {
		h.fail(w, r, "report export", err)
		return
	}
	path := report.DefaultArtifactPath(h.env.ReportDir, time.Now())
	if err := rep.Export(path, req.Label); err != nil {
		h.fail(w, r, "report export", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.env.Cache.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "cache stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("http: "+op+" failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, investigator.ErrNoDocuments),
		errors.Is(err, investigator.ErrEmptyQuestion),
		errors.Is(err, document.ErrUnsupportedType),
		errors.Is(err, model.ErrInvalidVerdict):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrCorruptDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, report.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrSafetyBlocked),
		errors.Is(err, llm.ErrUnknown):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseEvaluationFilter accepts UNSET, YES or NO in any case. An empty
// value means no filter.
func parseEvaluationFilter(s string) (model.Evaluation, bool) {
	e := model.Evaluation(strings.ToUpper(strings.TrimSpace(s)))
	switch e {
	case "", model.EvaluationUnset, model.EvaluationYes, model.EvaluationNo:
		return e, true
	default:
		return "", false
	}
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
