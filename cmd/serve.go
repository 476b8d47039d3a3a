package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
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

	"github.com/mandela-labs/report-cli/internal/assistant"
	"github.com/mandela-labs/report-cli/internal/report"
	"github.com/mandela-labs/report-cli/internal/store"
	"github.com/mandela-labs/report-cli/internal/summary"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Retention.Enabled {
			go env.Sweeper.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", handleHealth)
	r.Post("/diff", handleDiff(env))
	r.Get("/report/{id}", handleReport(env))
	r.Get("/snapshot/{id}", handleSnapshot(env))
	r.Post("/assistant", handleAssistant(env))

	return r
}

// securityHeaders locks down every response. The snapshot viewer embeds
// untrusted archived HTML, so the policy allows nothing by default.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy",
			"default-src 'none'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; font-src 'self' data:; frame-src data:; base-uri 'self'; frame-ancestors 'none';")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type diffRequest struct {
	URL       string `json:"url"`
	Since     string `json:"since"`
	Until     string `json:"until"`
	Snapshots int    `json:"snapshots"`
}

func handleDiff(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req diffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}

		since, err := parseDate(req.Since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		until, err := parseDate(req.Until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be YYYY-MM-DD")
			return
		}

		payload, err := env.Service.Build(r.Context(), report.Request{
			URL:       req.URL,
			Since:     since,
			Until:     until,
			Snapshots: req.Snapshots,
		})
		switch {
		case eris.Is(err, report.ErrInvalidDateRange):
			writeError(w, http.StatusBadRequest, "since must be on or before until")
		case eris.Is(err, report.ErrNoSnapshots):
			writeError(w, http.StatusNotFound, "no snapshots could be captured for this page")
		case err != nil:
			zap.L().Error("diff request failed", zap.String("url", req.URL), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, payload)
		}
	}
}

func handleReport(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		style := r.URL.Query().Get("style")
		if style != "" && style != summary.ProviderLLM && style != summary.ProviderRule {
			writeError(w, http.StatusBadRequest, "style must be llm or rule")
			return
		}

		payload, err := env.Service.View(r.Context(), id, style)
		switch {
		case eris.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "report not found")
		case eris.Is(err, report.ErrNoSnapshots):
			writeError(w, http.StatusNotFound, "report has no snapshots")
		case err != nil:
			zap.L().Error("report view failed", zap.String("report_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, payload)
		}
	}
}

// handleSnapshot serves the stored HTML of one snapshot inside a sandboxed
// iframe. The capture is embedded as a data URL so it executes nothing and
// loads from nowhere.
func handleSnapshot(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "snapshot id must be an integer")
			return
		}

		sn, err := env.Store.GetSnapshotHTML(r.Context(), id)
		switch {
		case eris.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		case err != nil:
			zap.L().Error("snapshot fetch failed", zap.Int64("snapshot_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		encoded := base64.StdEncoding.EncodeToString([]byte(sn.HTML))
		page := fmt.Sprintf(snapshotPage, encoded)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, page)
	}
}

const snapshotPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Snapshot viewer</title>
<style>html,body{margin:0;height:100%%}iframe{border:0;width:100%%;height:100%%}</style>
</head>
<body>
<iframe sandbox="" referrerpolicy="no-referrer" src="data:text/html;base64,%s"></iframe>
</body>
</html>`

type assistantRequest struct {
	Message string          `json:"message"`
	Slots   assistant.Slots `json:"slots"`
}

func handleAssistant(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assistantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if strings.TrimSpace(req.Message) == "" {
			writeJSON(w, http.StatusOK, assistant.Response{
				Reply: "Tell me the page URL to begin.",
				Slots: req.Slots,
			})
			return
		}

		resp, err := env.Interpreter.Interpret(r.Context(), req.Message, req.Slots)
		if err != nil {
			zap.L().Error("assistant turn failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
