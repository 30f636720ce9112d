package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := newRouter(ctx, env.Store, env.Pipeline)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

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

// newRouter builds the API routes over the given store and pipeline. The
// serverCtx bounds background runs started through the generate endpoint.
func newRouter(serverCtx context.Context, st store.Store, p *pipeline.Pipeline) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/leads", handleListLeads(st))
		r.Get("/leads/{id}", handleGetLead(st))
		r.Patch("/leads/{id}/status", handleUpdateStatus(st))
		r.Get("/stats", handleStats(st))
		r.Post("/generate", handleGenerate(serverCtx, p))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleListLeads(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		if search := q.Get("search"); search != "" {
			leads, err := st.SearchLeads(req.Context(), search)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "search failed")
				return
			}
			writeJSON(w, http.StatusOK, leads)
			return
		}

		minScore, _ := strconv.Atoi(q.Get("min_score"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		leads, err := st.ListLeads(req.Context(), store.Filter{
			Status:   model.Status(q.Get("status")),
			City:     q.Get("city"),
			Category: q.Get("category"),
			MinScore: minScore,
			Limit:    limit,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		writeJSON(w, http.StatusOK, leads)
	}
}

func handleGetLead(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lead id")
			return
		}

		lead, err := st.GetLead(req.Context(), id)
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func handleUpdateStatus(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lead id")
			return
		}

		var body struct {
			Status string `json:"status"`
			Note   string `json:"note"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		status := model.Status(body.Status)
		if !model.ValidStatus(status) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}

		err = st.UpdateStatus(req.Context(), id, status, body.Note)
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "update failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": body.Status})
	}
}

func handleStats(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		stats, err := st.Stats(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "stats failed")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// handleGenerate kicks off a pipeline run in the background. The run uses
// the server's lifetime context, not the request's, so it survives the
// client disconnecting.
func handleGenerate(serverCtx context.Context, p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Query       string  `json:"query"`
			MaxResults  int     `json:"max_results"`
			MinRating   float64 `json:"min_rating"`
			AutoQualify bool    `json:"auto_qualify"`
			MinScore    int     `json:"min_score"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		if body.MaxResults <= 0 {
			body.MaxResults = 20
		}
		if body.MinRating == 0 {
			body.MinRating = cfg.Pipeline.MinRating
		}
		if body.MinScore == 0 {
			body.MinScore = cfg.Pipeline.MinScore
		}

		go func() {
			stats, err := p.Run(serverCtx, pipeline.Params{
				Query:       body.Query,
				MaxResults:  body.MaxResults,
				MinRating:   body.MinRating,
				AutoQualify: body.AutoQualify,
				MinScore:    body.MinScore,
			})
			if err != nil {
				zap.L().Error("api generation run failed",
					zap.String("query", body.Query),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("api generation run complete",
				zap.String("query", body.Query),
				zap.Int("saved", stats.Saved),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"query":  body.Query,
		})
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
