package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/intake"
	"github.com/sells-group/netsheet-cli/internal/listing"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/netsheet"
	"github.com/sells-group/netsheet-cli/internal/store"
)

var (
	servePort int
	servePoll bool
)

// serverDeps are the collaborators behind the HTTP API. Health is nil when
// the server runs without the inbox poller.
type serverDeps struct {
	Store    store.Store
	Listings listing.Source
	Defaults listing.Defaults
	Fees     netsheet.Fees
	Health   *intake.HealthState
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the net sheet HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode := "serve"
		if servePoll {
			mode = "poll"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		deps := serverDeps{
			Defaults: listing.DefaultsFromConfig(cfg.NetSheet),
			Fees:     netsheet.FeesFromConfig(cfg.NetSheet),
		}

		if servePoll {
			env, err := initEnv(ctx, mode)
			if err != nil {
				return err
			}
			defer env.Close()

			deps.Store, deps.Listings = env.Store, env.Listings
			deps.Health = intake.NewHealthState(cfg.Intake.MaxConsecutiveErrors)
			poller := intake.NewPoller(intake.NewDirSource(cfg.Intake.InboxDir), env.Processor, deps.Health, cfg.Intake)
			go func() {
				if err := poller.Run(ctx); err != nil {
					zap.L().Error("poller stopped", zap.Error(err))
				}
			}()
		} else {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			src, closeListings, err := initListings(ctx)
			if err != nil {
				return err
			}
			defer closeListings()
			deps.Store, deps.Listings = st, src
		}

		startMonitoring(ctx, deps.Store, deps.Health)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.Bool("poll", servePoll))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&servePoll, "poll", false, "also run the inbox poller")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the API routes.
func buildRouter(d serverDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", d.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/netsheet", d.netSheet)
		r.Get("/runs", d.listRuns)
		r.Get("/runs/{id}", d.getRun)
	})
	return r
}

func (d serverDeps) health(w http.ResponseWriter, _ *http.Request) {
	if d.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	snap := d.Health.Snapshot()
	if snap.Degraded {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "intake": snap})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "intake": snap})
}

func (d serverDeps) netSheet(w http.ResponseWriter, r *http.Request) {
	var req calcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields is required")
		return
	}
	writeJSON(w, http.StatusOK, calculate(r.Context(), req, d.Listings, d.Defaults, d.Fees))
}

func (d serverDeps) listRuns(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:   model.RunStatus(q.Get("status")),
		Document: q.Get("document"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := d.Store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (d serverDeps) getRun(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := d.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
