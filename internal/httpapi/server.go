package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matchd/internal/features"
	"matchd/internal/loader"
	"matchd/internal/manifest"
	"matchd/internal/predict"
	"matchd/internal/session"
	"matchd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Predict(ctx context.Context, req types.PredictRequest) (*types.PredictResponse, error)
	Status(ctx context.Context) (*types.StatusResponse, error)
	Reload(ctx context.Context) (*types.ReloadResponse, error)
	Ready(ctx context.Context) error
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Home) == "" || strings.TrimSpace(req.Away) == "" {
			writeJSONError(w, http.StatusBadRequest, "home and away are required")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Str("home", req.Home).Str("away", req.Away).Str("season", req.Season)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("predict start")
		}

		resp, err := svc.Predict(r.Context(), req)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			if lvl >= LevelError && zlog != nil {
				z := zlog.Error().Int("status", status).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Err(err).Msg("predict end")
			}
			return
		}

		modelIDs := make([]string, 0, len(resp.Models))
		for _, m := range resp.Models {
			modelIDs = append(modelIDs, m.ModelID)
		}
		recordPredictions(modelIDs)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Int("status", 200).Int("models", len(resp.Models)).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("predict end")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.Status(r.Context())
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
		// Auth comes first: an unauthorized caller must not trigger any
		// manifest work.
		if reloadToken == "" {
			writeJSONError(w, http.StatusServiceUnavailable, "reload is not configured")
			return
		}
		token := r.Header.Get("X-Reload-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(reloadToken)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "invalid reload token")
			return
		}

		resp, err := svc.Reload(r.Context())
		if err != nil {
			recordReload("error")
			writeJSONError(w, statusForError(err), err.Error())
			if zlog != nil {
				zlog.Error().Err(err).Msg("reload failed")
			}
			return
		}
		recordReload("ok")
		if zlog != nil {
			zlog.Info().Str("run_id", resp.RunID).Int("models", resp.ModelCount).Msg("reload ok")
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("loading"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// statusForError maps well-known service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case features.IsInvalidRequest(err):
		return http.StatusBadRequest
	case features.IsUnknownTeam(err), features.IsFixtureNotFound(err):
		return http.StatusNotFound
	case predict.IsNoUsableModel(err), session.IsRuntimeUnavailable(err):
		return http.StatusServiceUnavailable
	case manifest.IsValidation(err), loader.IsUnreachableSource(err):
		return http.StatusInternalServerError
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
