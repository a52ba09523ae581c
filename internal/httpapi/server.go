package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelsync/internal/document"
	"modelsync/internal/manager"
	"modelsync/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager implements it.
type Service interface {
	Update(ctx context.Context, root manager.Node, opaque any) *manager.Op
	DeleteID(ctx context.Context, id manager.ID, opaque any) *manager.Op
	Lookup(ctx context.Context, id manager.ID) (manager.Node, bool, error)
	Subscribe(l manager.Listener, ids ...manager.ID) *manager.Subscription
	LowMemory()
	Status(ctx context.Context) (types.StatusResponse, error)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		methods := corsAllowedMethods
		if len(methods) == 0 {
			methods = []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions}
		}
		headers := corsAllowedHeaders
		if len(headers) == 0 {
			headers = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}

	// The websocket endpoint stays outside the compressed group: the
	// connection is hijacked.
	r.Get("/subscribe", serveSubscribe(svc, newUpgrader()))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Put("/models", handleUpdate(svc))
		r.Get("/models/{id}", handleGet(svc))
		r.Delete("/models/{id}", handleDelete(svc))

		r.Post("/memory-pressure", func(w http.ResponseWriter, r *http.Request) {
			svc.LowMemory()
			logDebug(r, "memory_pressure", "low memory signal requested", nil)
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
		})

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			st, err := svc.Status(r.Context())
			if err != nil {
				writeManagerError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("closed"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleUpdate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var m types.Model
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			// Oversized bodies also land here; do not leak the limit.
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		root := document.New(m)
		if len(manager.TrackedIDs(root)) == 0 {
			writeJSONError(w, http.StatusBadRequest, "model tree has no identified nodes")
			return
		}
		var opaque any
		if c := r.URL.Query().Get("context"); c != "" {
			opaque = c
		}

		// Join the server base context so shutdown releases waiting handlers.
		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		op := svc.Update(ctx, root, opaque)
		if err := op.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				if r.Context().Err() == nil {
					writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
				}
				return
			}
			writeManagerError(w, err)
			logEnd(r, "update", statusFor(err), start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.UpdateResponse{Seq: op.Seq()})
		logEnd(r, "update", http.StatusOK, start, nil)
	}
}

func handleGet(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := manager.ID(chi.URLParam(r, "id"))
		n, ok, err := svc.Lookup(r.Context(), id)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		if !ok {
			writeJSONError(w, http.StatusNotFound, "model not found: "+string(id))
			return
		}
		writeJSON(w, http.StatusOK, document.ToModel(n))
	}
}

func handleDelete(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := manager.ID(chi.URLParam(r, "id"))
		var opaque any
		if c := r.URL.Query().Get("context"); c != "" {
			opaque = c
		}
		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		op := svc.DeleteID(ctx, id, opaque)
		if err := op.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			writeManagerError(w, err)
			logEnd(r, "delete", statusFor(err), start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.UpdateResponse{Seq: op.Seq()})
		logEnd(r, "delete", http.StatusOK, start, nil)
	}
}
