package introspect

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cwbudde/algo-garden/internal/garden"
	"github.com/cwbudde/algo-garden/internal/snapshotstore"
)

// HandlerOption configures NewHandler.
type HandlerOption func(*handler)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) HandlerOption {
	return func(s *handler) { s.metrics = h }
}

// WithSnapshotStore enables the /snapshots routes.
func WithSnapshotStore(store SnapshotStore) HandlerOption {
	return func(s *handler) { s.store = store }
}

// WithLogger sets the request error logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(s *handler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type handler struct {
	src     Source
	store   SnapshotStore
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler returns the introspection router.
func NewHandler(src Source, opts ...HandlerOption) http.Handler {
	s := &handler{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/graph", func(r chi.Router) {
		r.Get("/", s.graph)
		r.Get("/order", s.order)
		r.Get("/path", s.path)
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, s.src.Stats())
	})
	r.Get("/devices", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, s.src.ListDevices())
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	if s.store != nil {
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.listSnapshots)
			r.Get("/{name}", s.loadSnapshot)
			r.Put("/{name}", s.saveSnapshot)
			r.Delete("/{name}", s.deleteSnapshot)
		})
	}

	return r
}

func (s *handler) graph(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.src.Snapshot())
}

func (s *handler) order(w http.ResponseWriter, _ *http.Request) {
	order, err := processingOrder(s.src)
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (s *handler) path(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("from and to are required"))
		return
	}

	res, err := signalPath(s.src, from, to)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, garden.ErrUnknownNode) {
			status = http.StatusNotFound
		}

		s.writeError(w, status, err)

		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

func (s *handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	if names == nil {
		names = []string{}
	}

	s.writeJSON(w, http.StatusOK, map[string][]string{"snapshots": names})
}

func (s *handler) loadSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, snapshotstore.ErrSnapshotNotFound) {
			status = http.StatusNotFound
		}

		s.writeError(w, status, err)

		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

// saveSnapshot stores the live graph under the given name.
func (s *handler) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.store.Save(r.Context(), name, s.src.Snapshot()); err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"saved": name})
}

func (s *handler) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("introspection request failed", "error", err)
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
