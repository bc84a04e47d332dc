package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cyp0633/taskcal/server/materialize"
	"github.com/cyp0633/taskcal/server/storage"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// HTTP headers
	HeaderContentType = "Content-Type"
	HeaderAllow       = "Allow"

	// MIME types
	MimeTypeJSON     = "application/json"
	MimeTypeCalendar = "text/calendar; charset=utf-8"

	AllowedMethods = "GET, POST, PUT, DELETE"
	MetricsPath    = "/metrics"
)

// Router exposes the materializer and the stores over HTTP
type Router struct {
	tasks        storage.TaskStore
	events       storage.EventStore
	materializer *materialize.Materializer
	baseURI      string
	handlers     map[string]http.HandlerFunc
	metrics      http.Handler
	validate     *validator.Validate
	locks        *taskLocks
	logger       *slog.Logger
	now          func() time.Time
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithClock sets the clock used for DTSTAMP in calendar exports.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a new router. The event store should be the one the
// materializer writes to.
func NewRouter(tasks storage.TaskStore, events storage.EventStore, m *materialize.Materializer, baseURI string, logger *slog.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		tasks:        tasks,
		events:       events,
		materializer: m,
		baseURI:      strings.TrimSuffix(baseURI, "/"),
		handlers:     make(map[string]http.HandlerFunc),
		metrics:      promhttp.Handler(),
		validate:     newValidator(),
		locks:        newTaskLocks(),
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	// Register method handlers
	r.handlers[http.MethodGet] = r.handleGet
	r.handlers[http.MethodPost] = r.handlePost
	r.handlers[http.MethodPut] = r.handlePut
	r.handlers[http.MethodDelete] = r.handleDelete

	return r
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	path := StripPrefix(req.URL.Path, r.baseURI)

	r.logger.Info("received request",
		"method", req.Method,
		"path", req.URL.Path,
		"remote_addr", req.RemoteAddr)

	defer func() {
		observeRequest(req.Method, resourceLabel(path), rec.status, time.Since(start))
	}()

	if path == MetricsPath && req.Method == http.MethodGet {
		r.metrics.ServeHTTP(rec, req)
		return
	}

	handler, ok := r.handlers[req.Method]
	if !ok {
		r.logger.Warn("method not allowed",
			"method", req.Method,
			"path", req.URL.Path)
		rec.Header().Set(HeaderAllow, AllowedMethods)
		http.Error(rec, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handler(rec, req)
}

// StripPrefix removes the baseURI prefix from the path
func StripPrefix(path, baseURI string) string {
	return strings.TrimPrefix(path, baseURI)
}

// resolve parses the request path, answering 404 itself when it is not an
// API resource.
func (r *Router) resolve(w http.ResponseWriter, req *http.Request) (*storage.ResourcePath, bool) {
	path := StripPrefix(req.URL.Path, r.baseURI)
	resourcePath, err := storage.ParseResourcePath(path)
	if err != nil {
		r.logger.Info("invalid resource path",
			"method", req.Method,
			"error", err,
			"path", path)
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return resourcePath, true
}

// writeJSON encodes v with the given status.
func (r *Router) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(HeaderContentType, MimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps storage errors onto HTTP status codes.
func (r *Router) writeError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	status := http.StatusInternalServerError
	switch {
	case storage.IsType(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case storage.IsType(err, storage.ErrAlreadyExists):
		status = http.StatusConflict
	case storage.IsType(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	attrs = append(attrs, "error", err, "status", status)
	if status == http.StatusInternalServerError {
		r.logger.Error(msg, attrs...)
	} else {
		r.logger.Info(msg, attrs...)
	}
	http.Error(w, err.Error(), status)
}

// taskLocks serializes edits of the same task. The materializer leaves
// this to its caller.
type taskLocks struct {
	mu    sync.Mutex
	locks map[string]*taskLock
}

type taskLock struct {
	sync.Mutex
	refs int
}

func newTaskLocks() *taskLocks {
	return &taskLocks{locks: make(map[string]*taskLock)}
}

// lock blocks until the caller holds taskID and returns the release func.
func (l *taskLocks) lock(taskID string) func() {
	l.mu.Lock()
	tl, ok := l.locks[taskID]
	if !ok {
		tl = &taskLock{}
		l.locks[taskID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.Lock()
	return func() {
		tl.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, taskID)
		}
		l.mu.Unlock()
	}
}
