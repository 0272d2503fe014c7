package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/dshills/broadcaster/internal/event"
)

// Service defines the methods required by the HTTP API layer.
// Implementations run each call on the broadcaster's execution context.
type Service interface {
	Publish(ctx context.Context, id event.EventID, payload []any, urgent bool) (event.Delivery, error)
	SetSuspended(ctx context.Context, suspended bool) error
	AllowList(ctx context.Context) ([]event.EventID, error)
	SetAllowList(ctx context.Context, ids []event.EventID) error
	ClearAllowList(ctx context.Context) error
	Stats() event.Stats
	Ready() bool
}

// PostResponse is the reply to POST /events/{id}.
type PostResponse struct {
	PostID    string `json:"post_id"`
	Event     int    `json:"event"`
	Delivered int    `json:"delivered"`
	Delayed   bool   `json:"delayed"`
}

// SuspendResponse is the reply to PUT /suspend.
type SuspendResponse struct {
	Suspended bool `json:"suspended"`
}

// AllowListResponse is the reply to the allow-list routes.
type AllowListResponse struct {
	IDs []int `json:"ids"`
}

// StatsResponse is the reply to GET /stats.
type StatsResponse struct {
	EventsPosted    uint64  `json:"events_posted"`
	EventsDelayed   uint64  `json:"events_delayed"`
	EventsReplayed  uint64  `json:"events_replayed"`
	EventsRejected  uint64  `json:"events_rejected"`
	Notifications   uint64  `json:"notifications"`
	ObserverPanics  uint64  `json:"observer_panics"`
	ObserversReaped uint64  `json:"observers_reaped"`
	ObserverTimeMs  float64 `json:"observer_time_ms"`
	SlowestMs       float64 `json:"slowest_observer_ms"`
	ActiveObservers int     `json:"active_observers"`
	DelayQueueDepth int     `json:"delay_queue_depth"`
	DispatchDepth   int     `json:"dispatch_depth"`
	Suspended       bool    `json:"suspended"`
}

// Option configures the router.
type Option func(*options)

type options struct {
	log            zerolog.Logger
	registerer     prometheus.Registerer
	gatherer       prometheus.Gatherer
	metricsPath    string
	allowedOrigins []string
	requestTimeout time.Duration
	maxBodyBytes   int64
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics instruments the router into reg and serves gatherer at path.
func WithMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer, path string) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = gatherer
		o.metricsPath = path
	}
}

// WithAllowedOrigins enables CORS for origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *options) { o.allowedOrigins = origins }
}

// WithRequestTimeout bounds how long a request waits for the loop.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

type server struct {
	svc     Service
	opts    options
	metrics *httpMetrics
}

// NewMux builds the control surface router.
func NewMux(svc Service, opts ...Option) (http.Handler, error) {
	o := options{
		log:            zerolog.Nop(),
		metricsPath:    "/metrics",
		requestTimeout: 5 * time.Second,
		maxBodyBytes:   1 << 20,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &server{svc: svc, opts: o}
	if o.registerer != nil {
		m, err := newHTTPMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.metrics != nil {
		r.Use(s.metrics.middleware)
	}
	if len(o.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/events/{id}", s.handlePost)
	r.Put("/suspend", s.handleSuspend)
	r.Get("/allow-list", s.handleGetAllowList)
	r.Put("/allow-list", s.handleSetAllowList)
	r.Delete("/allow-list", s.handleClearAllowList)
	r.Get("/stats", s.handleStats)

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
		_, _ = w.Write([]byte("starting"))
	})

	if o.gatherer != nil {
		r.Get(o.metricsPath, promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r, nil
}

func (s *server) handlePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "event id must be an integer")
		return
	}
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	payload, urgent, err := parsePostBody(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if q := r.URL.Query().Get("urgent"); q != "" {
		urgent, err = strconv.ParseBool(q)
		if err != nil {
			s.fail(w, r, newBadRequest("urgent must be a boolean"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.requestTimeout)
	defer cancel()
	d, err := s.svc.Publish(ctx, event.EventID(id), payload, urgent)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	postID := uuid.NewString()
	s.opts.log.Debug().
		Str("post_id", postID).
		Int("event", id).
		Int("delivered", d.Delivered).
		Bool("delayed", d.Delayed).
		Msg("post accepted")

	status := http.StatusOK
	if d.Delayed {
		status = http.StatusAccepted
	}
	writeJSON(w, status, PostResponse{PostID: postID, Event: id, Delivered: d.Delivered, Delayed: d.Delayed})
}

func (s *server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	root, err := parseObject(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := root.Get("suspended")
	if !isBool(v) {
		s.fail(w, r, newBadRequest("suspended must be a boolean"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.requestTimeout)
	defer cancel()
	if err := s.svc.SetSuspended(ctx, v.Bool()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuspendResponse{Suspended: v.Bool()})
}

func (s *server) handleGetAllowList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.requestTimeout)
	defer cancel()
	ids, err := s.svc.AllowList(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AllowListResponse{IDs: toInts(ids)})
}

func (s *server) handleSetAllowList(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ids, err := parseAllowList(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.requestTimeout)
	defer cancel()
	if err := s.svc.SetAllowList(ctx, ids); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AllowListResponse{IDs: toInts(ids)})
}

func (s *server) handleClearAllowList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.requestTimeout)
	defer cancel()
	if err := s.svc.ClearAllowList(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{
		EventsPosted:    st.EventsPosted,
		EventsDelayed:   st.EventsDelayed,
		EventsReplayed:  st.EventsReplayed,
		EventsRejected:  st.EventsRejected,
		Notifications:   st.Notifications,
		ObserverPanics:  st.ObserverPanics,
		ObserversReaped: st.ObserversReaped,
		ObserverTimeMs:  millis(st.ObserverTime),
		SlowestMs:       millis(st.SlowestObserver),
		ActiveObservers: st.ActiveObservers,
		DelayQueueDepth: st.DelayQueueDepth,
		DispatchDepth:   st.DispatchDepth,
		Suspended:       st.Suspended,
	})
}

// readBody reads the request body up to the configured limit.
func (s *server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, newBadRequest("request body too large")
		}
		return nil, newBadRequest("reading request body failed")
	}
	return body, nil
}

// fail writes err as a JSON error and logs it.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		s.metrics.backpressure("loop_queue_full")
	}
	ev := s.opts.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.opts.log.Error()
	}
	ev.Err(err).
		Int("status", status).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request failed")
	writeJSONError(w, status, err.Error())
}

// logRequests logs every request at debug level.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.opts.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("dur", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseObject validates body as a JSON object. An empty body is an empty
// object.
func parseObject(body []byte) (gjson.Result, error) {
	if len(body) == 0 {
		return gjson.Parse("{}"), nil
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, newBadRequest("invalid JSON body")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, newBadRequest("body must be a JSON object")
	}
	return root, nil
}

// parsePostBody extracts the payload and urgency of a post. A scalar or
// object payload is treated as a single-element payload.
func parsePostBody(body []byte) ([]any, bool, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, false, err
	}

	var payload []any
	if p := root.Get("payload"); p.Exists() {
		if p.IsArray() {
			elems := p.Array()
			payload = make([]any, 0, len(elems))
			for _, el := range elems {
				payload = append(payload, el.Value())
			}
		} else {
			payload = []any{p.Value()}
		}
	}

	urgent := false
	if u := root.Get("urgent"); u.Exists() {
		if !isBool(u) {
			return nil, false, newBadRequest("urgent must be a boolean")
		}
		urgent = u.Bool()
	}
	return payload, urgent, nil
}

// parseAllowList extracts {"ids": [...]}; every id must be an integer.
func parseAllowList(body []byte) ([]event.EventID, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	v := root.Get("ids")
	if !v.IsArray() {
		return nil, newBadRequest("ids must be an array of integers")
	}
	elems := v.Array()
	ids := make([]event.EventID, 0, len(elems))
	for _, el := range elems {
		if el.Type != gjson.Number || el.Num != math.Trunc(el.Num) {
			return nil, newBadRequest("ids must be an array of integers")
		}
		ids = append(ids, event.EventID(el.Int()))
	}
	return ids, nil
}

func isBool(v gjson.Result) bool {
	return v.Type == gjson.True || v.Type == gjson.False
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func toInts(ids []event.EventID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
