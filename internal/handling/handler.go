// Package handling is the single entry point for error processing: it
// normalizes raw failures, logs them at severity-derived levels, tracks
// per-code error bursts, dispatches to monitoring sinks, runs recovery
// strategies, and signals user feedback to registered subscribers.
package handling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opsdesk/relay/internal/apierr"
)

// Context describes one handling invocation. It is transient: it lives for
// the duration of a single Handle call and any emission it triggers.
type Context struct {
	Operation string
	Component string
	UserID    string
	SessionID string
	Data      map[string]any
}

// Feedback is the presentation hint derived from severity. The consumer
// owns actual rendering.
type Feedback struct {
	Style       string // "toast", "banner", or "modal"
	Dismissible bool
	Actions     []string
	Error       *apierr.Error
}

// Config holds handler settings.
type Config struct {
	RecoveryEnabled bool
	FeedbackEnabled bool
	BurstThreshold  int           // per-code error count that triggers the advisory warning
	BurstWindow     time.Duration // rolling window for the burst tracker
	Backoff         apierr.Backoff
}

// DefaultConfig returns the handler defaults: recovery and feedback on,
// burst warning past 10 errors per code per hour.
func DefaultConfig() Config {
	return Config{
		RecoveryEnabled: true,
		FeedbackEnabled: true,
		BurstThreshold:  10,
		BurstWindow:     time.Hour,
		Backoff:         apierr.DefaultBackoff(),
	}
}

type codeWindow struct {
	count       int
	windowStart time.Time
}

// Handler processes errors. Construct one per composition root and share it;
// there is no package-level instance.
type Handler struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	freq       map[string]*codeWindow
	strategies map[string]Strategy

	monitoring Sink
	notifier   Sink

	subMu       sync.RWMutex
	subscribers []func(Feedback)

	onRefresh  func(context.Context) error
	onRedirect func(path string)

	now func() time.Time
}

// New creates a handler. Either sink may be nil, which disables that
// dispatch; the absence is logged once here rather than on every error.
func New(cfg Config, logger *slog.Logger, monitoring, notifier Sink) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BurstThreshold <= 0 {
		cfg.BurstThreshold = 10
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = time.Hour
	}
	if monitoring == nil {
		logger.Info("error monitoring dispatch disabled, no sink configured")
	}
	if notifier == nil {
		logger.Info("critical-error notification dispatch disabled, no sink configured")
	}
	return &Handler{
		cfg:        cfg,
		logger:     logger,
		freq:       make(map[string]*codeWindow),
		strategies: make(map[string]Strategy),
		monitoring: monitoring,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Subscribe registers a feedback consumer. Callbacks run synchronously on
// the handling goroutine and must be fast.
func (h *Handler) Subscribe(fn func(Feedback)) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}

// OnRefresh registers the credential-refresh action for REFRESH recovery.
func (h *Handler) OnRefresh(fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRefresh = fn
}

// OnRedirect registers the navigation action for REDIRECT recovery.
func (h *Handler) OnRedirect(fn func(path string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRedirect = fn
}

// HandleOption tunes a single Handle call.
type HandleOption func(*handleOptions)

type handleOptions struct {
	suppressFeedback bool
	suppressRecovery bool
}

// WithoutFeedback suppresses the feedback signal for this call. The retry
// executor uses it so intermediate attempts stay silent.
func WithoutFeedback() HandleOption {
	return func(o *handleOptions) { o.suppressFeedback = true }
}

// WithoutRecovery suppresses strategy execution for this call.
func WithoutRecovery() HandleOption {
	return func(o *handleOptions) { o.suppressRecovery = true }
}

// Handle normalizes the raw error and runs the full processing sequence. It always
// returns the normalized error: any failure inside logging, tracking,
// dispatch, or recovery is caught and logged, never propagated.
func (h *Handler) Handle(ctx context.Context, raw error, ectx Context, opts ...HandleOption) *apierr.Error {
	e := apierr.Normalize(raw)
	if e == nil {
		return nil
	}

	var o handleOptions
	for _, opt := range opts {
		opt(&o)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic inside error handling", "panic", r, "code", e.Code)
			}
		}()

		h.log(e, ectx)
		h.trackFrequency(e)
		h.dispatch(ctx, e, ectx)

		if h.cfg.RecoveryEnabled && !o.suppressRecovery {
			h.recover(ctx, e)
		}
		if h.cfg.FeedbackEnabled && !o.suppressFeedback {
			h.signalFeedback(e)
		}
	}()

	return e
}

func (h *Handler) log(e *apierr.Error, ectx Context) {
	attrs := []any{
		"code", e.Code,
		"category", string(e.Category),
		"severity", e.Severity.String(),
		"retryable", e.Retryable,
		"error_id", e.ID,
	}
	if ectx.Operation != "" {
		attrs = append(attrs, "operation", ectx.Operation)
	}
	if ectx.Component != "" {
		attrs = append(attrs, "component", ectx.Component)
	}
	if e.CorrelationID != "" {
		attrs = append(attrs, "correlation_id", e.CorrelationID)
	}

	switch {
	case e.Severity >= apierr.SeverityHigh:
		h.logger.Error(e.Message, attrs...)
	case e.Severity == apierr.SeverityMedium:
		h.logger.Warn(e.Message, attrs...)
	default:
		h.logger.Debug(e.Message, attrs...)
	}
}

// trackFrequency maintains the per-code rolling window and warns once per
// window when a code crosses the burst threshold. Advisory only.
func (h *Handler) trackFrequency(e *apierr.Error) {
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	w := h.freq[e.Code]
	if w == nil || now.Sub(w.windowStart) > h.cfg.BurstWindow {
		w = &codeWindow{windowStart: now}
		h.freq[e.Code] = w
	}
	w.count++

	if w.count == h.cfg.BurstThreshold+1 {
		h.logger.Warn("high error rate for code",
			"code", e.Code,
			"count", w.count,
			"window", h.cfg.BurstWindow.String(),
		)
	}
}

// dispatch reports the error to the monitoring sink, and to the notifier
// for CRITICAL severity. Both are fire-and-continue.
func (h *Handler) dispatch(ctx context.Context, e *apierr.Error, ectx Context) {
	report := func(sink Sink, kind string) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.Error("panic in "+kind+" sink", "panic", r)
				}
			}()
			if err := sink.Report(context.WithoutCancel(ctx), e, ectx); err != nil {
				h.logger.Warn(kind+" dispatch failed", "error", err, "code", e.Code)
			}
		}()
	}

	if h.monitoring != nil {
		report(h.monitoring, "monitoring")
	}
	if h.notifier != nil && e.Severity == apierr.SeverityCritical {
		report(h.notifier, "notification")
	}
}

// signalFeedback maps severity to a presentation hint and notifies
// subscribers. The mapping is a function of severity only.
func (h *Handler) signalFeedback(e *apierr.Error) {
	var fb Feedback
	switch e.Severity {
	case apierr.SeverityCritical:
		fb = Feedback{Style: "modal", Dismissible: false, Actions: []string{"reload"}}
	case apierr.SeverityHigh:
		fb = Feedback{Style: "banner", Dismissible: false, Actions: []string{"acknowledge"}}
	case apierr.SeverityMedium:
		fb = Feedback{Style: "toast", Dismissible: true, Actions: []string{"retry"}}
	default:
		fb = Feedback{Style: "toast", Dismissible: true}
	}
	fb.Error = e

	h.subMu.RLock()
	subs := h.subscribers
	h.subMu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.Error("panic in feedback subscriber", "panic", r)
				}
			}()
			fn(fb)
		}()
	}
}
