package handling

import (
	"context"

	"github.com/opsdesk/relay/internal/apierr"
)

// Action is the automated response chosen after classifying an error.
type Action string

const (
	ActionNone     Action = "NONE"
	ActionRetry    Action = "RETRY"
	ActionFallback Action = "FALLBACK"
	ActionRefresh  Action = "REFRESH"
	ActionRedirect Action = "REDIRECT"
	ActionManual   Action = "MANUAL"
)

// Strategy describes one recovery action and its parameters.
type Strategy struct {
	Action     Action
	RedirectTo string     // REDIRECT target path
	Fallback   func() any // FALLBACK value supplier
}

// categoryStrategies are the defaults consulted when no per-code override
// exists. Categories not listed resolve to NONE.
var categoryStrategies = map[apierr.Category]Strategy{
	apierr.CategoryNetwork:        {Action: ActionRetry},
	apierr.CategoryTimeout:        {Action: ActionRetry},
	apierr.CategoryAuthentication: {Action: ActionRedirect, RedirectTo: "/login"},
}

// SetStrategy installs a per-code override, consulted before the category
// defaults.
func (h *Handler) SetStrategy(code string, s Strategy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.strategies[code] = s
}

// resolveStrategy picks a strategy: per-code override, then category
// default, then NONE.
func (h *Handler) resolveStrategy(e *apierr.Error) Strategy {
	h.mu.Lock()
	s, ok := h.strategies[e.Code]
	h.mu.Unlock()
	if ok {
		return s
	}
	if s, ok := categoryStrategies[e.Category]; ok {
		return s
	}
	return Strategy{Action: ActionNone}
}

// recover executes exactly one strategy action, never chaining. RETRY is a
// signal consumed by the retry executor, not acted on here.
func (h *Handler) recover(ctx context.Context, e *apierr.Error) {
	s := h.resolveStrategy(e)

	h.mu.Lock()
	refresh, redirect := h.onRefresh, h.onRedirect
	h.mu.Unlock()

	switch s.Action {
	case ActionRefresh:
		if refresh == nil {
			h.logger.Debug("refresh strategy resolved but no refresh action registered", "code", e.Code)
			return
		}
		if err := refresh(ctx); err != nil {
			h.logger.Warn("credential refresh failed", "error", err, "code", e.Code)
		}
	case ActionRedirect:
		if redirect == nil {
			h.logger.Debug("redirect strategy resolved but no redirect action registered", "code", e.Code)
			return
		}
		redirect(s.RedirectTo)
	case ActionFallback:
		if s.Fallback != nil {
			e.WithContext("fallback", s.Fallback())
		}
	case ActionManual:
		h.logger.Warn("error requires manual intervention", "code", e.Code, "error_id", e.ID)
	case ActionRetry, ActionNone:
		// RETRY is decided by ExecuteWithRetry from the error itself.
	}
}
