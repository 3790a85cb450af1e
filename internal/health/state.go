// Package health tracks the process lifecycle {starting -> ready} and exposes it over HTTP.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Phase is a step of the process lifecycle.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	default:
		return "starting"
	}
}

// State is safe for concurrent use. The only transition is starting -> ready.
type State struct {
	phase atomic.Int32
}

// NewState returns a State in PhaseStarting.
func NewState() *State {
	return &State{}
}

// MarkReady moves the state to PhaseReady. Further calls are no-ops.
func (s *State) MarkReady() {
	s.phase.Store(int32(PhaseReady))
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

// Ready reports whether the process has reached PhaseReady.
func (s *State) Ready() bool {
	return s.Phase() == PhaseReady
}

// Handler answers 200 once ready and 503 before.
func (s *State) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phase := s.Phase()
		code := http.StatusServiceUnavailable
		if phase == PhaseReady {
			code = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": phase.String()})
	}
}

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AwaitReady pings target until it answers, doubling the wait between
// attempts up to maxBackoff, then marks s ready. It returns early when ctx is done.
func AwaitReady(ctx context.Context, s *State, target Pinger, logger *slog.Logger, initialBackoff, maxBackoff time.Duration) {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := target.Ping(ctx)
		if err == nil {
			s.MarkReady()
			logger.Info("Channel connection established", "attempts", attempt)
			return
		}
		logger.Warn("Channel not reachable yet", "attempt", attempt, "retry_in", backoff.String(), "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
