package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/worldnews/internal/retry"
)

// ErrBudgetExhausted is returned once the call budget for the current window is used up.
var ErrBudgetExhausted = errors.New("reasoning call budget exhausted")

// CallLimiter paces calls to the reasoning provider and caps how many a day may use.
type CallLimiter struct {
	limiter *rate.Limiter
	log     *slog.Logger

	mu        sync.Mutex
	maxTotal  int
	perTask   map[string]int
	total     int
	denied    int
	resetTime time.Time
	now       func() time.Time
}

// NewCallLimiter allows perMinute calls per minute (0 = unpaced) and maxTotal calls
// per day (0 = unlimited).
func NewCallLimiter(perMinute, maxTotal int, log *slog.Logger) *CallLimiter {
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &CallLimiter{
		limiter:   rate.NewLimiter(limit, burst),
		log:       log,
		maxTotal:  maxTotal,
		perTask:   make(map[string]int),
		resetTime: time.Now().Add(24 * time.Hour),
		now:       time.Now,
	}
}

// Acquire reserves one call for task, waiting for the pacing limiter if needed. A call
// that never got past the pacing wait does not count against the budget.
// Budget exhaustion is returned as a permanent error so callers stop retrying.
func (l *CallLimiter) Acquire(ctx context.Context, task string) error {
	l.mu.Lock()
	l.checkReset()
	if l.maxTotal > 0 && l.total >= l.maxTotal {
		l.denied++
		l.mu.Unlock()
		l.log.Warn("reasoning call budget reached", "task", task, "used", l.maxTotal)
		return retry.Permanent(fmt.Errorf("%w (%d calls)", ErrBudgetExhausted, l.maxTotal))
	}
	l.total++
	l.perTask[task]++
	used := l.total
	l.mu.Unlock()

	if err := l.limiter.Wait(ctx); err != nil {
		l.refund(task)
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	l.log.Debug("reasoning call", "task", task, "used", used, "limit", l.maxTotal)
	return nil
}

func (l *CallLimiter) refund(task string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total > 0 {
		l.total--
	}
	if l.perTask[task] > 0 {
		l.perTask[task]--
	}
}

func (l *CallLimiter) GetStats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := map[string]interface{}{
		"total_used":  l.total,
		"total_limit": l.maxTotal,
		"denied":      l.denied,
	}
	for task, n := range l.perTask {
		stats[task+"_used"] = n
	}
	return stats
}

func (l *CallLimiter) checkReset() {
	if l.now().After(l.resetTime) {
		l.log.Info("resetting reasoning call counters")
		l.total = 0
		l.denied = 0
		l.perTask = make(map[string]int)
		l.resetTime = l.now().Add(24 * time.Hour)
	}
}
