package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/broker/messages"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/models"
)

type Repository interface {
	ListActiveShipments(ctx context.Context) ([]*models.Shipment, error)
	UpdateShipment(ctx context.Context, sh *models.Shipment) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Reconciler is the single background worker keeping stored shipment
// state consistent with the carrier's ground truth. Records are walked
// sequentially within a cycle: the provider is rate-limited and the
// deterministic order keeps cycles reproducible.
type Reconciler struct {
	repo     Repository
	carrier  carrier.Client
	producer Producer
	rl       RateLimiter

	topic string

	interval           time.Duration
	interCallDelay     time.Duration
	retryBackoff       time.Duration
	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalScanned        atomic.Int64
	totalUpdated        atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, carrierClient carrier.Client, producer Producer, rl RateLimiter, topic string) *Reconciler {
	return &Reconciler{
		repo: repo, carrier: carrierClient, producer: producer, rl: rl, topic: topic,
		interval:           15 * time.Minute,
		interCallDelay:     2 * time.Second,
		retryBackoff:       60 * time.Second,
		rateLimitPerMinute: 120,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (r *Reconciler) WithSettings(interval, interCallDelay, retryBackoff time.Duration, rlPerMin int64) *Reconciler {
	if interval > 0 {
		r.interval = interval
	}
	if interCallDelay > 0 {
		r.interCallDelay = interCallDelay
	}
	if retryBackoff > 0 {
		r.retryBackoff = retryBackoff
	}
	if rlPerMin > 0 {
		r.rateLimitPerMinute = rlPerMin
	}
	return r
}

// Trigger forces an immediate cycle (best-effort, non-blocking).
func (r *Reconciler) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalScanned  int64      `json:"totalScanned"`
	TotalUpdated  int64      `json:"totalUpdated"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (r *Reconciler) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalScanned: r.totalScanned.Load(),
		TotalUpdated: r.totalUpdated.Load(),
		TotalErrors:  r.totalErrors.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

// Run loops until ctx is cancelled. A cycle failure (store unavailable
// and the like) is logged and followed by a retry backoff; no failure
// inside a cycle ever terminates the loop.
func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		case <-r.triggerCh:
		}

		if err := r.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("reconcile cycle", "error", err.Error())
			r.setLastError(err)
			if !sleepCtx(ctx, r.retryBackoff) {
				return ctx.Err()
			}
		}
	}
}

func (r *Reconciler) runCycle(ctx context.Context) error {
	now := time.Now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())

	items, err := r.repo.ListActiveShipments(ctx)
	if err != nil {
		return errors.Wrap(err, "list active shipments")
	}
	r.totalScanned.Add(int64(len(items)))

	for i, sh := range items {
		if i > 0 && !sleepCtx(ctx, r.interCallDelay) {
			return ctx.Err()
		}
		if err := r.processOne(ctx, sh); err != nil {
			// Per-record failures are log-only; the record is
			// reconsidered next cycle.
			r.totalErrors.Add(1)
			r.setLastError(err)
			slog.Error("reconcile shipment", "shipment_id", sh.ID, "tracking_number", sh.TrackingNumber, "error", err.Error())
		}
	}
	return nil
}

func (r *Reconciler) processOne(ctx context.Context, sh *models.Shipment) error {
	now := time.Now().UTC()

	if r.rl != nil && r.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:carrier:%s", now.Format("200601021504"))
		allowed, n, err := r.rl.Allow(ctx, minuteKey, r.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			slog.Warn("carrier rate limit exceeded", "count", n)
			if !sleepCtx(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
		}
	}

	snap, err := r.carrier.GetTrackingInfo(ctx, sh.TrackingNumber)
	if err != nil {
		// "No update available", not an error: the provider may be
		// down, rate-limiting us, or simply not know the number yet.
		slog.Debug("carrier lookup skipped", "tracking_number", sh.TrackingNumber, "reason", err.Error())
		return nil
	}

	if !sh.ApplySnapshot(snap, now) {
		return nil
	}

	if err := r.repo.UpdateShipment(ctx, sh); err != nil {
		return err
	}
	r.totalUpdated.Add(1)

	return r.publish(ctx, messages.NewShipmentUpdated(messages.KindStatusChangeAuto, sh, now))
}

func (r *Reconciler) publish(ctx context.Context, msg messages.ShipmentUpdated) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal change event")
	}
	key := []byte(fmt.Sprintf("%d", msg.UserID))
	return r.producer.Publish(ctx, r.topic, key, b)
}

func (r *Reconciler) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}

// sleepCtx sleeps for d or until ctx is done; reports whether the full
// sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
