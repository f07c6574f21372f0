package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"visits/internal/domain"
	"visits/internal/localstore"
	"visits/internal/visitapi"
)

// ErrSyncInFlight is returned by ForceSync when a sync is already running.
var ErrSyncInFlight = errors.New("sync already in flight")

const (
	DefaultInterval      = 1 * time.Minute
	DefaultBatchSize     = 50
	DefaultMaxRejections = 3
)

// Client is the remote API surface the worker drains to.
type Client interface {
	BatchSync(ctx context.Context, visits []*domain.Visit) ([]visitapi.SyncResult, error)
}

// NetworkStatus reports current connectivity.
type NetworkStatus interface {
	Online(ctx context.Context) bool
}

// Config holds sync worker tuning.
type Config struct {
	Interval      time.Duration
	BatchSize     int
	MaxRejections int
}

// Worker reconciles locally recorded visits with the remote API. Triggers
// are a periodic ticker, online-transition notifications, and explicit
// force-sync calls; overlapping triggers serialize through an in-flight
// guard.
type Worker struct {
	store   localstore.Store
	client  Client
	network NetworkStatus
	cfg     Config
	log     *logrus.Logger

	inFlight atomic.Bool
	notify   chan struct{}
}

// NewWorker creates a sync worker.
func NewWorker(store localstore.Store, client Client, network NetworkStatus, cfg Config, log *logrus.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRejections <= 0 {
		cfg.MaxRejections = DefaultMaxRejections
	}
	if log == nil {
		log = logrus.New()
	}

	return &Worker{
		store:   store,
		client:  client,
		network: network,
		cfg:     cfg,
		log:     log,
		notify:  make(chan struct{}, 1),
	}
}

// Run drains on the periodic interval and on Notify until ctx is cancelled.
// Transient failures are retried on the next trigger, never surfaced.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.notify:
		}

		if err := w.syncOnce(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
			w.log.WithError(err).Warn("sync attempt failed, will retry")
		}
	}
}

// Notify signals a network-online transition. Non-blocking; coalesces with
// any pending notification.
func (w *Worker) Notify() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// ForceSync runs one sync pass immediately and reports its outcome.
func (w *Worker) ForceSync(ctx context.Context) error {
	return w.syncOnce(ctx)
}

func (w *Worker) syncOnce(ctx context.Context) error {
	if !w.inFlight.CompareAndSwap(false, true) {
		return ErrSyncInFlight
	}
	defer w.inFlight.Store(false)

	if w.network != nil && !w.network.Online(ctx) {
		w.log.Debug("offline, deferring sync")
		return nil
	}

	pending, err := w.store.FindUnsynced(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	for start := 0; start < len(pending); start += w.cfg.BatchSize {
		end := start + w.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}

		if err := w.syncBatch(ctx, pending[start:end]); err != nil {
			// Records stay unsynced; the next trigger resends them.
			return err
		}
	}

	return nil
}

func (w *Worker) syncBatch(ctx context.Context, batch []*domain.Visit) error {
	results, err := w.client.BatchSync(ctx, batch)
	if err != nil {
		return err
	}

	for _, result := range results {
		switch result.Status {
		case visitapi.StatusSynced:
			serverID := result.ServerID
			if serverID == "" {
				serverID = result.ClientID
			}
			// A visit deleted locally while the batch was in flight has
			// nothing left to reconcile.
			if err := w.store.MarkSynced(ctx, result.ClientID, serverID); err != nil && !errors.Is(err, localstore.ErrNotFound) {
				return err
			}

		case visitapi.StatusRejected:
			if err := w.recordRejection(ctx, result); err != nil {
				return err
			}

		default:
			w.log.WithFields(logrus.Fields{
				"visit_id": result.ClientID,
				"status":   result.Status,
			}).Warn("unknown sync result status")
		}
	}

	return nil
}

// recordRejection counts a permanent server rejection. The visit is never
// auto-deleted; after MaxRejections it is flagged and dropped from future
// batches pending manual correction.
func (w *Worker) recordRejection(ctx context.Context, result visitapi.SyncResult) error {
	w.log.WithFields(logrus.Fields{
		"visit_id": result.ClientID,
		"reason":   result.Error,
	}).Warn("visit rejected by server")

	attempts, err := w.store.IncrementSyncAttempts(ctx, result.ClientID)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return nil
		}
		return err
	}

	if attempts >= w.cfg.MaxRejections {
		return w.store.MarkRejected(ctx, result.ClientID)
	}

	return nil
}
