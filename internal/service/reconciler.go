package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/robfig/cron/v3"
)

const reconcilePageSize = 100

// Reconciler periodically recomputes the cached projections of open orders
// from their trips.
type Reconciler struct {
	allocation *AllocationService
	cron       *cron.Cron
	timeout    time.Duration
	mu         sync.Mutex
	running    bool
}

// NewReconciler creates a Reconciler. Each run is bounded by timeout; zero
// means no bound.
func NewReconciler(allocation *AllocationService, timeout time.Duration) *Reconciler {
	return &Reconciler{
		allocation: allocation,
		cron:       cron.New(),
		timeout:    timeout,
	}
}

// Start schedules the job with a standard cron spec or a descriptor such as
// "@every 15m".
func (r *Reconciler) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return fmt.Errorf("invalid reconciler schedule %q: %w", schedule, err)
	}
	r.cron.Start()
	log := logger.Component("reconciler")
	log.Info().Str("schedule", schedule).Msg("Order reconciler started")
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
	log := logger.Component("reconciler")
	log.Info().Msg("Order reconciler stopped")
}

func (r *Reconciler) tick() {
	// Overlapping runs are skipped.
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if _, err := r.RunOnce(ctx); err != nil {
		log := logger.Component("reconciler")
		log.Error().Err(err).Msg("Order reconciliation failed")
	}
}

// RunOnce reconciles every order that is not cancelled and returns how many
// were repaired. A failure on one order is logged and does not stop the pass.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx, "reconciler")
	repaired := 0
	for skip := 0; ; skip += reconcilePageSize {
		orders, _, err := r.allocation.ListOrders(ctx, repository.OrderFilter{
			ExcludeStatuses: []model.OrderStatus{model.OrderCancelled},
			Limit:           reconcilePageSize,
			Skip:            skip,
		})
		if err != nil {
			return repaired, fmt.Errorf("failed to list orders: %w", err)
		}
		for _, o := range orders {
			if err := ctx.Err(); err != nil {
				return repaired, err
			}
			changed, err := r.allocation.Reconcile(ctx, o.ID)
			if err != nil {
				log.Warn().Err(err).Str("order_id", o.ID).Msg("Order reconciliation skipped")
				continue
			}
			if changed {
				repaired++
			}
		}
		if len(orders) < reconcilePageSize {
			break
		}
	}
	log.Debug().Int("repaired", repaired).Msg("Order reconciliation pass completed")
	return repaired, nil
}
