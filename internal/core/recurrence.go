package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gardenkeep/pkg/domain"
)

// EvaluateRecurrences emits one chore for every active schedule due on or
// before today and advances each schedule's anchor to today + frequency.
// Each schedule is handled in its own transaction; the due check is repeated
// inside it so concurrent passes do not emit twice.
func (s *Service) EvaluateRecurrences(ctx context.Context, user domain.UserID, today domain.Date) ([]domain.GardenChore, error) {
	if today.IsZero() {
		today = s.Today()
	}
	var emitted []domain.GardenChore
	err := s.run(ctx, "evaluate_recurrences", user, func(ctx context.Context) (string, error) {
		var schedules []domain.PlantSchedule
		err := s.view(ctx, user, func(v domain.TransactionView) error {
			var err error
			schedules, err = v.ListSchedules()
			return err
		})
		if err != nil {
			return "", err
		}
		for _, sched := range schedules {
			if !sched.DueOn(today) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return strconv.Itoa(len(emitted)), err
			}
			chore, ok, err := s.emitRecurrence(ctx, user, sched.ID, today)
			if err != nil {
				return strconv.Itoa(len(emitted)), fmt.Errorf("schedule %s: %w", sched.ID, err)
			}
			if ok {
				emitted = append(emitted, chore)
			}
		}
		return strconv.Itoa(len(emitted)), nil
	})
	if err != nil {
		return emitted, fmt.Errorf("evaluate recurrences: %w", err)
	}
	if emitted == nil {
		emitted = []domain.GardenChore{}
	}
	return emitted, nil
}

func (s *Service) emitRecurrence(ctx context.Context, user domain.UserID, id string, today domain.Date) (domain.GardenChore, bool, error) {
	var (
		chore   domain.GardenChore
		emitted bool
	)
	err := s.update(ctx, user, func(tx domain.Transaction) error {
		sched, err := tx.GetSchedule(id)
		if err != nil {
			return err
		}
		if !sched.DueOn(today) {
			return nil
		}
		chore, err = tx.CreateChore(sched.RecurringChore(today))
		if err != nil {
			return err
		}
		if _, err := tx.UpdateSchedule(sched.Advance(today)); err != nil {
			return err
		}
		emitted = true
		return nil
	})
	return chore, emitted, err
}

// RecurrenceWorker periodically evaluates recurrences for a fixed set of
// users.
type RecurrenceWorker struct {
	svc      *Service
	users    []domain.UserID
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DefaultRecurrenceInterval is used when the worker is built with a
// non-positive interval.
const DefaultRecurrenceInterval = time.Hour

// NewRecurrenceWorker constructs a worker. It does nothing until Start.
func NewRecurrenceWorker(svc *Service, interval time.Duration, users []domain.UserID) *RecurrenceWorker {
	if interval <= 0 {
		interval = DefaultRecurrenceInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RecurrenceWorker{
		svc:      svc,
		users:    append([]domain.UserID(nil), users...),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs one pass immediately and then one per interval.
func (w *RecurrenceWorker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the running pass.
func (w *RecurrenceWorker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *RecurrenceWorker) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Pass(w.ctx); err != nil && w.ctx.Err() == nil {
			w.svc.logger.Warn("recurrence pass failed", "error", err)
		}
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Pass evaluates every configured user once for the service's today and
// returns the number of chores emitted. Failures for one user do not stop the
// others.
func (w *RecurrenceWorker) Pass(ctx context.Context) (int, error) {
	today := w.svc.Today()
	total := 0
	var errs []error
	for _, user := range w.users {
		chores, err := w.svc.EvaluateRecurrences(ctx, user, today)
		total += len(chores)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", user, err))
		}
	}
	if total > 0 {
		w.svc.logger.Info("recurring chores emitted", "count", total, "date", today.String())
	}
	return total, errors.Join(errs...)
}
