package services

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"vidyavichar/metrics"
	"vidyavichar/store"
)

const reconcileTimeout = 4 * time.Minute

// Reconciler periodically rewrites every active class's denormalized
// counters from the question collection. The rewrite is not atomic with the
// count: an increment landing between the two is lost until the next run
// corrects it.
type Reconciler struct {
	classes   store.ClassStore
	questions store.QuestionStore
	cron      *cron.Cron
}

func NewReconciler(classes store.ClassStore, questions store.QuestionStore) *Reconciler {
	return &Reconciler{
		classes:   classes,
		questions: questions,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

// Start schedules reconciliation. An empty schedule leaves it disabled.
func (r *Reconciler) Start(schedule string) error {
	if schedule == "" {
		log.Printf("[RECONCILE] no schedule configured, counter reconciliation disabled")
		return nil
	}

	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			log.Printf("[RECONCILE] run failed: %v", err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling reconciler with %q", schedule)
	}

	log.Printf("[RECONCILE] started schedule=%q", schedule)
	r.cron.Start()
	return nil
}

// Stop waits for a running reconciliation to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce reconciles every active class and returns how many were rewritten.
// A failure on one class is logged and does not stop the others.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	classes, err := r.classes.ListActiveClasses(ctx, store.ClassFilter{})
	if err != nil {
		return 0, errors.Wrap(err, "listing active classes")
	}

	reconciled := 0
	for _, class := range classes {
		if err := ctx.Err(); err != nil {
			return reconciled, err
		}

		stats, err := r.questions.CountQuestions(ctx, class.ID)
		if err != nil {
			log.Printf("[RECONCILE] counting questions of class %s: %v", class.ID, err)
			continue
		}

		pending := stats.PendingTotal
		if class.TotalQuestions == stats.Total &&
			class.ActiveQuestions == stats.Active() &&
			class.PendingQuestions == pending {
			continue
		}

		err = r.classes.SetCounters(ctx, class.ID, store.Counters{
			Total:   stats.Total,
			Active:  stats.Active(),
			Pending: &pending,
		})
		if err != nil {
			metrics.CounterWriteFailures.Inc()
			log.Printf("[RECONCILE] writing counters of class %s: %v", class.ID, err)
			continue
		}

		log.Printf("[RECONCILE] class %s: total %d->%d active %d->%d pending %d->%d",
			class.ID, class.TotalQuestions, stats.Total, class.ActiveQuestions, stats.Active(),
			class.PendingQuestions, pending)
		metrics.ReconciledClasses.Inc()
		reconciled++
	}
	return reconciled, nil
}
