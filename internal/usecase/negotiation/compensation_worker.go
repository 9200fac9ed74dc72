package negotiation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

const (
	compensationBatch   = 50
	maxCompensationWait = time.Hour
)

// CompensationWorker повторяет компенсации из журнала, пока они не выполнятся.
type CompensationWorker struct {
	offers   repository.OfferRepository
	journal  repository.CompensationJournal
	interval time.Duration
	now      func() time.Time
}

func NewCompensationWorker(offers repository.OfferRepository, journal repository.CompensationJournal, interval time.Duration) *CompensationWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CompensationWorker{
		offers:   offers,
		journal:  journal,
		interval: interval,
		now:      time.Now,
	}
}

// Run обрабатывает журнал раз в interval до отмены ctx.
func (w *CompensationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce обрабатывает одну пачку наступивших компенсаций и возвращает
// число успешно выполненных.
func (w *CompensationWorker) RunOnce(ctx context.Context) int {
	log := logger.Get().WithField("component", "compensation_worker")

	due, err := w.journal.ListDue(ctx, w.now(), compensationBatch)
	if err != nil {
		log.WithError(err).Error("Failed to list due compensations")
		return 0
	}

	done := 0
	for i := range due {
		c := &due[i]
		entry := log.WithFields(logrus.Fields{
			"compensation_id": c.ID,
			"offer_id":        c.OfferID,
			"request_id":      c.RequestID,
			"attempts":        c.Attempts,
		})

		if err := w.apply(ctx, c); err != nil {
			next := w.now().Add(backoff(w.interval, c.Attempts+1))
			if merr := w.journal.MarkFailed(ctx, c.ID, err.Error(), next); merr != nil {
				entry.WithError(merr).Error("Failed to reschedule compensation")
			}
			entry.WithError(err).Warn("Compensation attempt failed")
			continue
		}

		if err := w.journal.MarkDone(ctx, c.ID); err != nil {
			entry.WithError(err).Error("Failed to mark compensation done")
			continue
		}
		entry.Info("Compensation completed")
		done++
	}
	return done
}

func (w *CompensationWorker) apply(ctx context.Context, c *entity.Compensation) error {
	switch c.Kind {
	case entity.CompensationDeleteOffer:
		err := w.offers.Delete(ctx, c.OfferID)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		return nil
	default:
		return apperror.New(apperror.ErrCodeInternal, "неизвестный вид компенсации "+string(c.Kind))
	}
}

// backoff удваивает задержку с каждой попыткой, не превышая часа.
func backoff(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts && d < maxCompensationWait; i++ {
		d *= 2
	}
	if d > maxCompensationWait {
		d = maxCompensationWait
	}
	return d
}
