package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"calbook/internal/domain"
	"calbook/internal/metrics"
	"calbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	TaskBookingConfirmed   = "booking_confirmed"
	TaskBookingCancelled   = "booking_cancelled"
	TaskBookingRescheduled = "booking_rescheduled"
)

// NotifyTask is one email to deliver. Previous is set only for
// reschedules and carries the superseded booking.
type NotifyTask struct {
	Type      string
	Booking   *models.Booking
	Previous  *models.Booking
	Attempt   int
	CreatedAt time.Time
}

// NotifyWorker delivers booking emails off the request path. Failed
// deliveries are retried with exponential backoff; a task that exhausts
// its retries is logged and dropped, never blocking later mail.
type NotifyWorker struct {
	notifier    domain.Notifier
	retryPolicy RetryPolicy
	queue       chan NotifyTask
	logger      *zerolog.Logger
	wg          sync.WaitGroup
}

func NewNotifyWorker(notifier domain.Notifier, retry RetryPolicy, queueSize int, logger *zerolog.Logger) *NotifyWorker {
	if queueSize <= 0 {
		queueSize = 100
	}

	return &NotifyWorker{
		notifier:    notifier,
		retryPolicy: retry.withDefaults(),
		queue:       make(chan NotifyTask, queueSize),
		logger:      logger,
	}
}

// Enqueue schedules a delivery. A full queue drops the task with a log
// line instead of stalling the booking request that produced it.
func (w *NotifyWorker) Enqueue(task NotifyTask) error {
	if task.Type == "" {
		return errors.New("task type is required")
	}
	if task.Booking == nil {
		return errors.New("task booking is required")
	}
	task.CreatedAt = time.Now()

	select {
	case w.queue <- task:
		return nil
	default:
		metrics.IncNotification("dropped")
		w.logger.Error().Str("type", task.Type).Str("uid", task.Booking.UID).
			Msg("Notification queue full, task dropped")
		return errors.New("notification queue is full")
	}
}

// Start runs the delivery loop until ctx is cancelled.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-w.queue:
				w.process(ctx, task)
			}
		}
	}()
}

// Wait blocks until the delivery loop has exited.
func (w *NotifyWorker) Wait() {
	w.wg.Wait()
}

func (w *NotifyWorker) process(ctx context.Context, task NotifyTask) {
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		err := w.deliver(ctx, task)
		if err == nil {
			metrics.IncNotification("sent")
			w.logger.Info().Str("type", task.Type).Str("uid", task.Booking.UID).
				Int("attempt", attempt).Msg("Notification delivered")
			return
		}
		if ctx.Err() != nil {
			return
		}

		w.logger.Warn().Err(err).Str("type", task.Type).Str("uid", task.Booking.UID).
			Int("attempt", attempt).Msg("Notification delivery failed")

		if attempt == w.retryPolicy.MaxRetries {
			break
		}
		metrics.IncNotification("retried")
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryPolicy.NextDelay(attempt)):
		}
	}

	metrics.IncNotification("dropped")
	w.logger.Error().Str("type", task.Type).Str("uid", task.Booking.UID).
		Msg("Notification dropped after retries exhausted")
}

func (w *NotifyWorker) deliver(ctx context.Context, task NotifyTask) error {
	switch task.Type {
	case TaskBookingConfirmed:
		return w.notifier.SendBookingConfirmed(ctx, task.Booking)
	case TaskBookingCancelled:
		return w.notifier.SendBookingCancelled(ctx, task.Booking)
	case TaskBookingRescheduled:
		return w.notifier.SendBookingRescheduled(ctx, task.Previous, task.Booking)
	default:
		return errors.New("unknown notification task type: " + task.Type)
	}
}
