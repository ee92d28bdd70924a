// Package intent consumes call intents and hands them to the telephony provider,
// journaling a launch record and publishing a receipt for each.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
	"github.com/acme/direct-calling/internal/telephony"
	"github.com/acme/direct-calling/pkg/logger"
)

// Reader is the consumer side of the intent topic.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Limiter bounds concurrent launches per device.
type Limiter interface {
	Acquire(ctx context.Context, deviceID string) (bool, error)
	Release(ctx context.Context, deviceID string) error
}

// LaunchStore journals launches.
type LaunchStore interface {
	AppendLaunch(ctx context.Context, launch domain.Launch) error
}

// ReceiptPublisher emits launch receipts.
type ReceiptPublisher interface {
	PublishReceipt(ctx context.Context, msg queue.ReceiptMessage) error
}

// Deps are the worker's collaborators. Limiter, Store and Receipts are optional.
type Deps struct {
	Reader   Reader
	Provider telephony.Provider
	Limiter  Limiter
	Store    LaunchStore
	Receipts ReceiptPublisher
	Timeout  time.Duration
	Logger   *logger.Logger
}

// Worker consumes call intents.
type Worker struct {
	deps   Deps
	logger *logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New creates a new intent worker instance.
func New(deps Deps) *Worker {
	lg := deps.Logger
	if lg == nil {
		lg = logger.Nop()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 10 * time.Second
	}
	return &Worker{
		deps:   deps,
		logger: lg.Named("intentworker"),
		tracer: otel.Tracer("directcall.intentworker"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	defer w.deps.Reader.Close()

	for {
		m, err := w.deps.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("intent worker: fetch message", zap.Error(err))
			continue
		}

		if err := w.Process(ctx, m); err != nil {
			w.logger.Error("intent worker: process", zap.Error(err))
		}
	}
}

// Process launches one intent and commits it.
func (w *Worker) Process(ctx context.Context, m kafka.Message) error {
	var msg queue.IntentMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		_ = w.deps.Reader.CommitMessages(ctx, m)
		return fmt.Errorf("unmarshal intent: %w", err)
	}
	if msg.Action != queue.IntentActionCall {
		w.logger.Warn("intent worker: unsupported action", zap.String("action", msg.Action), zap.String("intent_id", msg.IntentID.String()))
		return w.commit(ctx, m)
	}

	sctx, span := w.tracer.Start(ctx, "intent.launch", trace.WithAttributes(
		attribute.String("intent.id", msg.IntentID.String()),
		attribute.String("device.id", msg.DeviceID),
	))
	defer span.End()

	release, err := w.waitForSlot(sctx, msg.DeviceID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer release()

	launch := w.launch(sctx, msg)
	if launch.Error != "" {
		span.SetAttributes(attribute.String("launch.error", launch.Error))
	}

	if w.deps.Store != nil {
		if err := w.deps.Store.AppendLaunch(sctx, launch); err != nil {
			span.RecordError(err)
			w.logger.WithContext(sctx).Error("intent worker: journal launch", zap.String("intent_id", msg.IntentID.String()), zap.Error(err))
		}
	}

	if w.deps.Receipts != nil {
		receipt := queue.ReceiptMessage{
			IntentID:   launch.IntentID,
			DeviceID:   launch.DeviceID,
			Number:     launch.PhoneNumber,
			Status:     string(launch.Status),
			DurationMs: launch.Duration.Milliseconds(),
			Error:      launch.Error,
			OccurredAt: launch.LaunchedAt,
		}
		if err := w.deps.Receipts.PublishReceipt(sctx, receipt); err != nil {
			span.RecordError(err)
			w.logger.WithContext(sctx).Error("intent worker: publish receipt", zap.Error(err))
		}
	}

	return w.commit(sctx, m)
}

func (w *Worker) launch(ctx context.Context, msg queue.IntentMessage) domain.Launch {
	launch := domain.Launch{
		IntentID:    msg.IntentID,
		DeviceID:    msg.DeviceID,
		PhoneNumber: msg.Number,
		Status:      domain.LaunchStatusFailed,
		LaunchedAt:  w.now(),
	}

	if !w.deps.Provider.Supports(ctx, msg.DeviceID) {
		launch.Error = "device cannot place calls"
		return launch
	}

	callCtx, cancel := context.WithTimeout(ctx, w.deps.Timeout)
	result, err := w.deps.Provider.PlaceCall(callCtx, msg)
	cancel()

	launch.Duration = result.Duration
	launch.Error = result.Error
	if err != nil {
		if launch.Error == "" {
			launch.Error = err.Error()
		}
		return launch
	}
	if result.Status != "" {
		launch.Status = result.Status
	}
	return launch
}

func (w *Worker) commit(ctx context.Context, m kafka.Message) error {
	if err := w.deps.Reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func (w *Worker) waitForSlot(ctx context.Context, deviceID string) (func(), error) {
	limiter := w.deps.Limiter
	if limiter == nil {
		return func() {}, nil
	}

	for {
		acquired, err := limiter.Acquire(ctx, deviceID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if acquired {
			return func() {
				if err := limiter.Release(context.WithoutCancel(ctx), deviceID); err != nil {
					w.logger.Warn("intent worker: release slot", zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
