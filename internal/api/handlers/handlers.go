package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/session"
	"github.com/acme/direct-calling/pkg/logger"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutcomeLister pages through a device's outcome journal.
type OutcomeLister interface {
	List(ctx context.Context, deviceID string, limit int, pagingState []byte) ([]domain.Outcome, []byte, error)
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Registry   *session.Registry
	Outcomes   OutcomeLister
	Health     map[string]Pinger
	InvokeWait time.Duration
	Logger     *logger.Logger
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	registry   *session.Registry
	outcomes   OutcomeLister
	health     map[string]Pinger
	invokeWait time.Duration
	logger     *logger.Logger
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(deps Deps) *HandlerSet {
	lg := deps.Logger
	if lg == nil {
		lg = logger.Nop()
	}
	wait := deps.InvokeWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &HandlerSet{
		registry:   deps.Registry,
		outcomes:   deps.Outcomes,
		health:     deps.Health,
		invokeWait: wait,
		logger:     lg,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.healthz)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	devices := v1.Group("/devices/:device")
	devices.Get("/", h.deviceStatus)
	devices.Post("/channel/direct_calling", h.invoke)
	devices.Get("/tickets/:id", h.ticket)
	devices.Post("/permission-result", h.permissionResult)
	devices.Get("/outcomes", h.listOutcomes)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.WithContext(ctx.UserContext()).Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) healthz(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for name, p := range h.health {
		if err := p.Ping(healthCtx); err != nil {
			errs[name] = err.Error()
		}
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
