package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/direct-calling/internal/bridge"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

type invokeRequest struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments"`
}

type permissionResultRequest struct {
	RequestCode int  `json:"request_code"`
	Granted     bool `json:"granted"`
}

type ticketResponse struct {
	TicketID   uuid.UUID            `json:"ticket_id"`
	Method     string               `json:"method"`
	Pending    bool                 `json:"pending"`
	Outcome    domain.OutcomeStatus `json:"outcome,omitempty"`
	Reply      *bridge.Reply        `json:"reply,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
}

func deviceParam(ctx *fiber.Ctx) (string, error) {
	device := strings.TrimSpace(ctx.Params("device"))
	if device == "" {
		return "", fiber.NewError(http.StatusBadRequest, "device id is required")
	}
	return device, nil
}

func (h *HandlerSet) deviceStatus(ctx *fiber.Ctx) error {
	device, err := deviceParam(ctx)
	if err != nil {
		return err
	}
	return ctx.Status(http.StatusOK).JSON(h.registry.Status(ctx.UserContext(), device))
}

// invoke answers with the reply when the ticket resolves within invokeWait,
// otherwise with 202 and the ticket id to poll.
func (h *HandlerSet) invoke(ctx *fiber.Ctx) error {
	device, err := deviceParam(ctx)
	if err != nil {
		return err
	}

	var req invokeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Method == "" {
		return fiber.NewError(http.StatusBadRequest, "method is required")
	}

	ticket, err := h.registry.Invoke(ctx.UserContext(), device, bridge.MethodCall{Method: req.Method, Arguments: req.Arguments})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotImplemented) {
			reply := bridge.NotImplemented()
			return ctx.Status(http.StatusOK).JSON(fiber.Map{"reply": reply})
		}
		return translateError(err)
	}

	timer := time.NewTimer(h.invokeWait)
	defer timer.Stop()
	select {
	case <-ticket.Done():
		return ctx.Status(http.StatusOK).JSON(toTicketResponse(ticket))
	case <-timer.C:
		return ctx.Status(http.StatusAccepted).JSON(toTicketResponse(ticket))
	}
}

func (h *HandlerSet) ticket(ctx *fiber.Ctx) error {
	device, err := deviceParam(ctx)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid ticket id")
	}

	t, ok := h.registry.Ticket(device, id)
	if !ok {
		return translateError(apperrors.ErrNotFound)
	}
	return ctx.Status(http.StatusOK).JSON(toTicketResponse(t))
}

func (h *HandlerSet) permissionResult(ctx *fiber.Ctx) error {
	device, err := deviceParam(ctx)
	if err != nil {
		return err
	}

	var req permissionResultRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	ack := h.registry.HandlePermissionResult(ctx.UserContext(), device, req.RequestCode, req.Granted)
	return ctx.Status(http.StatusOK).JSON(ack)
}

func toTicketResponse(t *dialer.Ticket) ticketResponse {
	resp := ticketResponse{TicketID: t.ID, Method: t.Method, CreatedAt: t.CreatedAt}
	out, ok := t.Outcome()
	if !ok {
		resp.Pending = true
		return resp
	}
	reply, _ := bridge.ReplyFor(t)
	resolvedAt := out.ResolvedAt
	resp.Outcome = out.Status()
	resp.Reply = &reply
	resp.ResolvedAt = &resolvedAt
	return resp
}
