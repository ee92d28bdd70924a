package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/service/common"
)

const (
	defaultOutcomeLimit = 50
	maxOutcomeLimit     = 500
)

type outcomeResponse struct {
	TicketID    uuid.UUID            `json:"ticket_id"`
	Method      string               `json:"method"`
	PhoneNumber string               `json:"phone_number,omitempty"`
	Status      domain.OutcomeStatus `json:"status"`
	Value       bool                 `json:"value"`
	Error       string               `json:"error,omitempty"`
	RequestedAt time.Time            `json:"requested_at"`
	ResolvedAt  time.Time            `json:"resolved_at"`
}

type outcomePage struct {
	Items         []outcomeResponse `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

func (h *HandlerSet) listOutcomes(ctx *fiber.Ctx) error {
	device, err := deviceParam(ctx)
	if err != nil {
		return err
	}

	limit := ctx.QueryInt("limit", defaultOutcomeLimit)
	if limit <= 0 || limit > maxOutcomeLimit {
		return fiber.NewError(http.StatusBadRequest, "limit must be between 1 and 500")
	}
	state, err := common.DecodePagingState(ctx.Query("page_token"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid page token")
	}

	items, next, err := h.outcomes.List(ctx.UserContext(), device, limit, state)
	if err != nil {
		return translateError(err)
	}

	page := outcomePage{Items: make([]outcomeResponse, 0, len(items)), NextPageToken: common.EncodePagingState(next)}
	for _, o := range items {
		page.Items = append(page.Items, outcomeResponse{
			TicketID:    o.TicketID,
			Method:      o.Method,
			PhoneNumber: o.PhoneNumber,
			Status:      o.Status,
			Value:       o.Value,
			Error:       o.Error,
			RequestedAt: o.RequestedAt,
			ResolvedAt:  o.ResolvedAt,
		})
	}
	return ctx.Status(http.StatusOK).JSON(page)
}
