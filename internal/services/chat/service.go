package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parceldesk/parceldesk/internal/integrations/assistant"
	"github.com/parceldesk/parceldesk/internal/models"
)

const systemPrompt = `You are a helpful logistics assistant for a package tracking service.
Answer questions about the user's shipments using the shipment list provided below.
Be concise and friendly. If the question is unrelated to shipping or the listed
shipments, politely steer the conversation back to logistics.`

const fallbackReply = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

type ShipmentLister interface {
	List(ctx context.Context, userID uint64) ([]*models.Shipment, error)
}

// Service answers free-form questions about a user's shipments by
// handing the model the account's current shipment list as context.
type Service struct {
	assistant assistant.Client
	shipments ShipmentLister
}

func New(client assistant.Client, shipments ShipmentLister) *Service {
	return &Service{assistant: client, shipments: shipments}
}

// Reply never fails the request on a provider error: the user gets an
// apologetic canned answer instead.
func (s *Service) Reply(ctx context.Context, userID uint64, message string) (string, error) {
	items, err := s.shipments.List(ctx, userID)
	if err != nil {
		slog.Error("list shipments for chat", "user_id", userID, "error", err.Error())
		items = nil
	}

	answer, err := s.assistant.Complete(ctx, buildSystemPrompt(items), message)
	if err != nil {
		slog.Warn("assistant unavailable", "user_id", userID, "error", err.Error())
		return fallbackReply, nil
	}
	return answer, nil
}

func buildSystemPrompt(items []*models.Shipment) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nUser's shipments:\n")
	if len(items) == 0 {
		b.WriteString("(none on file)\n")
		return b.String()
	}
	for _, sh := range items {
		fmt.Fprintf(&b, "- %s (%s)", sh.TrackingNumber, sh.Status)
		if sh.Description != nil && *sh.Description != "" {
			fmt.Fprintf(&b, ": %s", *sh.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
