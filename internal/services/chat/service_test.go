package chat

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/parceldesk/parceldesk/internal/models"
)

type listerFake struct {
	items []*models.Shipment
	err   error
}

func (l *listerFake) List(ctx context.Context, userID uint64) ([]*models.Shipment, error) {
	return l.items, l.err
}

type assistantFake struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
}

func (a *assistantFake) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	a.lastSystem = systemPrompt
	a.lastUser = userMessage
	return a.answer, a.err
}

func strPtr(s string) *string { return &s }

func TestReplyIncludesShipmentContext(t *testing.T) {
	lister := &listerFake{items: []*models.Shipment{
		{TrackingNumber: "1Z999", Status: models.ShipmentStatusInTransit, Description: strPtr("headphones")},
		{TrackingNumber: "9400X", Status: models.ShipmentStatusDelivered},
	}}
	af := &assistantFake{answer: "Your headphones are in transit."}

	svc := New(af, lister)
	got, err := svc.Reply(context.Background(), 7, "where are my headphones?")
	require.NoError(t, err)
	require.Equal(t, "Your headphones are in transit.", got)

	require.Contains(t, af.lastSystem, "- 1Z999 (in_transit): headphones")
	require.Contains(t, af.lastSystem, "- 9400X (delivered)")
	require.Equal(t, "where are my headphones?", af.lastUser)
}

func TestReplyProviderFailureFallsBack(t *testing.T) {
	af := &assistantFake{err: errors.New("rate limited")}
	svc := New(af, &listerFake{})

	got, err := svc.Reply(context.Background(), 7, "hi")
	require.NoError(t, err)
	require.Equal(t, fallbackReply, got)
}

func TestReplyEmptyAccount(t *testing.T) {
	af := &assistantFake{answer: "You have no shipments yet."}
	svc := New(af, &listerFake{})

	_, err := svc.Reply(context.Background(), 7, "anything for me?")
	require.NoError(t, err)
	require.Contains(t, af.lastSystem, "(none on file)")
}

func TestReplyListerFailureStillAnswers(t *testing.T) {
	af := &assistantFake{answer: "ok"}
	svc := New(af, &listerFake{err: errors.New("db down")})

	got, err := svc.Reply(context.Background(), 7, "hi")
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Contains(t, af.lastSystem, "(none on file)")
}
