package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeClient_GetTrackingInfo(t *testing.T) {
	c := New()
	snap, err := c.GetTrackingInfo(context.Background(), "A1")
	require.NoError(t, err)
	require.NotEmpty(t, snap.Status)

	// deterministic per tracking number
	again, err := c.GetTrackingInfo(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, snap.Status, again.Status)
}
