package ship24http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_GetTrackingInfo_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/trackers/search", r.URL.Path)
		require.Equal(t, "1Z999AA10123456784", r.URL.Query().Get("trackingNumbers"))
		require.Equal(t, "Bearer demo", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "data": {
    "trackings": [
      {
        "shipment": {
          "statusMilestone": "in_transit",
          "originCountryCode": "CN",
          "destinationCountryCode": "DE",
          "delivery": {"estimatedDeliveryDate": "2026-03-05T10:30:00Z"}
        },
        "events": [{"courierCode": "ups", "status": "Departed facility"}]
      }
    ]
  }
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo")
	snap, err := c.GetTrackingInfo(context.Background(), "1Z999AA10123456784")
	require.NoError(t, err)
	require.Equal(t, "in_transit", snap.Status)
	require.Equal(t, "ups", snap.Carrier)
	require.Equal(t, "CN", snap.Origin)
	require.Equal(t, "DE", snap.Destination)
	require.Equal(t, "2026-03-05T10:30:00Z", snap.EstimatedDelivery)
}

func TestClient_GetTrackingInfo_AbsentSubObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"trackings":[{"shipment":null,"events":[]}]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo")
	snap, err := c.GetTrackingInfo(context.Background(), "X")
	require.NoError(t, err)
	require.Empty(t, snap.Status)
	require.Empty(t, snap.Carrier)
	require.Empty(t, snap.EstimatedDelivery)
}

func TestClient_GetTrackingInfo_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.GetTrackingInfo(context.Background(), "X")
	require.Error(t, err)
}

func TestClient_GetTrackingInfo_RegistersUnknownTracker(t *testing.T) {
	var registered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trackers/search":
			_, _ = w.Write([]byte(`{"data":{"trackings":[]}}`))
		case "/trackers/track":
			require.Equal(t, http.MethodPost, r.Method)
			registered = true
			_, _ = w.Write([]byte(`{"data":{"trackings":[{"shipment":{"statusMilestone":"pending"},"events":[]}]}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "demo")
	snap, err := c.GetTrackingInfo(context.Background(), "X")
	require.NoError(t, err)
	require.True(t, registered)
	require.Equal(t, "pending", snap.Status)
}

func TestClient_GetTrackingInfo_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"trackings":[]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.GetTrackingInfo(context.Background(), "X")
	require.Error(t, err)
}

func TestClient_GetTrackingInfo_MissingKey(t *testing.T) {
	c := New("http://localhost:0", "")
	_, err := c.GetTrackingInfo(context.Background(), "X")
	require.Error(t, err)
}
