package shipenginehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
)

const defaultBaseURL = "https://api.shipengine.com"

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type trackingResp struct {
	CarrierCode       string `json:"carrier_code"`
	StatusDescription string `json:"status_description"`
	EstimatedDelivery string `json:"estimated_delivery_date"`
	Events            []struct {
		CityLocality string `json:"city_locality"`
	} `json:"events"`
}

func (c *Client) GetTrackingInfo(ctx context.Context, trackingNumber string) (carrier.Snapshot, error) {
	if c.apiKey == "" {
		return carrier.Snapshot{}, errors.New("shipengine api key is not configured")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return carrier.Snapshot{}, errors.Wrap(err, "parse base url")
	}
	u.Path += "/v1/tracking"
	q := u.Query()
	q.Set("tracking_number", trackingNumber)
	if code := DetectCarrier(trackingNumber); code != "" {
		q.Set("carrier_code", code)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return carrier.Snapshot{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return carrier.Snapshot{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return carrier.Snapshot{}, fmt.Errorf("shipengine http %d", resp.StatusCode)
	}

	var r trackingResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return carrier.Snapshot{}, errors.Wrap(err, "decode")
	}

	snap := carrier.Snapshot{
		Carrier:           r.CarrierCode,
		Status:            r.StatusDescription,
		EstimatedDelivery: r.EstimatedDelivery,
	}
	// ShipEngine reports events newest-first; the oldest one is the
	// origin scan and the newest the most recent known location.
	if n := len(r.Events); n > 0 {
		snap.Destination = r.Events[0].CityLocality
		snap.Origin = r.Events[n-1].CityLocality
	}
	return snap, nil
}
