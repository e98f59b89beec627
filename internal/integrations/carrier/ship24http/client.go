package ship24http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
)

const defaultBaseURL = "https://api.ship24.com/public/v1"

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

type searchResp struct {
	Data struct {
		Trackings []struct {
			Shipment *struct {
				StatusMilestone        string `json:"statusMilestone"`
				OriginCountryCode      string `json:"originCountryCode"`
				DestinationCountryCode string `json:"destinationCountryCode"`
				Delivery               *struct {
					EstimatedDeliveryDate string `json:"estimatedDeliveryDate"`
				} `json:"delivery"`
			} `json:"shipment"`
			Events []struct {
				CourierCode string `json:"courierCode"`
				Status      string `json:"status"`
			} `json:"events"`
		} `json:"trackings"`
	} `json:"data"`
}

// GetTrackingInfo looks the number up among already-registered trackers
// and, if Ship24 has never seen it, registers a tracker on the fly.
func (c *Client) GetTrackingInfo(ctx context.Context, trackingNumber string) (carrier.Snapshot, error) {
	if c.apiKey == "" {
		return carrier.Snapshot{}, errors.New("ship24 api key is not configured")
	}

	r, err := c.search(ctx, trackingNumber)
	if err != nil {
		return carrier.Snapshot{}, err
	}
	if len(r.Data.Trackings) == 0 {
		if r, err = c.register(ctx, trackingNumber); err != nil {
			return carrier.Snapshot{}, err
		}
	}
	if len(r.Data.Trackings) == 0 {
		return carrier.Snapshot{}, errors.New("ship24: tracking not found")
	}
	tr := r.Data.Trackings[0]

	var snap carrier.Snapshot
	if tr.Shipment != nil {
		snap.Status = tr.Shipment.StatusMilestone
		snap.Origin = tr.Shipment.OriginCountryCode
		snap.Destination = tr.Shipment.DestinationCountryCode
		if tr.Shipment.Delivery != nil {
			snap.EstimatedDelivery = tr.Shipment.Delivery.EstimatedDeliveryDate
		}
	}
	if len(tr.Events) > 0 {
		snap.Carrier = tr.Events[0].CourierCode
	}
	return snap, nil
}

func (c *Client) search(ctx context.Context, trackingNumber string) (*searchResp, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path += "/trackers/search"
	q := u.Query()
	q.Set("trackingNumbers", trackingNumber)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	return c.do(req)
}

func (c *Client) register(ctx context.Context, trackingNumber string) (*searchResp, error) {
	body, err := json.Marshal(map[string]string{"trackingNumber": trackingNumber})
	if err != nil {
		return nil, errors.Wrap(err, "marshal body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trackers/track", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*searchResp, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ship24 http %d", resp.StatusCode)
	}

	var r searchResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return &r, nil
}
