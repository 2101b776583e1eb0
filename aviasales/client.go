// Package aviasales resolves route prices through the
// Travelpayouts "latest prices" API, with a deterministic fallback
// when the API cannot produce a fare.
package aviasales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const APIURL = "https://api.travelpayouts.com/v2/prices/latest"

// ErrNoFares is returned when the API answers but carries no usable
// priced entries for the route.
var ErrNoFares = errors.New("no fares returned")

type Client struct {
	HTTPClient *http.Client

	baseURL  string
	token    string
	currency string
	limit    int
}

func NewClient(token, currency string, limit int, timeout time.Duration) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		baseURL:    APIURL,
		token:      token,
		currency:   currency,
		limit:      limit,
	}
}

type latestResponse struct {
	Success bool    `json:"success"`
	Data    []entry `json:"data"`
	Error   string  `json:"error"`
}

type entry struct {
	// Value is the fare; some entries come back without one.
	Value      *float64 `json:"value"`
	Airline    string   `json:"airline"`
	DepartDate string   `json:"depart_date"`
	Transfers  int      `json:"number_of_changes"`
}

// MinFare queries the latest-prices endpoint for the given IATA pair
// and returns the cheapest fare among entries that carry a price.
func (c *Client) MinFare(ctx context.Context, originIATA, destIATA string) (float64, error) {
	q := url.Values{}
	q.Set("currency", c.currency)
	q.Set("origin", originIATA)
	q.Set("destination", destIATA)
	q.Set("token", c.token)
	q.Set("limit", fmt.Sprintf("%d", c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request error: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read body error: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("api http status %d", resp.StatusCode)
	}

	var latest latestResponse
	if err := json.Unmarshal(bodyBytes, &latest); err != nil {
		return 0, fmt.Errorf("unmarshal response error: %w", err)
	}

	if !latest.Success {
		return 0, fmt.Errorf("api error: %s: %w", latest.Error, ErrNoFares)
	}

	lowest, found := 0.0, false
	for _, e := range latest.Data {
		if e.Value == nil {
			continue
		}
		if !found || *e.Value < lowest {
			lowest = *e.Value
			found = true
		}
	}
	if !found {
		return 0, ErrNoFares
	}
	return lowest, nil
}
