package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client reverse-geocodes coordinates against a Nominatim-compatible
// endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient builds a reverse-geocoding client. timeout bounds every lookup;
// Nominatim's usage policy requires a meaningful User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org/reverse"
	}
	if userAgent == "" {
		userAgent = "trafficwatch/1.0"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
	}
}

type reverseResponse struct {
	Address struct {
		Road          string `json:"road"`
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		Village       string `json:"village"`
		Town          string `json:"town"`
		City          string `json:"city"`
	} `json:"address"`
	DisplayName string `json:"display_name"`
}

// Reverse returns a "<road>, <suburb/town>" style string for the point, or
// an error when the service is unreachable, slow, or returned nothing
// usable.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))
	q.Set("zoom", "17")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	road := rr.Address.Road
	locality := firstNonEmpty(rr.Address.Suburb, rr.Address.Town, rr.Address.Village, rr.Address.Neighbourhood, rr.Address.City)
	switch {
	case road != "" && locality != "":
		return road + ", " + locality, nil
	case road != "":
		return road, nil
	case locality != "":
		return locality, nil
	}
	if name := strings.TrimSpace(rr.DisplayName); name != "" {
		// display_name is verbose; keep the leading two components
		parts := strings.SplitN(name, ",", 3)
		if len(parts) >= 2 {
			return strings.TrimSpace(parts[0]) + "," + parts[1], nil
		}
		return name, nil
	}
	return "", fmt.Errorf("reverse geocode: empty address")
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
