// Package geocode resolves coordinates to display addresses through the
// Nominatim reverse endpoint. Lookups are best effort: any failure or
// timeout yields a placeholder string, never an error the pipeline has to
// handle.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"uav-fleet-server/internal/domain"
)

const defaultUserAgent = "uav-fleet-server/1.0"

type Client struct {
	baseURL    string
	language   string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL, language string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		language:   language,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// ResolveAddress returns a human-readable address for the coordinates, or
// domain.AddressUnavailable when the lookup fails for any reason.
func (c *Client) ResolveAddress(ctx context.Context, lat, lng float64) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))
	q.Set("accept-language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		log.Printf("[Geocode] failed to build request: %v", err)
		return domain.AddressUnavailable
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Geocode] reverse lookup failed: %v", err)
		return domain.AddressUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Geocode] reverse lookup status %d", resp.StatusCode)
		return domain.AddressUnavailable
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Printf("[Geocode] failed to decode response: %v", err)
		return domain.AddressUnavailable
	}

	if body.DisplayName == "" {
		return domain.AddressUnavailable
	}

	return body.DisplayName
}
