// Package geocode resolves GPS fixes into display addresses.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trustline/internal/geo"
	dErrors "trustline/pkg/domain-errors"
)

const (
	// DefaultBaseURL is the public OpenStreetMap Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the service to Nominatim, which rejects
	// anonymous clients.
	DefaultUserAgent = "KYC-Verification-App"
	defaultTimeout   = 5 * time.Second
)

type nominatimAddress struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
}

type nominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

// Nominatim is a reverse geocoder backed by the Nominatim /reverse API.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NominatimOption configures a Nominatim client.
type NominatimOption func(*Nominatim)

func WithBaseURL(u string) NominatimOption {
	return func(n *Nominatim) { n.baseURL = strings.TrimRight(u, "/") }
}

func WithUserAgent(ua string) NominatimOption {
	return func(n *Nominatim) { n.userAgent = ua }
}

func WithHTTPClient(c *http.Client) NominatimOption {
	return func(n *Nominatim) { n.client = c }
}

func NewNominatim(opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Reverse returns a comma-joined street address for c. Missing components
// are skipped; when none are present the provider's display name is used.
func (n *Nominatim) Reverse(ctx context.Context, c geo.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to build geocoding request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "geocoding request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("geocoding returned status %d", resp.StatusCode))
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to decode geocoding response")
	}
	if body.Error != "" {
		return "", dErrors.New(dErrors.CodeNotFound, "geocoding: "+body.Error)
	}
	if display := body.Address.format(); display != "" {
		return display, nil
	}
	if body.DisplayName != "" {
		return body.DisplayName, nil
	}
	return "", dErrors.New(dErrors.CodeNotFound, "geocoding returned no address")
}

func (a nominatimAddress) format() string {
	parts := []string{
		a.HouseNumber,
		a.Road,
		firstNonEmpty(a.Suburb, a.Neighbourhood),
		firstNonEmpty(a.City, a.Town, a.Village),
		a.State,
		a.Postcode,
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
