// Package geocode resolves coordinates to postal addresses through a Nominatim-compatible
// reverse geocoding service.
//
// Reverse never returns an error: lookup failures and empty results both collapse to
// an all-empty domain.Address. Callers must read empty fields as "unknown".
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/splax/onboard/internal/domain"
)

// DefaultTimeout bounds a single upstream lookup.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNoResult means the service answered but had no address for the point.
	ErrNoResult = errors.New("geocode: no result")
	// ErrOutOfRange is returned by ValidateCoordinates.
	ErrOutOfRange = errors.New("geocode: coordinates out of range")
)

// Client performs reverse lookups.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// New constructs a Client. userAgent must identify the application and a contact,
// as required by the Nominatim usage policy.
func New(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UserAgent formats the identifying header value.
func UserAgent(appName, contact string) string {
	name := strings.ReplaceAll(strings.TrimSpace(appName), " ", "")
	if name == "" {
		name = "onboard"
	}
	return fmt.Sprintf("%s/1.0 (%s)", name, strings.TrimSpace(contact))
}

// ValidateCoordinates checks geographic bounds.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrOutOfRange
	}
	return nil
}

// Reverse returns the address at lat/lon, or an empty Address on any failure.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) domain.Address {
	addr, err := c.lookup(ctx, lat, lon)
	if err != nil {
		if errors.Is(err, ErrNoResult) {
			c.logger.Debug("reverse geocode found nothing", "lat", lat, "lon", lon)
		} else {
			c.logger.Warn("reverse geocode failed", "lat", lat, "lon", lon, "error", err)
		}
		return domain.Address{}
	}
	return addr
}

type nominatimResponse struct {
	Error   string            `json:"error"`
	Address map[string]string `json:"address"`
}

func (c *Client) lookup(ctx context.Context, lat, lon float64) (domain.Address, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Address{}, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Address{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Address{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Error != "" || len(payload.Address) == 0 {
		return domain.Address{}, ErrNoResult
	}
	return flatten(payload.Address), nil
}

func flatten(a map[string]string) domain.Address {
	street := joinNonEmpty(a, "house_number", "road", "building", "commercial", "tourism", "leisure")
	if street == "" {
		street = firstNonEmpty(a, "neighbourhood", "suburb")
	}
	return domain.Address{
		Address:    street,
		City:       firstNonEmpty(a, "city", "town", "village", "hamlet", "municipality", "county"),
		State:      firstNonEmpty(a, "state", "region", "province", "state_district"),
		Country:    strings.TrimSpace(a["country"]),
		PostalCode: strings.TrimSpace(a["postcode"]),
	}
}

func joinNonEmpty(a map[string]string, keys ...string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(a[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(a map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(a[k]); v != "" {
			return v
		}
	}
	return ""
}
