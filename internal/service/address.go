package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/config"
	"github.com/shoplocal/onboarding-api/internal/models"
)

var postalCodeRegexp = regexp.MustCompile(`^\d{6}$`)

const geocodeTokenKey = "geocode:bearer"

// AddressResolver converts a postal code into a street address and
// coordinates. Resolution chains a bearer-token exchange with the geocoding
// authority, a postal-code address search, and a coordinate lookup against a
// separate geocoding service. The coordinate stage is non-fatal: registration
// can proceed with address only.
type AddressResolver struct {
	settings   *config.Settings
	logger     *zerolog.Logger
	httpClient *http.Client
	tokens     *cache.Cache

	// Debounce bookkeeping: one monotonically increasing request token per
	// session. Only the latest token may apply its result.
	mu     sync.Mutex
	latest map[string]uint64
}

func NewAddressResolver(settings *config.Settings, logger *zerolog.Logger) *AddressResolver {
	return &AddressResolver{
		settings: settings,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: cache.New(5*time.Minute, 10*time.Minute),
		latest: map[string]uint64{},
	}
}

// Resolve looks up the address and coordinates for a 6-digit postal code.
// Malformed codes fail locally with ErrInvalidPostalCode before any network
// call. Repeated calls with the same code yield the same result as long as
// the external services are stable.
func (r *AddressResolver) Resolve(ctx context.Context, postalCode string) (*models.ResolvedAddress, error) {
	if !postalCodeRegexp.MatchString(postalCode) {
		return nil, ErrInvalidPostalCode
	}

	token, err := r.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	address, err := r.searchAddress(ctx, token, postalCode)
	if err != nil {
		return nil, err
	}

	resolved := &models.ResolvedAddress{Address: address}

	lat, lng, err := r.geocode(ctx, address)
	if err != nil {
		// Coordinates are best effort; the draft keeps the address.
		geocodeFailureCount.Inc()
		r.logger.Warn().Err(err).Str("address", address).Msg("coordinate geocoding failed, keeping address without coordinates")
		return resolved, nil
	}

	resolved.Latitude = &lat
	resolved.Longitude = &lng
	return resolved, nil
}

// ResolveLatest schedules a debounced resolution for the given session. Only
// the resolution triggered by the most recent call may mutate the draft:
// superseded lookups are allowed to complete, their results are discarded.
// apply runs with the outcome once the debounce window has passed and the
// request is still the latest.
func (r *AddressResolver) ResolveLatest(sessionID, postalCode string, apply func(*models.ResolvedAddress, error)) {
	r.mu.Lock()
	r.latest[sessionID]++
	requestToken := r.latest[sessionID]
	r.mu.Unlock()

	go func() {
		time.Sleep(r.debounce())
		if !r.isLatest(sessionID, requestToken) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resolved, err := r.Resolve(ctx, postalCode)

		// Re-check after the network round trip: a newer keystroke wins
		// regardless of completion order.
		if !r.isLatest(sessionID, requestToken) {
			return
		}
		apply(resolved, err)
	}()
}

// Forget drops the debounce bookkeeping for a finished session.
func (r *AddressResolver) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.latest, sessionID)
	r.mu.Unlock()
}

func (r *AddressResolver) isLatest(sessionID string, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[sessionID] == token
}

func (r *AddressResolver) debounce() time.Duration {
	if r.settings.AddressDebounce > 0 {
		return r.settings.AddressDebounce
	}
	return 500 * time.Millisecond
}

type geocodeTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type geocodeTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// bearerToken exchanges the configured credentials for a short-lived bearer
// token, cached until shortly before expiry.
func (r *AddressResolver) bearerToken(ctx context.Context) (string, error) {
	if cached, ok := r.tokens.Get(geocodeTokenKey); ok {
		return cached.(string), nil
	}

	body, err := json.Marshal(geocodeTokenRequest{
		Email:    r.settings.GeocodeAPIEmail,
		Password: r.settings.GeocodeAPIPassword,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal token request")
	}

	endpoint := r.settings.GeocodeAPIURL + "/v1/auth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrGeocodeAuth, err.Error())
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGeocodeAuth, resp.StatusCode)
	}

	var payload geocodeTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %s", ErrGeocodeAuth, err.Error())
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrGeocodeAuth)
	}

	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	r.tokens.Set(geocodeTokenKey, payload.AccessToken, ttl)

	return payload.AccessToken, nil
}

type addressSearchResponse struct {
	Found   int `json:"found"`
	Results []struct {
		Address string `json:"address"`
	} `json:"results"`
}

func (r *AddressResolver) searchAddress(ctx context.Context, token, postalCode string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/search?searchVal=%s", r.settings.GeocodeAPIURL, url.QueryEscape(postalCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create address search request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "address search failed")
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("address search returned status %d", resp.StatusCode)
	}

	var payload addressSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, "failed to decode address search response")
	}

	if payload.Found == 0 || len(payload.Results) == 0 {
		return "", ErrAddressNotFound
	}

	return payload.Results[0].Address, nil
}

type geocodeResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r *AddressResolver) geocode(ctx context.Context, address string) (float64, float64, error) {
	endpoint := fmt.Sprintf("%s/v1/geocode?address=%s", r.settings.CoordsAPIURL, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to create geocode request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, 0, errors.Wrap(err, "geocode request failed")
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode != http.StatusOK {
		return 0, 0, errors.Errorf("geocode returned status %d", resp.StatusCode)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, 0, errors.Wrap(err, "failed to decode geocode response")
	}

	return payload.Latitude, payload.Longitude, nil
}
