package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/config"
	"github.com/shoplocal/onboarding-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *AddressResolver {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	settings := &config.Settings{
		GeocodeAPIURL:      "https://geocode.test",
		GeocodeAPIEmail:    "svc@shoplocal.sg",
		GeocodeAPIPassword: "secret",
		CoordsAPIURL:       "https://coords.test",
		AddressDebounce:    10 * time.Millisecond,
	}
	resolver := NewAddressResolver(settings, &logger)
	httpmock.ActivateNonDefault(resolver.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return resolver
}

func registerTokenResponder() {
	httpmock.RegisterResponder("POST", "https://geocode.test/v1/auth/token",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"access_token": "token-abc",
			"expires_in":   3600,
		}))
}

func registerSearchResponder(address string) {
	httpmock.RegisterResponder("GET", "https://geocode.test/v1/search",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"found": 1,
			"results": []map[string]string{
				{"address": address},
			},
		}))
}

func TestResolveRejectsMalformedPostalCodeWithoutNetworkCalls(t *testing.T) {
	resolver := newTestResolver(t)

	for _, code := range []string{"", "1234", "12345a", "1234567"} {
		_, err := resolver.Resolve(context.Background(), code)
		assert.ErrorIs(t, err, ErrInvalidPostalCode, code)
	}

	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestResolveFullChain(t *testing.T) {
	resolver := newTestResolver(t)
	registerTokenResponder()
	registerSearchResponder("252 North Bridge Rd")
	httpmock.RegisterResponder("GET", "https://coords.test/v1/geocode",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"latitude":  1.2936,
			"longitude": 103.8521,
		}))

	resolved, err := resolver.Resolve(context.Background(), "238823")

	require.NoError(t, err)
	assert.Equal(t, "252 North Bridge Rd", resolved.Address)
	require.NotNil(t, resolved.Latitude)
	require.NotNil(t, resolved.Longitude)
	assert.InDelta(t, 1.2936, *resolved.Latitude, 1e-9)
	assert.InDelta(t, 103.8521, *resolved.Longitude, 1e-9)
}

func TestResolveIsRepeatable(t *testing.T) {
	resolver := newTestResolver(t)
	registerTokenResponder()
	registerSearchResponder("252 North Bridge Rd")
	httpmock.RegisterResponder("GET", "https://coords.test/v1/geocode",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"latitude":  1.2936,
			"longitude": 103.8521,
		}))

	first, err := resolver.Resolve(context.Background(), "238823")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "238823")
	require.NoError(t, err)

	assert.Equal(t, first.Address, second.Address)

	// Second resolution reuses the cached bearer token.
	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST https://geocode.test/v1/auth/token"])
}

func TestResolveNoAddressFound(t *testing.T) {
	resolver := newTestResolver(t)
	registerTokenResponder()
	httpmock.RegisterResponder("GET", "https://geocode.test/v1/search",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"found":   0,
			"results": []map[string]string{},
		}))

	_, err := resolver.Resolve(context.Background(), "000000")

	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestResolveGeocodeFailureKeepsAddress(t *testing.T) {
	resolver := newTestResolver(t)
	registerTokenResponder()
	registerSearchResponder("252 North Bridge Rd")
	httpmock.RegisterResponder("GET", "https://coords.test/v1/geocode",
		httpmock.NewStringResponder(500, "boom"))

	resolved, err := resolver.Resolve(context.Background(), "238823")

	require.NoError(t, err)
	assert.Equal(t, "252 North Bridge Rd", resolved.Address)
	assert.Nil(t, resolved.Latitude)
	assert.Nil(t, resolved.Longitude)
}

func TestResolveAuthFailure(t *testing.T) {
	resolver := newTestResolver(t)
	httpmock.RegisterResponder("POST", "https://geocode.test/v1/auth/token",
		httpmock.NewStringResponder(401, "bad credentials"))

	_, err := resolver.Resolve(context.Background(), "238823")

	assert.ErrorIs(t, err, ErrGeocodeAuth)
}

func TestResolveLatestOnlyLastWriterApplies(t *testing.T) {
	resolver := newTestResolver(t)
	registerTokenResponder()
	registerSearchResponder("252 North Bridge Rd")
	httpmock.RegisterResponder("GET", "https://coords.test/v1/geocode",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"latitude":  1.2936,
			"longitude": 103.8521,
		}))

	var mu sync.Mutex
	var applied []string

	apply := func(resolved *models.ResolvedAddress, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			applied = append(applied, "error")
			return
		}
		applied = append(applied, resolved.Address)
	}

	// Rapid keystrokes; only the final postal code may reach the draft.
	resolver.ResolveLatest("sess-1", "2", apply)
	resolver.ResolveLatest("sess-1", "23", apply)
	resolver.ResolveLatest("sess-1", "238823", apply)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"252 North Bridge Rd"}, applied)
}

func TestResolveLatestSupersededAfterForget(t *testing.T) {
	resolver := newTestResolver(t)

	var mu sync.Mutex
	called := false
	resolver.ResolveLatest("sess-2", "238823", func(_ *models.ResolvedAddress, _ error) {
		mu.Lock()
		called = true
		mu.Unlock()
	})
	resolver.Forget("sess-2")

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, called)
}
