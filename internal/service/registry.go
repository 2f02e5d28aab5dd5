package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/config"
	"github.com/shoplocal/onboarding-api/internal/models"
)

// RegistryAPIService talks to the platform backend: uniqueness checks before
// advancing, upload tickets for images, and the registration endpoint itself.
type RegistryAPIService interface {
	CheckEmailAvailable(ctx context.Context, email string) (bool, error)
	CheckUENAvailable(ctx context.Context, uen string) (bool, error)
	CheckBusinessEmailAvailable(ctx context.Context, email string) (bool, error)
	RequestUploadTicket(ctx context.Context, filename string) (*models.UploadTicket, error)
	RegisterBusiness(ctx context.Context, draft *models.BusinessDraft, ownerID string) error
}

type registryAPIService struct {
	settings   *config.Settings
	logger     *zerolog.Logger
	httpClient *http.Client
}

func NewRegistryAPIService(settings *config.Settings, logger *zerolog.Logger) RegistryAPIService {
	return &registryAPIService{
		settings: settings,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

func (r *registryAPIService) CheckEmailAvailable(ctx context.Context, email string) (bool, error) {
	return r.checkAvailability(ctx, "/v1/users/email-available", "email", email)
}

func (r *registryAPIService) CheckUENAvailable(ctx context.Context, uen string) (bool, error) {
	return r.checkAvailability(ctx, "/v1/businesses/uen-available", "uen", uen)
}

func (r *registryAPIService) CheckBusinessEmailAvailable(ctx context.Context, email string) (bool, error) {
	return r.checkAvailability(ctx, "/v1/businesses/email-available", "email", email)
}

func (r *registryAPIService) checkAvailability(ctx context.Context, path, param, value string) (bool, error) {
	endpoint := fmt.Sprintf("%s%s?%s=%s", r.settings.PlatformAPIURL, path, param, url.QueryEscape(value))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to create availability request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "availability check %s failed", path)
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, errors.Errorf("availability check %s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	var payload availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, errors.Wrap(err, "failed to decode availability response")
	}

	return payload.Available, nil
}

type uploadTicketResponse struct {
	UploadTarget      string `json:"uploadTarget"`
	ResolvedURLPrefix string `json:"resolvedUrlPrefix"`
}

// RequestUploadTicket asks the backend for a pre-signed upload grant keyed by
// the file's declared name.
func (r *registryAPIService) RequestUploadTicket(ctx context.Context, filename string) (*models.UploadTicket, error) {
	endpoint := fmt.Sprintf("%s/v1/media/upload-url?filename=%s", r.settings.PlatformAPIURL, url.QueryEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create upload ticket request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTicketRequest, err.Error())
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrTicketRequest, resp.StatusCode)
	}

	var payload uploadTicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTicketRequest, err.Error())
	}

	return &models.UploadTicket{
		UploadTarget: payload.UploadTarget,
		ResolvedURL:  payload.ResolvedURLPrefix,
	}, nil
}

// businessRegistration is the wire shape of the registration endpoint. The
// pending image file is never sent; the resolved storage URL substitutes it.
type businessRegistration struct {
	OwnerID         string              `json:"ownerId"`
	UEN             string              `json:"uen"`
	BusinessName    string              `json:"businessName"`
	Category        string              `json:"category"`
	Description     string              `json:"description"`
	Address         string              `json:"address"`
	PostalCode      string              `json:"postalCode"`
	Latitude        *float64            `json:"latitude,omitempty"`
	Longitude       *float64            `json:"longitude,omitempty"`
	PhoneNumber     string              `json:"phoneNumber"`
	BusinessEmail   string              `json:"businessEmail"`
	WebsiteLink     string              `json:"websiteLink,omitempty"`
	SocialMediaLink string              `json:"socialMediaLink,omitempty"`
	ImageURL        string              `json:"imageUrl"`
	PriceTier       models.PriceTier    `json:"priceTier"`
	Open24Hours     bool                `json:"open24Hours"`
	OpeningHours    models.OpeningHours `json:"openingHours"`
	OffersDelivery  bool                `json:"offersDelivery"`
	OffersPickup    bool                `json:"offersPickup"`
	PaymentOptions  []string            `json:"paymentOptions"`
}

type registrationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RegisterBusiness posts one draft to the registration endpoint with the new
// account as owner. Errors name the business so callers can report per-draft.
func (r *registryAPIService) RegisterBusiness(ctx context.Context, draft *models.BusinessDraft, ownerID string) error {
	payload := businessRegistration{
		OwnerID:         ownerID,
		UEN:             draft.UEN,
		BusinessName:    draft.BusinessName,
		Category:        draft.Category,
		Description:     draft.Description,
		Address:         draft.Address,
		PostalCode:      draft.PostalCode,
		Latitude:        draft.Latitude,
		Longitude:       draft.Longitude,
		PhoneNumber:     draft.PhoneNumber,
		BusinessEmail:   draft.BusinessEmail,
		WebsiteLink:     draft.WebsiteLink,
		SocialMediaLink: draft.SocialMediaLink,
		ImageURL:        draft.ImageURL,
		PriceTier:       draft.PriceTier,
		Open24Hours:     draft.Open24Hours,
		OpeningHours:    draft.EffectiveOpeningHours(),
		OffersDelivery:  draft.OffersDelivery,
		OffersPickup:    draft.OffersPickup,
		PaymentOptions:  draft.PaymentOptions,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal registration for %q", draft.BusinessName)
	}

	endpoint := r.settings.PlatformAPIURL + "/v1/businesses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create registration request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w %q: %s", ErrRegistration, draft.BusinessName, err.Error())
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w %q: status %d: %s", ErrRegistration, draft.BusinessName, resp.StatusCode, string(respBody))
	}

	var result registrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w %q: %s", ErrRegistration, draft.BusinessName, err.Error())
	}
	if !result.Success {
		return fmt.Errorf("%w %q: %s", ErrRegistration, draft.BusinessName, result.Message)
	}

	r.logger.Debug().Str("businessName", draft.BusinessName).Str("ownerId", ownerID).Msg("business registered")
	return nil
}
