package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/config"
	"github.com/shoplocal/onboarding-api/internal/models"
)

// AccountAPIService is the external auth collaborator that issues account
// identity. One sign-up call per session; its failure aborts submission.
type AccountAPIService interface {
	SignUp(ctx context.Context, account *models.AccountDraft) (string, error)
}

type accountAPIService struct {
	settings   *config.Settings
	logger     *zerolog.Logger
	httpClient *http.Client
}

func NewAccountAPIService(settings *config.Settings, logger *zerolog.Logger) AccountAPIService {
	return &accountAPIService{
		settings: settings,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type signUpRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type signUpResponse struct {
	UserID string `json:"userId"`
}

// SignUp creates the account with the auth provider and returns its opaque
// user identifier.
func (a *accountAPIService) SignUp(ctx context.Context, account *models.AccountDraft) (string, error) {
	body, err := json.Marshal(signUpRequest{
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Email:     account.Email,
		Password:  account.Password,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal sign-up request")
	}

	endpoint := a.settings.AuthAPIURL + "/v1/signup"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create sign-up request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAccountCreation, err.Error())
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrAccountCreation, resp.StatusCode, string(respBody))
	}

	var payload signUpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %s", ErrAccountCreation, err.Error())
	}
	if payload.UserID == "" {
		return "", fmt.Errorf("%w: auth provider returned no user ID", ErrAccountCreation)
	}

	a.logger.Info().Str("userId", payload.UserID).Msg("account created")
	return payload.UserID, nil
}
