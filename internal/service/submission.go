package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/models"
	"github.com/shoplocal/onboarding-api/internal/onboarding"
	"golang.org/x/sync/errgroup"
)

// SubmissionOrchestrator drives the terminal step: one account creation,
// then a concurrent fan-out registering every business draft. Account
// creation strictly precedes any business attempt; per-business attempts
// tolerate arbitrary interleaving and completion order.
type SubmissionOrchestrator struct {
	logger   *zerolog.Logger
	engine   onboarding.StepValidator
	accounts AccountAPIService
	registry RegistryAPIService
	uploader ImageUploader
}

func NewSubmissionOrchestrator(
	logger *zerolog.Logger,
	engine onboarding.StepValidator,
	accounts AccountAPIService,
	registry RegistryAPIService,
	uploader ImageUploader,
) *SubmissionOrchestrator {
	return &SubmissionOrchestrator{
		logger:   logger,
		engine:   engine,
		accounts: accounts,
		registry: registry,
		uploader: uploader,
	}
}

// Submit runs the whole submission protocol for a session on its final step.
// An account-creation failure is fatal to the session and returned as an
// error wrapping ErrAccountCreation; business failures are never fatal and
// are reported per draft in the SubmissionReport instead.
func (o *SubmissionOrchestrator) Submit(ctx context.Context, sess *onboarding.Session) (*models.SubmissionReport, error) {
	if !sess.OnTerminalStep() {
		return nil, ErrNotOnFinalStep
	}

	if res := o.engine.ValidateStep(ctx, sess); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrStepBlocked, res.Message)
	}

	localLog := o.logger.With().Str("sessionId", sess.ID).Logger()

	accountID, err := o.accounts.SignUp(ctx, &sess.Account)
	if err != nil {
		submissionResultCount.WithLabelValues("fatal").Inc()
		localLog.Error().Err(err).Msg("account creation failed, aborting submission")
		return nil, err
	}

	report := &models.SubmissionReport{AccountID: accountID}

	if !sess.HasBusinesses() {
		submissionResultCount.WithLabelValues("full").Inc()
		localLog.Info().Str("accountId", accountID).Msg("solo account session submitted")
		return report, nil
	}

	drafts := sess.Businesses.Drafts
	report.Attempted = len(drafts)
	failures := make([]*models.BusinessFailure, len(drafts))

	// Sibling failures must not cancel each other, so goroutines never
	// return an error; each writes only its own slot.
	g, gctx := errgroup.WithContext(ctx)
	for i, draft := range drafts {
		i, draft := i, draft
		g.Go(func() error {
			if reason := o.submitBusiness(gctx, &localLog, draft, accountID); reason != "" {
				failures[i] = &models.BusinessFailure{
					Index:        i,
					BusinessName: draft.BusinessName,
					Reason:       reason,
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		if f != nil {
			report.Failures = append(report.Failures, *f)
		}
	}
	report.Registered = report.Attempted - len(report.Failures)

	if report.Partial() {
		submissionResultCount.WithLabelValues("partial").Inc()
		localLog.Warn().Int("registered", report.Registered).Int("attempted", report.Attempted).Msg("session submitted with partial success")
	} else {
		submissionResultCount.WithLabelValues("full").Inc()
		localLog.Info().Int("registered", report.Registered).Msg("session submitted")
	}

	return report, nil
}

// submitBusiness uploads the draft's pending image if any, then registers the
// business. Returns a failure reason, or "" on success.
func (o *SubmissionOrchestrator) submitBusiness(ctx context.Context, logger *zerolog.Logger, draft *models.BusinessDraft, ownerID string) string {
	if draft.ImageFile != nil && draft.ImageURL == "" {
		url, err := o.uploader.Upload(ctx, draft.ImageFile)
		if err != nil {
			businessRegistrationFailureCount.Inc()
			logger.Error().Err(err).Str("businessName", draft.BusinessName).Msg("image upload failed")
			return fmt.Sprintf("image upload failed: %s", err.Error())
		}
		draft.ImageURL = url
		draft.ImageFile = nil
	}

	if err := o.registry.RegisterBusiness(ctx, draft, ownerID); err != nil {
		businessRegistrationFailureCount.Inc()
		logger.Error().Err(err).Str("businessName", draft.BusinessName).Msg("business registration failed")
		return err.Error()
	}

	return ""
}
