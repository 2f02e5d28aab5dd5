package controllers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/config"
	"github.com/shoplocal/onboarding-api/internal/controllers/helpers"
	"github.com/shoplocal/onboarding-api/internal/models"
	"github.com/shoplocal/onboarding-api/internal/onboarding"
	"github.com/shoplocal/onboarding-api/internal/repository"
	"github.com/shoplocal/onboarding-api/internal/service"
)

const maxImageSize = 5 << 20

// AddressLookup schedules debounced postal code resolution for a session.
type AddressLookup interface {
	ResolveLatest(sessionID, postalCode string, apply func(*models.ResolvedAddress, error))
	Forget(sessionID string)
}

// Submitter turns a completed session into registered records.
type Submitter interface {
	Submit(ctx context.Context, sess *onboarding.Session) (*models.SubmissionReport, error)
}

type OnboardingController struct {
	settings  *config.Settings
	logger    *zerolog.Logger
	sessions  repository.SessionRepository
	validator onboarding.StepValidator
	resolver  AddressLookup
	submitter Submitter
}

func NewOnboardingController(
	settings *config.Settings,
	logger *zerolog.Logger,
	sessions repository.SessionRepository,
	validator onboarding.StepValidator,
	resolver AddressLookup,
	submitter Submitter,
) *OnboardingController {
	return &OnboardingController{
		settings:  settings,
		logger:    logger,
		sessions:  sessions,
		validator: validator,
		resolver:  resolver,
		submitter: submitter,
	}
}

// StartSession opens a new wizard session and returns the bearer token that
// scopes every subsequent call to it.
func (o *OnboardingController) StartSession(c *fiber.Ctx) error {
	logger := helpers.GetLogger(c, o.logger)

	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Couldn't parse request body.")
	}

	kind := onboarding.KindSoloAccount
	if req.HasBusinesses {
		kind = onboarding.KindWithBusinesses
	}

	sess := onboarding.NewSession(kind)
	if err := o.sessions.Save(c.Context(), sess); err != nil {
		logger.Err(err).Msg("Failed to persist new session.")
		return fiber.NewError(fiber.StatusInternalServerError, "Couldn't start session.")
	}

	token, err := o.issueToken(sess)
	if err != nil {
		logger.Err(err).Str("sessionId", sess.ID).Msg("Failed to sign session token.")
		return fiber.NewError(fiber.StatusInternalServerError, "Couldn't start session.")
	}

	sessionStartedCount.WithLabelValues(string(kind)).Inc()
	logger.Info().Str("sessionId", sess.ID).Str("kind", string(kind)).Msg("Onboarding session started.")

	return c.Status(fiber.StatusCreated).JSON(StartSessionResponse{
		Token:   token,
		Session: newSessionResponse(sess),
	})
}

// GetSession returns the full current wizard state.
func (o *OnboardingController) GetSession(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// PatchAccount merges a partial update into the account draft.
func (o *OnboardingController) PatchAccount(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}

	var patch models.AccountDraftPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Couldn't parse request body.")
	}

	patch.Apply(&sess.Account)
	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// SetKind switches the session between the solo and with-businesses variants.
func (o *OnboardingController) SetKind(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}

	var req SetKindRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Couldn't parse request body.")
	}

	kind := onboarding.KindSoloAccount
	if req.HasBusinesses {
		kind = onboarding.KindWithBusinesses
	}
	sess.SetKind(kind)

	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// AddBusiness appends a fresh draft from the review step and re-enters the
// per-business editing cycle on it.
func (o *OnboardingController) AddBusiness(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}

	if _, err := sess.AppendBusiness(); err != nil {
		switch {
		case errors.Is(err, onboarding.ErrNoBusinessOwnership):
			return fiber.NewError(fiber.StatusConflict, "Session has no business drafts.")
		case errors.Is(err, onboarding.ErrNotOnReviewStep):
			return fiber.NewError(fiber.StatusConflict, "Adding another business is only available on the review step.")
		}
		return err
	}

	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// RemoveBusiness deletes a draft by index. The last remaining draft cannot
// be removed.
func (o *OnboardingController) RemoveBusiness(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}
	if !sess.HasBusinesses() {
		return fiber.NewError(fiber.StatusConflict, "Session has no business drafts.")
	}

	index, err := c.ParamsInt("index")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Index must be an integer.")
	}

	if err := sess.Businesses.RemoveAt(index); err != nil {
		switch {
		case errors.Is(err, onboarding.ErrIndexOutOfRange):
			return fiber.NewError(fiber.StatusNotFound, "No business draft at that index.")
		case errors.Is(err, onboarding.ErrCollectionInvariant):
			return fiber.NewError(fiber.StatusConflict, "Can't remove the only business draft. Switch to an account-only session instead.")
		}
		return err
	}

	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// SetCursor switches which draft steps 2-5 are editing.
func (o *OnboardingController) SetCursor(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}
	if !sess.HasBusinesses() {
		return fiber.NewError(fiber.StatusConflict, "Session has no business drafts.")
	}

	index, err := c.ParamsInt("index")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Index must be an integer.")
	}

	if err := sess.Businesses.SetCursor(index); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "No business draft at that index.")
	}

	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// PatchCurrentBusiness merges a partial update into the draft at the cursor.
// A postal code change schedules a debounced address lookup whose result is
// applied to the session out of band.
func (o *OnboardingController) PatchCurrentBusiness(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}
	if !sess.HasBusinesses() {
		return fiber.NewError(fiber.StatusConflict, "Session has no business drafts.")
	}

	var patch models.BusinessDraftPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Couldn't parse request body.")
	}

	draft := sess.Businesses.Current()
	priorPostal := draft.PostalCode
	sess.Businesses.UpdateCurrent(&patch)

	if patch.PostalCode != nil && draft.PostalCode != priorPostal {
		draft.Address = ""
		draft.Latitude = nil
		draft.Longitude = nil
		draft.AddressError = ""
		o.scheduleAddressLookup(sess.ID, draft.DraftID, draft.PostalCode)
	}

	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// AttachImage stages an image for the draft at the cursor. Bytes are held in
// the session and only uploaded to storage at submission.
func (o *OnboardingController) AttachImage(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}
	if !sess.HasBusinesses() {
		return fiber.NewError(fiber.StatusConflict, "Session has no business drafts.")
	}

	header, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Expected a multipart form with an image field.")
	}
	if header.Size > maxImageSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Image exceeds the 5 MiB limit.")
	}

	file, err := header.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Couldn't read uploaded image.")
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Couldn't read uploaded image.")
	}

	draft := sess.Businesses.Current()
	draft.ImageFile = &models.PendingImage{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	draft.ImageURL = ""

	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(newSessionResponse(sess))
}

// Advance validates the current step and moves forward when it passes.
// A blocked step returns the validation message with the unchanged state.
func (o *OnboardingController) Advance(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}

	res := sess.Advance(c.Context(), o.validator)
	if err := o.saveSession(c, sess); err != nil {
		return err
	}

	status := fiber.StatusOK
	if !res.Valid {
		stepBlockedCount.WithLabelValues(onboarding.StepName(sess.Step)).Inc()
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(StepResponse{
		Validation: res,
		Session:    newSessionResponse(sess),
	})
}

// Retreat moves one step back. Always succeeds; entered data is retained.
func (o *OnboardingController) Retreat(c *fiber.Ctx) error {
	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}

	sess.Retreat()
	if err := o.saveSession(c, sess); err != nil {
		return err
	}
	return c.JSON(StepResponse{
		Validation: models.ValidationResult{Valid: true},
		Session:    newSessionResponse(sess),
	})
}

// Submit registers the account and all business drafts. The session is
// consumed on success, including degraded success where some businesses
// failed to register.
func (o *OnboardingController) Submit(c *fiber.Ctx) error {
	logger := helpers.GetLogger(c, o.logger)

	sess, err := o.loadSession(c)
	if err != nil {
		return err
	}

	report, err := o.submitter.Submit(c.Context(), sess)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotOnFinalStep):
			return fiber.NewError(fiber.StatusConflict, "Submission is only available on the final step.")
		case errors.Is(err, service.ErrStepBlocked):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAccountCreation):
			return fiber.NewError(fiber.StatusBadGateway, "Couldn't create the user account. Nothing was registered.")
		}
		logger.Err(err).Str("sessionId", sess.ID).Msg("Submission failed.")
		return fiber.NewError(fiber.StatusInternalServerError, "Submission failed.")
	}

	o.resolver.Forget(sess.ID)
	if err := o.sessions.Delete(c.Context(), sess.ID); err != nil {
		logger.Err(err).Str("sessionId", sess.ID).Msg("Failed to discard submitted session.")
	}

	return c.JSON(SubmitResponse{
		Summary: report.Summary(),
		Partial: report.Partial(),
		Report:  *report,
	})
}

func (o *OnboardingController) loadSession(c *fiber.Ctx) (*onboarding.Session, error) {
	sess, err := o.sessions.Get(c.Context(), helpers.GetSessionID(c))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Session not found or expired.")
		}
		helpers.GetLogger(c, o.logger).Err(err).Msg("Failed to load session.")
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Couldn't load session.")
	}
	return sess, nil
}

func (o *OnboardingController) saveSession(c *fiber.Ctx, sess *onboarding.Session) error {
	if err := o.sessions.Save(c.Context(), sess); err != nil {
		helpers.GetLogger(c, o.logger).Err(err).Str("sessionId", sess.ID).Msg("Failed to persist session.")
		return fiber.NewError(fiber.StatusInternalServerError, "Couldn't persist session.")
	}
	return nil
}

func (o *OnboardingController) issueToken(sess *onboarding.Session) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sess.ID,
		"iat": now.Unix(),
		"exp": now.Add(o.settings.SessionTTL).Unix(),
	})
	return token.SignedString([]byte(o.settings.SessionTokenSecret))
}

// scheduleAddressLookup hands the postal code to the debounced resolver and
// writes the outcome back into the session when it is still the latest
// lookup. The draft is located by ID so a moved cursor does not misdirect
// the result.
func (o *OnboardingController) scheduleAddressLookup(sessionID, draftID, postalCode string) {
	o.resolver.ResolveLatest(sessionID, postalCode, func(addr *models.ResolvedAddress, err error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sess, gerr := o.sessions.Get(ctx, sessionID)
		if gerr != nil {
			return
		}
		if sess.Businesses == nil {
			return
		}
		draft := sess.Businesses.FindByDraftID(draftID)
		if draft == nil || draft.PostalCode != postalCode {
			return
		}

		if err != nil {
			draft.Address = ""
			draft.Latitude = nil
			draft.Longitude = nil
			draft.AddressError = lookupErrorMessage(err)
		} else {
			draft.Address = addr.Address
			draft.Latitude = addr.Latitude
			draft.Longitude = addr.Longitude
			draft.AddressError = ""
		}

		if serr := o.sessions.Save(ctx, sess); serr != nil {
			o.logger.Err(serr).Str("sessionId", sessionID).Msg("Failed to persist resolved address.")
		}
	})
}

func lookupErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidPostalCode):
		return "postal code must be exactly 6 digits"
	case errors.Is(err, service.ErrAddressNotFound):
		return "no address found for this postal code, check the postal code"
	}
	return "address lookup failed, try again"
}
