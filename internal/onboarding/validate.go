package onboarding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/models"
)

const minPasswordLength = 6

// UniquenessAPI is the subset of the platform backend used by validation to
// check identifiers before submission. The backend remains the final
// authority; these checks only surface conflicts early.
type UniquenessAPI interface {
	CheckEmailAvailable(ctx context.Context, email string) (bool, error)
	CheckUENAvailable(ctx context.Context, uen string) (bool, error)
	CheckBusinessEmailAvailable(ctx context.Context, email string) (bool, error)
}

// Engine evaluates the rule table for the step being left. Results are never
// cached; every advance attempt re-runs the full step.
type Engine struct {
	uniq   UniquenessAPI
	logger *zerolog.Logger
}

func NewEngine(uniq UniquenessAPI, logger *zerolog.Logger) *Engine {
	return &Engine{
		uniq:   uniq,
		logger: logger,
	}
}

// ValidateStep runs the rules for the session's current step.
func (e *Engine) ValidateStep(ctx context.Context, sess *Session) models.ValidationResult {
	if sess.HasBusinesses() && sess.Step > StepAccount {
		draft := sess.CurrentDraft()
		switch sess.Step {
		case StepBasicInfo:
			return e.validateBasicInfo(ctx, draft)
		case StepContact:
			return e.validateContact(ctx, draft)
		case StepHours:
			return e.validateHours(draft)
		case StepDetails:
			return e.validateDetails(draft)
		case StepReview:
			// No new data is entered on review.
			return valid()
		}
	}
	return e.validateAccount(ctx, &sess.Account)
}

func (e *Engine) validateAccount(ctx context.Context, a *models.AccountDraft) models.ValidationResult {
	if a.FirstName == "" || a.LastName == "" || a.Email == "" || a.Password == "" {
		return invalid(StepAccount, "all fields are required")
	}
	if len(a.Password) < minPasswordLength {
		return invalid(StepAccount, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if a.Password != a.PasswordConfirmation {
		return invalid(StepAccount, "passwords do not match")
	}

	available, err := e.uniq.CheckEmailAvailable(ctx, a.Email)
	if err != nil {
		// Transient backend failures never block a signup; the backend
		// rejects true duplicates at registration time anyway.
		e.logger.Warn().Err(err).Str("email", a.Email).Msg("email uniqueness check failed, allowing advance")
		return valid()
	}
	if !available {
		return invalid(StepAccount, "email is already registered")
	}
	return valid()
}

func (e *Engine) validateBasicInfo(ctx context.Context, d *models.BusinessDraft) models.ValidationResult {
	if d.UEN == "" || d.BusinessName == "" || d.Category == "" || d.Description == "" {
		return invalid(StepBasicInfo, fmt.Sprintf("all fields are required for %q", displayName(d)))
	}
	if d.Address == "" {
		return invalid(StepBasicInfo, fmt.Sprintf("no address resolved for %q, check the postal code", displayName(d)))
	}
	if d.AddressError != "" {
		return invalid(StepBasicInfo, fmt.Sprintf("address lookup for %q failed: %s", displayName(d), d.AddressError))
	}

	available, err := e.uniq.CheckUENAvailable(ctx, d.UEN)
	if err != nil {
		e.logger.Warn().Err(err).Str("uen", d.UEN).Msg("UEN uniqueness check failed, allowing advance")
		return valid()
	}
	if !available {
		return invalid(StepBasicInfo, fmt.Sprintf("UEN %s is already registered", d.UEN))
	}
	return valid()
}

func (e *Engine) validateContact(ctx context.Context, d *models.BusinessDraft) models.ValidationResult {
	if !strings.Contains(d.BusinessEmail, "@") {
		return invalid(StepContact, fmt.Sprintf("a valid business email is required for %q", displayName(d)))
	}
	if d.PhoneNumber == "" {
		return invalid(StepContact, fmt.Sprintf("phone number is required for %q", displayName(d)))
	}
	if !d.HasImage() {
		return invalid(StepContact, fmt.Sprintf("an image is required for %q", displayName(d)))
	}

	available, err := e.uniq.CheckBusinessEmailAvailable(ctx, d.BusinessEmail)
	if err != nil {
		e.logger.Warn().Err(err).Str("businessEmail", d.BusinessEmail).Msg("business email uniqueness check failed, allowing advance")
		return valid()
	}
	if !available {
		return invalid(StepContact, fmt.Sprintf("business email %s is already registered", d.BusinessEmail))
	}
	return valid()
}

func (e *Engine) validateHours(d *models.BusinessDraft) models.ValidationResult {
	if d.Open24Hours {
		return valid()
	}

	openDays := 0
	for _, day := range d.OpeningHours.Days() {
		if day.Hours.Closed {
			continue
		}
		openDays++
		// Zero-padded HH:MM compares lexically.
		if day.Hours.Open >= day.Hours.Close {
			return invalid(StepHours, fmt.Sprintf("%s: opening time must be before closing time", day.Day))
		}
	}
	if openDays == 0 {
		return invalid(StepHours, "must be open at least one day")
	}
	return valid()
}

func (e *Engine) validateDetails(d *models.BusinessDraft) models.ValidationResult {
	if !d.PriceTier.Valid() {
		return invalid(StepDetails, fmt.Sprintf("price tier is required for %q", displayName(d)))
	}
	if len(d.PaymentOptions) == 0 {
		return invalid(StepDetails, fmt.Sprintf("at least one payment option is required for %q", displayName(d)))
	}
	return valid()
}

func valid() models.ValidationResult {
	return models.ValidationResult{Valid: true}
}

func invalid(step int, message string) models.ValidationResult {
	return models.ValidationResult{
		Valid:   false,
		Message: fmt.Sprintf("%s: %s", StepName(step), message),
	}
}

func displayName(d *models.BusinessDraft) string {
	if d.BusinessName != "" {
		return d.BusinessName
	}
	return "this business"
}
