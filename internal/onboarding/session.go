package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shoplocal/onboarding-api/internal/models"
)

// SessionKind tags the two shapes a wizard session can take. The step range
// that exists for a session follows from its kind, so a step index outside
// the current variant cannot be reached.
type SessionKind string

const (
	// KindSoloAccount registers an account only; the wizard has a single step.
	KindSoloAccount SessionKind = "solo_account"
	// KindWithBusinesses registers an account plus one or more businesses
	// across six steps.
	KindWithBusinesses SessionKind = "account_with_businesses"
)

// Wizard steps. Steps 2-5 edit the draft at the collection cursor; step 1 is
// never revisited once a business draft cycle starts.
const (
	StepAccount   = 1
	StepBasicInfo = 2
	StepContact   = 3
	StepHours     = 4
	StepDetails   = 5
	StepReview    = 6
)

// StepName returns the user-facing name of a step, used in error messages so
// every failure names the step it concerns.
func StepName(step int) string {
	switch step {
	case StepAccount:
		return "account"
	case StepBasicInfo:
		return "basic info"
	case StepContact:
		return "contact"
	case StepHours:
		return "hours"
	case StepDetails:
		return "details"
	case StepReview:
		return "review"
	}
	return "unknown"
}

// StepValidator approves or blocks leaving the session's current step.
type StepValidator interface {
	ValidateStep(ctx context.Context, sess *Session) models.ValidationResult
}

// Session is the explicit context object for one onboarding run. Every
// component receives it as an argument; there is no ambient wizard state.
// Sessions are transient: TTL-bound in the session repository, discarded
// after submission or abandonment.
type Session struct {
	ID         string              `json:"id"`
	Kind       SessionKind         `json:"kind"`
	Step       int                 `json:"step"`
	StepError  string              `json:"stepError,omitempty"`
	Account    models.AccountDraft `json:"account"`
	Businesses *DraftCollection    `json:"businesses,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// NewSession starts a session on step 1. Sessions with business ownership
// always start with one default draft.
func NewSession(kind SessionKind) *Session {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Step:      StepAccount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == KindWithBusinesses {
		sess.Businesses = NewDraftCollection()
	}
	return sess
}

// TotalSteps derives the wizard length from the session kind.
func (s *Session) TotalSteps() int {
	if s.Kind == KindWithBusinesses {
		return StepReview
	}
	return StepAccount
}

// OnTerminalStep reports whether submit is available.
func (s *Session) OnTerminalStep() bool {
	return s.Step == s.TotalSteps()
}

// HasBusinesses reports whether business ownership is active.
func (s *Session) HasBusinesses() bool {
	return s.Kind == KindWithBusinesses
}

// SetKind retargets the session variant. On step 1 the step range changes in
// place; beyond step 1 the session is forced back to step 1 so it cannot be
// stranded on a step that no longer exists. Draft data entered so far is
// retained in case the user toggles back.
func (s *Session) SetKind(kind SessionKind) {
	if kind == s.Kind {
		return
	}
	s.Kind = kind
	if kind == KindWithBusinesses && s.Businesses == nil {
		s.Businesses = NewDraftCollection()
	}
	if s.Step > StepAccount {
		s.Step = StepAccount
		s.StepError = ""
	}
}

// Advance moves one step forward if the validator approves the current step.
// The step never leaves [1, TotalSteps].
func (s *Session) Advance(ctx context.Context, v StepValidator) models.ValidationResult {
	res := v.ValidateStep(ctx, s)
	if !res.Valid {
		s.StepError = res.Message
		return res
	}
	s.StepError = ""
	if s.Step < s.TotalSteps() {
		s.Step++
	}
	return res
}

// Retreat moves one step back unconditionally and clears any step error.
func (s *Session) Retreat() {
	s.StepError = ""
	if s.Step > StepAccount {
		s.Step--
	}
}

// AppendBusiness adds a draft from the review step and re-enters the
// per-business cycle at step 2 with the cursor on the new draft.
func (s *Session) AppendBusiness() (*models.BusinessDraft, error) {
	if !s.HasBusinesses() {
		return nil, ErrNoBusinessOwnership
	}
	if !s.OnTerminalStep() {
		return nil, ErrNotOnReviewStep
	}
	draft := s.Businesses.Append()
	s.Step = StepBasicInfo
	s.StepError = ""
	return draft, nil
}

// CurrentDraft returns the draft at the cursor, or nil for solo sessions.
func (s *Session) CurrentDraft() *models.BusinessDraft {
	if s.Businesses == nil || s.Businesses.Len() == 0 {
		return nil
	}
	return s.Businesses.Current()
}

// Touch refreshes the activity timestamp used for TTL accounting.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
