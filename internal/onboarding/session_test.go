package onboarding

import (
	"context"
	"testing"

	"github.com/shoplocal/onboarding-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	result models.ValidationResult
}

func (v stubValidator) ValidateStep(_ context.Context, _ *Session) models.ValidationResult {
	return v.result
}

func approve() stubValidator {
	return stubValidator{result: models.ValidationResult{Valid: true}}
}

func reject(msg string) stubValidator {
	return stubValidator{result: models.ValidationResult{Valid: false, Message: msg}}
}

func TestNewSessionSolo(t *testing.T) {
	sess := NewSession(KindSoloAccount)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, StepAccount, sess.Step)
	assert.Equal(t, 1, sess.TotalSteps())
	assert.True(t, sess.OnTerminalStep())
	assert.Nil(t, sess.Businesses)
}

func TestNewSessionWithBusinesses(t *testing.T) {
	sess := NewSession(KindWithBusinesses)

	assert.Equal(t, StepAccount, sess.Step)
	assert.Equal(t, StepReview, sess.TotalSteps())
	assert.False(t, sess.OnTerminalStep())
	require.NotNil(t, sess.Businesses)
	assert.Equal(t, 1, sess.Businesses.Len())
}

func TestAdvanceBlockedByValidator(t *testing.T) {
	sess := NewSession(KindWithBusinesses)

	res := sess.Advance(context.Background(), reject("account: all fields are required"))

	assert.False(t, res.Valid)
	assert.Equal(t, StepAccount, sess.Step)
	assert.Equal(t, "account: all fields are required", sess.StepError)
}

func TestAdvanceClearsPreviousStepError(t *testing.T) {
	sess := NewSession(KindWithBusinesses)
	sess.StepError = "account: passwords do not match"

	res := sess.Advance(context.Background(), approve())

	assert.True(t, res.Valid)
	assert.Equal(t, StepBasicInfo, sess.Step)
	assert.Empty(t, sess.StepError)
}

func TestStepNeverLeavesRange(t *testing.T) {
	sess := NewSession(KindWithBusinesses)

	// Walk past the end; the step must saturate at the review step.
	for i := 0; i < 10; i++ {
		sess.Advance(context.Background(), approve())
		assert.GreaterOrEqual(t, sess.Step, StepAccount)
		assert.LessOrEqual(t, sess.Step, sess.TotalSteps())
	}
	assert.Equal(t, StepReview, sess.Step)

	// Walk past the start; the step must saturate at step one.
	for i := 0; i < 10; i++ {
		sess.Retreat()
		assert.GreaterOrEqual(t, sess.Step, StepAccount)
	}
	assert.Equal(t, StepAccount, sess.Step)
}

func TestSoloSessionNeverMoves(t *testing.T) {
	sess := NewSession(KindSoloAccount)

	sess.Advance(context.Background(), approve())
	assert.Equal(t, StepAccount, sess.Step)

	sess.Retreat()
	assert.Equal(t, StepAccount, sess.Step)
}

func TestRetreatClearsStepError(t *testing.T) {
	sess := NewSession(KindWithBusinesses)
	sess.Step = StepContact
	sess.StepError = "contact: phone number is required"

	sess.Retreat()

	assert.Equal(t, StepBasicInfo, sess.Step)
	assert.Empty(t, sess.StepError)
}

func TestSetKindOnStepOneChangesRangeInPlace(t *testing.T) {
	sess := NewSession(KindSoloAccount)

	sess.SetKind(KindWithBusinesses)

	assert.Equal(t, StepAccount, sess.Step)
	assert.Equal(t, StepReview, sess.TotalSteps())
	require.NotNil(t, sess.Businesses)
	assert.Equal(t, 1, sess.Businesses.Len())
}

func TestSetKindBeyondStepOneForcesBackToStepOne(t *testing.T) {
	sess := NewSession(KindWithBusinesses)
	sess.Step = StepHours
	sess.StepError = "hours: must be open at least one day"

	sess.SetKind(KindSoloAccount)

	assert.Equal(t, StepAccount, sess.Step)
	assert.Empty(t, sess.StepError)
	assert.True(t, sess.OnTerminalStep())
}

func TestSetKindRetainsDraftsAcrossToggle(t *testing.T) {
	sess := NewSession(KindWithBusinesses)
	sess.Businesses.Current().BusinessName = "Katong Laksa"

	sess.SetKind(KindSoloAccount)
	sess.SetKind(KindWithBusinesses)

	require.NotNil(t, sess.Businesses)
	assert.Equal(t, "Katong Laksa", sess.Businesses.Current().BusinessName)
}

func TestAppendBusinessOnlyFromReviewStep(t *testing.T) {
	sess := NewSession(KindWithBusinesses)
	sess.Step = StepDetails

	_, err := sess.AppendBusiness()
	require.ErrorIs(t, err, ErrNotOnReviewStep)

	sess.Step = StepReview
	draft, err := sess.AppendBusiness()
	require.NoError(t, err)

	assert.Equal(t, StepBasicInfo, sess.Step)
	assert.Equal(t, 2, sess.Businesses.Len())
	assert.Same(t, draft, sess.Businesses.Current())
}

func TestAppendBusinessRejectedForSoloSession(t *testing.T) {
	sess := NewSession(KindSoloAccount)

	_, err := sess.AppendBusiness()

	assert.ErrorIs(t, err, ErrNoBusinessOwnership)
}

func TestCurrentDraft(t *testing.T) {
	solo := NewSession(KindSoloAccount)
	assert.Nil(t, solo.CurrentDraft())

	sess := NewSession(KindWithBusinesses)
	assert.Same(t, sess.Businesses.Current(), sess.CurrentDraft())
}
