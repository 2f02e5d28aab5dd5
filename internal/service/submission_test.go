package service

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/models"
	"github.com/shoplocal/onboarding-api/internal/onboarding"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockAccountAPI struct {
	mock.Mock
}

func (m *MockAccountAPI) SignUp(_ context.Context, account *models.AccountDraft) (string, error) {
	args := m.Called(account.Email)
	return args.String(0), args.Error(1)
}

type MockRegistryAPI struct {
	mock.Mock
}

func (m *MockRegistryAPI) CheckEmailAvailable(_ context.Context, email string) (bool, error) {
	args := m.Called(email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistryAPI) CheckUENAvailable(_ context.Context, uen string) (bool, error) {
	args := m.Called(uen)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistryAPI) CheckBusinessEmailAvailable(_ context.Context, email string) (bool, error) {
	args := m.Called(email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistryAPI) RequestUploadTicket(_ context.Context, filename string) (*models.UploadTicket, error) {
	args := m.Called(filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UploadTicket), args.Error(1)
}

func (m *MockRegistryAPI) RegisterBusiness(_ context.Context, draft *models.BusinessDraft, ownerID string) error {
	args := m.Called(draft.BusinessName, ownerID)
	return args.Error(0)
}

type MockImageUploader struct {
	mock.Mock
}

func (m *MockImageUploader) Upload(_ context.Context, img *models.PendingImage) (string, error) {
	args := m.Called(img.FileName)
	return args.String(0), args.Error(1)
}

type passValidator struct{}

func (passValidator) ValidateStep(_ context.Context, _ *onboarding.Session) models.ValidationResult {
	return models.ValidationResult{Valid: true}
}

type failValidator struct{ msg string }

func (v failValidator) ValidateStep(_ context.Context, _ *onboarding.Session) models.ValidationResult {
	return models.ValidationResult{Valid: false, Message: v.msg}
}

type SubmissionTestSuite struct {
	suite.Suite
	logger   zerolog.Logger
	accounts *MockAccountAPI
	registry *MockRegistryAPI
	uploader *MockImageUploader
}

func (s *SubmissionTestSuite) SetupTest() {
	s.logger = zerolog.New(os.Stdout)
	s.accounts = new(MockAccountAPI)
	s.registry = new(MockRegistryAPI)
	s.uploader = new(MockImageUploader)
}

func (s *SubmissionTestSuite) orchestrator(v onboarding.StepValidator) *SubmissionOrchestrator {
	return NewSubmissionOrchestrator(&s.logger, v, s.accounts, s.registry, s.uploader)
}

func TestSubmissionTestSuite(t *testing.T) {
	suite.Run(t, new(SubmissionTestSuite))
}

func (s *SubmissionTestSuite) soloSession() *onboarding.Session {
	sess := onboarding.NewSession(onboarding.KindSoloAccount)
	sess.Account = models.AccountDraft{
		FirstName:            "Mei Ling",
		LastName:             "Tan",
		Email:                "mei@example.com",
		Password:             "hunter22",
		PasswordConfirmation: "hunter22",
	}
	return sess
}

func (s *SubmissionTestSuite) businessSession(names ...string) *onboarding.Session {
	sess := onboarding.NewSession(onboarding.KindWithBusinesses)
	sess.Account = s.soloSession().Account
	sess.Step = onboarding.StepReview

	for i, name := range names {
		if i > 0 {
			sess.Businesses.Append()
		}
		draft := sess.Businesses.Current()
		draft.BusinessName = name
		draft.UEN = "201800000K"
		draft.ImageURL = "https://storage.test/images/" + name + ".jpg"
	}
	return sess
}

func (s *SubmissionTestSuite) TestSoloSessionRegistersAccountOnly() {
	sess := s.soloSession()
	s.accounts.On("SignUp", "mei@example.com").Return("acct-1", nil)

	report, err := s.orchestrator(passValidator{}).Submit(context.Background(), sess)

	s.Require().NoError(err)
	s.Equal("acct-1", report.AccountID)
	s.Equal(0, report.Attempted)
	s.False(report.Partial())
	s.Equal("registered user", report.Summary())
	s.registry.AssertNotCalled(s.T(), "RegisterBusiness", mock.Anything, mock.Anything)
}

func (s *SubmissionTestSuite) TestAllBusinessesRegistered() {
	sess := s.businessSession("Katong Laksa", "Tiong Bahru Bakery")
	s.accounts.On("SignUp", "mei@example.com").Return("acct-1", nil)
	s.registry.On("RegisterBusiness", "Katong Laksa", "acct-1").Return(nil)
	s.registry.On("RegisterBusiness", "Tiong Bahru Bakery", "acct-1").Return(nil)

	report, err := s.orchestrator(passValidator{}).Submit(context.Background(), sess)

	s.Require().NoError(err)
	s.Equal(2, report.Registered)
	s.Empty(report.Failures)
	s.False(report.Partial())
	s.Equal("registered user + 2/2 businesses", report.Summary())
}

func (s *SubmissionTestSuite) TestPartialSuccessReportsPerBusiness() {
	sess := s.businessSession("Katong Laksa", "Tiong Bahru Bakery", "Joo Chiat Barber")
	s.accounts.On("SignUp", "mei@example.com").Return("acct-1", nil)
	s.registry.On("RegisterBusiness", "Katong Laksa", "acct-1").Return(nil)
	s.registry.On("RegisterBusiness", "Tiong Bahru Bakery", "acct-1").
		Return(errors.Wrap(ErrRegistration, "duplicate UEN"))
	s.registry.On("RegisterBusiness", "Joo Chiat Barber", "acct-1").Return(nil)

	report, err := s.orchestrator(passValidator{}).Submit(context.Background(), sess)

	s.Require().NoError(err)
	s.Equal(3, report.Attempted)
	s.Equal(2, report.Registered)
	s.True(report.Partial())
	s.Equal("registered user + 2/3 businesses", report.Summary())
	s.Require().Len(report.Failures, 1)
	s.Equal(1, report.Failures[0].Index)
	s.Equal("Tiong Bahru Bakery", report.Failures[0].BusinessName)
	s.Contains(report.Failures[0].Reason, "duplicate UEN")
}

func (s *SubmissionTestSuite) TestAccountFailureIsFatal() {
	sess := s.businessSession("Katong Laksa")
	s.accounts.On("SignUp", "mei@example.com").
		Return("", errors.Wrap(ErrAccountCreation, "email conflict"))

	_, err := s.orchestrator(passValidator{}).Submit(context.Background(), sess)

	s.Require().ErrorIs(err, ErrAccountCreation)
	s.registry.AssertNotCalled(s.T(), "RegisterBusiness", mock.Anything, mock.Anything)
}

func (s *SubmissionTestSuite) TestSubmitRequiresFinalStep() {
	sess := s.businessSession("Katong Laksa")
	sess.Step = onboarding.StepContact

	_, err := s.orchestrator(passValidator{}).Submit(context.Background(), sess)

	s.ErrorIs(err, ErrNotOnFinalStep)
	s.accounts.AssertNotCalled(s.T(), "SignUp", mock.Anything)
}

func (s *SubmissionTestSuite) TestSubmitBlockedByValidation() {
	sess := s.soloSession()

	_, err := s.orchestrator(failValidator{msg: "account: all fields are required"}).
		Submit(context.Background(), sess)

	s.Require().ErrorIs(err, ErrStepBlocked)
	s.Contains(err.Error(), "account: all fields are required")
	s.accounts.AssertNotCalled(s.T(), "SignUp", mock.Anything)
}

func (s *SubmissionTestSuite) TestPendingImageUploadedBeforeRegistration() {
	sess := s.businessSession("Katong Laksa")
	draft := sess.Businesses.Current()
	draft.ImageURL = ""
	draft.ImageFile = &models.PendingImage{FileName: "laksa.jpg", Data: []byte{1}}

	s.accounts.On("SignUp", "mei@example.com").Return("acct-1", nil)
	s.uploader.On("Upload", "laksa.jpg").Return("https://storage.test/images/laksa.jpg", nil)
	s.registry.On("RegisterBusiness", "Katong Laksa", "acct-1").Return(nil)

	report, err := s.orchestrator(passValidator{}).Submit(context.Background(), sess)

	s.Require().NoError(err)
	s.Equal(1, report.Registered)
	s.Equal("https://storage.test/images/laksa.jpg", draft.ImageURL)
	s.Nil(draft.ImageFile)
	s.uploader.AssertExpectations(s.T())
}

func (s *SubmissionTestSuite) TestImageUploadFailureFailsOnlyThatBusiness() {
	sess := s.businessSession("Katong Laksa", "Tiong Bahru Bakery")
	first := sess.Businesses.Drafts[0]
	first.ImageURL = ""
	first.ImageFile = &models.PendingImage{FileName: "laksa.jpg", Data: []byte{1}}

	s.accounts.On("SignUp", "mei@example.com").Return("acct-1", nil)
	s.uploader.On("Upload", "laksa.jpg").Return("", errors.Wrap(ErrTransfer, "status 403"))
	s.registry.On("RegisterBusiness", "Tiong Bahru Bakery", "acct-1").Return(nil)

	report, err := s.orchestrator(passValidator{}).Submit(context.Background(), sess)

	s.Require().NoError(err)
	s.Equal(1, report.Registered)
	s.Require().Len(report.Failures, 1)
	s.Equal("Katong Laksa", report.Failures[0].BusinessName)
	s.Contains(report.Failures[0].Reason, "image upload failed")
	s.registry.AssertNotCalled(s.T(), "RegisterBusiness", "Katong Laksa", "acct-1")
}
