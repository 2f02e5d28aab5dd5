package service

import "github.com/pkg/errors"

// Domain errors for the onboarding API.
var (
	ErrInvalidPostalCode = errors.New("postal code must be exactly 6 digits")
	ErrAddressNotFound   = errors.New("no address found for postal code")
	ErrGeocodeAuth       = errors.New("failed to authenticate with geocoding authority")
	ErrTicketRequest     = errors.New("failed to obtain upload ticket")
	ErrTransfer          = errors.New("failed to transfer file to storage")
	ErrAccountCreation   = errors.New("failed to create account")
	ErrRegistration      = errors.New("failed to register business")
	ErrStepBlocked       = errors.New("current step did not pass validation")
	ErrNotOnFinalStep    = errors.New("submission is only available on the final step")
)
