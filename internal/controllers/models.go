package controllers

import (
	"github.com/shoplocal/onboarding-api/internal/models"
	"github.com/shoplocal/onboarding-api/internal/onboarding"
)

// StartSessionRequest opens a wizard session. The flag picks the session
// variant up front; it can still be changed later via PUT /session/kind.
type StartSessionRequest struct {
	HasBusinesses bool `json:"hasBusinesses"`
}

type StartSessionResponse struct {
	Token   string          `json:"token"`
	Session SessionResponse `json:"session"`
}

// AccountView is the account draft without its password fields.
type AccountView struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// BusinessView is a business draft as returned to the client. Pending image
// bytes stay server side; only presence and metadata are reported.
type BusinessView struct {
	DraftID         string              `json:"draftId"`
	UEN             string              `json:"uen"`
	BusinessName    string              `json:"businessName"`
	Category        string              `json:"category"`
	Description     string              `json:"description"`
	Address         string              `json:"address"`
	PostalCode      string              `json:"postalCode"`
	Latitude        *float64            `json:"latitude,omitempty"`
	Longitude       *float64            `json:"longitude,omitempty"`
	AddressError    string              `json:"addressError,omitempty"`
	PhoneNumber     string              `json:"phoneNumber"`
	BusinessEmail   string              `json:"businessEmail"`
	WebsiteLink     string              `json:"websiteLink"`
	SocialMediaLink string              `json:"socialMediaLink"`
	HasImage        bool                `json:"hasImage"`
	ImageFileName   string              `json:"imageFileName,omitempty"`
	ImageURL        string              `json:"imageUrl,omitempty"`
	PriceTier       models.PriceTier    `json:"priceTier"`
	Open24Hours     bool                `json:"open24Hours"`
	OpeningHours    models.OpeningHours `json:"openingHours"`
	OffersDelivery  bool                `json:"offersDelivery"`
	OffersPickup    bool                `json:"offersPickup"`
	PaymentOptions  []string            `json:"paymentOptions"`
}

type BusinessCollectionView struct {
	Drafts []BusinessView `json:"drafts"`
	Cursor int            `json:"cursor"`
}

// SessionResponse is the full sanitized wizard state returned by every
// state-changing endpoint, so clients never need a follow-up read.
type SessionResponse struct {
	ID         string                  `json:"id"`
	Kind       onboarding.SessionKind  `json:"kind"`
	Step       int                     `json:"step"`
	StepName   string                  `json:"stepName"`
	TotalSteps int                     `json:"totalSteps"`
	StepError  string                  `json:"stepError,omitempty"`
	Account    AccountView             `json:"account"`
	Businesses *BusinessCollectionView `json:"businesses,omitempty"`
}

type SetKindRequest struct {
	HasBusinesses bool `json:"hasBusinesses"`
}

// StepResponse reports the outcome of an advance or retreat attempt along
// with the resulting session state.
type StepResponse struct {
	Validation models.ValidationResult `json:"validation"`
	Session    SessionResponse         `json:"session"`
}

type SubmitResponse struct {
	Summary string                  `json:"summary"`
	Partial bool                    `json:"partial"`
	Report  models.SubmissionReport `json:"report"`
}

func newBusinessView(d *models.BusinessDraft) BusinessView {
	view := BusinessView{
		DraftID:         d.DraftID,
		UEN:             d.UEN,
		BusinessName:    d.BusinessName,
		Category:        d.Category,
		Description:     d.Description,
		Address:         d.Address,
		PostalCode:      d.PostalCode,
		Latitude:        d.Latitude,
		Longitude:       d.Longitude,
		AddressError:    d.AddressError,
		PhoneNumber:     d.PhoneNumber,
		BusinessEmail:   d.BusinessEmail,
		WebsiteLink:     d.WebsiteLink,
		SocialMediaLink: d.SocialMediaLink,
		HasImage:        d.HasImage(),
		ImageURL:        d.ImageURL,
		PriceTier:       d.PriceTier,
		Open24Hours:     d.Open24Hours,
		OpeningHours:    d.OpeningHours,
		OffersDelivery:  d.OffersDelivery,
		OffersPickup:    d.OffersPickup,
		PaymentOptions:  d.PaymentOptions,
	}
	if d.ImageFile != nil {
		view.ImageFileName = d.ImageFile.FileName
	}
	return view
}

func newSessionResponse(sess *onboarding.Session) SessionResponse {
	res := SessionResponse{
		ID:         sess.ID,
		Kind:       sess.Kind,
		Step:       sess.Step,
		StepName:   onboarding.StepName(sess.Step),
		TotalSteps: sess.TotalSteps(),
		StepError:  sess.StepError,
		Account: AccountView{
			FirstName: sess.Account.FirstName,
			LastName:  sess.Account.LastName,
			Email:     sess.Account.Email,
		},
	}
	if sess.HasBusinesses() && sess.Businesses != nil {
		coll := &BusinessCollectionView{
			Drafts: make([]BusinessView, 0, sess.Businesses.Len()),
			Cursor: sess.Businesses.Cursor,
		}
		for _, d := range sess.Businesses.Drafts {
			coll.Drafts = append(coll.Drafts, newBusinessView(d))
		}
		res.Businesses = coll
	}
	return res
}
