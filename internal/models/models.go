package models

import (
	"fmt"

	"github.com/google/uuid"
)

// PriceTier buckets a business into a rough price range.
type PriceTier string

const (
	PriceTierLow    PriceTier = "low"
	PriceTierMedium PriceTier = "medium"
	PriceTierHigh   PriceTier = "high"
)

func (p PriceTier) Valid() bool {
	switch p {
	case PriceTierLow, PriceTierMedium, PriceTierHigh:
		return true
	}
	return false
}

// Weekdays is the fixed display order for opening hours.
var Weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayHours is the open/close window for a single weekday. Times are
// zero-padded "HH:MM" strings so they compare lexically.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// OpeningHours holds one DayHours per weekday.
type OpeningHours struct {
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
	Sunday    DayHours `json:"sunday"`
}

// NamedDayHours pairs a weekday name with its hours, in display order.
type NamedDayHours struct {
	Day   string
	Hours DayHours
}

// Days returns the week in fixed display order.
func (o *OpeningHours) Days() []NamedDayHours {
	return []NamedDayHours{
		{Weekdays[0], o.Monday},
		{Weekdays[1], o.Tuesday},
		{Weekdays[2], o.Wednesday},
		{Weekdays[3], o.Thursday},
		{Weekdays[4], o.Friday},
		{Weekdays[5], o.Saturday},
		{Weekdays[6], o.Sunday},
	}
}

// FullWeek returns hours with the given window applied to every day.
func FullWeek(day DayHours) OpeningHours {
	return OpeningHours{
		Monday: day, Tuesday: day, Wednesday: day, Thursday: day,
		Friday: day, Saturday: day, Sunday: day,
	}
}

// DefaultOpeningHours is the factory default for a fresh draft: 9 to 5, every day.
func DefaultOpeningHours() OpeningHours {
	return FullWeek(DayHours{Open: "09:00", Close: "17:00"})
}

// AllDayHours is the logical override for businesses flagged open 24 hours.
func AllDayHours() OpeningHours {
	return FullWeek(DayHours{Open: "00:00", Close: "23:59"})
}

// AccountDraft is the single user identity payload collected on step one.
// It lives only for the duration of the wizard session.
type AccountDraft struct {
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

// PendingImage is an image the user attached but that has not been uploaded
// to blob storage yet. Bytes are held in the session until submission.
type PendingImage struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// BusinessDraft is a single business's full registration payload.
type BusinessDraft struct {
	DraftID         string        `json:"draftId"`
	UEN             string        `json:"uen"`
	BusinessName    string        `json:"businessName"`
	Category        string        `json:"category"`
	Description     string        `json:"description"`
	Address         string        `json:"address"`
	PostalCode      string        `json:"postalCode"`
	Latitude        *float64      `json:"latitude,omitempty"`
	Longitude       *float64      `json:"longitude,omitempty"`
	AddressError    string        `json:"addressError,omitempty"`
	PhoneNumber     string        `json:"phoneNumber"`
	BusinessEmail   string        `json:"businessEmail"`
	WebsiteLink     string        `json:"websiteLink"`
	SocialMediaLink string        `json:"socialMediaLink"`
	ImageFile       *PendingImage `json:"imageFile,omitempty"`
	ImageURL        string        `json:"imageUrl,omitempty"`
	PriceTier       PriceTier     `json:"priceTier"`
	Open24Hours     bool          `json:"open24Hours"`
	OpeningHours    OpeningHours  `json:"openingHours"`
	OffersDelivery  bool          `json:"offersDelivery"`
	OffersPickup    bool          `json:"offersPickup"`
	PaymentOptions  []string      `json:"paymentOptions"`
}

// NewBusinessDraft produces a draft with sane defaults and a fresh ID.
func NewBusinessDraft() *BusinessDraft {
	return &BusinessDraft{
		DraftID:        uuid.NewString(),
		OpeningHours:   DefaultOpeningHours(),
		PaymentOptions: []string{},
	}
}

// HasImage reports whether the draft carries either a pending file or an
// already resolved storage URL.
func (d *BusinessDraft) HasImage() bool {
	return d.ImageFile != nil || d.ImageURL != ""
}

// EffectiveOpeningHours applies the 24-hour override when set.
func (d *BusinessDraft) EffectiveOpeningHours() OpeningHours {
	if d.Open24Hours {
		return AllDayHours()
	}
	return d.OpeningHours
}

// AccountDraftPatch is a partial update applied to the account draft.
type AccountDraftPatch struct {
	FirstName            *string `json:"firstName,omitempty"`
	LastName             *string `json:"lastName,omitempty"`
	Email                *string `json:"email,omitempty"`
	Password             *string `json:"password,omitempty"`
	PasswordConfirmation *string `json:"passwordConfirmation,omitempty"`
}

func (p *AccountDraftPatch) Apply(a *AccountDraft) {
	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Password != nil {
		a.Password = *p.Password
	}
	if p.PasswordConfirmation != nil {
		a.PasswordConfirmation = *p.PasswordConfirmation
	}
}

// BusinessDraftPatch is a partial update merged into the draft at the
// collection cursor. Absent fields leave the draft untouched.
type BusinessDraftPatch struct {
	UEN             *string       `json:"uen,omitempty"`
	BusinessName    *string       `json:"businessName,omitempty"`
	Category        *string       `json:"category,omitempty"`
	Description     *string       `json:"description,omitempty"`
	PostalCode      *string       `json:"postalCode,omitempty"`
	PhoneNumber     *string       `json:"phoneNumber,omitempty"`
	BusinessEmail   *string       `json:"businessEmail,omitempty"`
	WebsiteLink     *string       `json:"websiteLink,omitempty"`
	SocialMediaLink *string       `json:"socialMediaLink,omitempty"`
	PriceTier       *PriceTier    `json:"priceTier,omitempty"`
	Open24Hours     *bool         `json:"open24Hours,omitempty"`
	OpeningHours    *OpeningHours `json:"openingHours,omitempty"`
	OffersDelivery  *bool         `json:"offersDelivery,omitempty"`
	OffersPickup    *bool         `json:"offersPickup,omitempty"`
	PaymentOptions  *[]string     `json:"paymentOptions,omitempty"`
}

func (p *BusinessDraftPatch) Apply(d *BusinessDraft) {
	if p.UEN != nil {
		d.UEN = *p.UEN
	}
	if p.BusinessName != nil {
		d.BusinessName = *p.BusinessName
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.PostalCode != nil {
		d.PostalCode = *p.PostalCode
	}
	if p.PhoneNumber != nil {
		d.PhoneNumber = *p.PhoneNumber
	}
	if p.BusinessEmail != nil {
		d.BusinessEmail = *p.BusinessEmail
	}
	if p.WebsiteLink != nil {
		d.WebsiteLink = *p.WebsiteLink
	}
	if p.SocialMediaLink != nil {
		d.SocialMediaLink = *p.SocialMediaLink
	}
	if p.PriceTier != nil {
		d.PriceTier = *p.PriceTier
	}
	if p.Open24Hours != nil {
		d.Open24Hours = *p.Open24Hours
	}
	if p.OpeningHours != nil {
		d.OpeningHours = *p.OpeningHours
	}
	if p.OffersDelivery != nil {
		d.OffersDelivery = *p.OffersDelivery
	}
	if p.OffersPickup != nil {
		d.OffersPickup = *p.OffersPickup
	}
	if p.PaymentOptions != nil {
		d.PaymentOptions = *p.PaymentOptions
	}
}

// ResolvedAddress is the outcome of chaining postal code lookup and
// coordinate geocoding. Coordinates may be absent when geocoding failed.
type ResolvedAddress struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ValidationResult is the outcome of validating the step being left.
// Never persisted; recomputed on every transition attempt.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// UploadTicket is the ephemeral grant for a single direct-to-storage upload.
// ResolvedURL is the serving prefix the backend expects the durable URL to
// start with.
type UploadTicket struct {
	UploadTarget string `json:"uploadTarget"`
	ResolvedURL  string `json:"resolvedUrl"`
}

// BusinessFailure names one business whose registration attempt failed.
type BusinessFailure struct {
	Index        int    `json:"index"`
	BusinessName string `json:"businessName"`
	Reason       string `json:"reason"`
}

// SubmissionReport aggregates the outcome of a whole session submission.
// The account exists regardless of business outcomes.
type SubmissionReport struct {
	AccountID  string            `json:"accountId"`
	Attempted  int               `json:"attempted"`
	Registered int               `json:"registered"`
	Failures   []BusinessFailure `json:"failures,omitempty"`
}

// Partial reports a degraded success: the account was created but at least
// one business registration failed.
func (r *SubmissionReport) Partial() bool {
	return r.Attempted > 0 && r.Registered < r.Attempted
}

func (r *SubmissionReport) Summary() string {
	if r.Attempted == 0 {
		return "registered user"
	}
	return fmt.Sprintf("registered user + %d/%d businesses", r.Registered, r.Attempted)
}
