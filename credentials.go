package session

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// emailPattern is deliberately loose: one non-space local part, one domain
// with a dot. The server does the real verification.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignInPayload carries the credentials for the signin endpoint.
type SignInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p SignInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&p.Password, validation.Required),
	)
}

// SignUpPayload carries the fields for account creation.
type SignUpPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&p.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&p.FullName, validation.Required, validation.Length(1, 200)),
	)
}

// JoinCompanyPayload attaches the account to an existing company by the
// company's contact email.
type JoinCompanyPayload struct {
	CompanyEmail string `json:"company_email"`
}

func (p JoinCompanyPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CompanyEmail, validation.Required, validation.Match(emailPattern)),
	)
}

// CompanyProfile is the onboarding submission. Asset URLs come from prior
// uploads and are optional; the server attaches the resulting company record
// to the user.
type CompanyProfile struct {
	CompanyName        string `json:"company_name"`
	OwnerName          string `json:"owner_name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Website            string `json:"website,omitempty"`
	Description        string `json:"description,omitempty"`
	LogoURL            string `json:"logo_url,omitempty"`
	PricingDocumentURL string `json:"pricing_document_url,omitempty"`
}

func (p CompanyProfile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CompanyName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.OwnerName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&p.Phone, validation.Required, validation.By(ValidatePhoneNumber)),
		validation.Field(&p.Website, is.URL),
	)
}

// ValidatePhoneNumber checks that the value parses as a plausible phone
// number. Numbers without a country code are read as US.
func ValidatePhoneNumber(value any) error {
	raw, ok := value.(string)
	if !ok {
		return goerrors.New("phone number must be a string", goerrors.CategoryValidation)
	}
	if raw == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(raw, "US")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "unable to parse phone number")
	}

	if !phonenumbers.IsPossibleNumber(parsed) {
		return goerrors.New("phone number is not possible", goerrors.CategoryValidation)
	}

	return nil
}
