package session

import (
	"time"
)

// User is the account record as the remote API reports it.
type User struct {
	ID        string     `json:"id,omitempty"`
	Email     string     `json:"email,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	CompanyID string     `json:"company_id,omitempty"`
	Role      string     `json:"role,omitempty"`
	Company   *Company   `json:"company,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Company is the profile attached to a user when onboarding completes.
type Company struct {
	ID                 string     `json:"id,omitempty"`
	CompanyName        string     `json:"company_name,omitempty"`
	OwnerName          string     `json:"owner_name,omitempty"`
	Email              string     `json:"email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Website            string     `json:"website,omitempty"`
	Description        string     `json:"description,omitempty"`
	LogoURL            string     `json:"logo_url,omitempty"`
	PricingDocumentURL string     `json:"pricing_document_url,omitempty"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// HasCompany is the canonical onboarding signal: presence of the company
// sub-record. CompanyID is carried as data but never consulted.
func (u *User) HasCompany() bool {
	return u != nil && u.Company != nil
}
