package domain

import "time"

// Account types accepted at intake.
const (
	AccountTypeIndividual = "individual"
	AccountTypeCompany    = "company"
)

// Location is the coordinate plus postal address captured with a registration.
// Address fields stay empty when geocoding could not resolve them.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Country    string  `json:"country"`
	PostalCode string  `json:"postalCode"`
}

// HasAddress reports whether any postal field is populated.
func (l Location) HasAddress() bool {
	return l.Address != "" || l.City != "" || l.State != "" || l.Country != "" || l.PostalCode != ""
}

// WithAddress returns a copy of l carrying the fields of addr.
func (l Location) WithAddress(addr Address) Location {
	l.Address = addr.Address
	l.City = addr.City
	l.State = addr.State
	l.Country = addr.Country
	l.PostalCode = addr.PostalCode
	return l
}

// RegistrationData is the validated payload staged until confirmation.
type RegistrationData struct {
	Type         string   `json:"type"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	MobilePhone  string   `json:"mobile_phone"`
	PasswordHash string   `json:"password_hash"`
	CompanyName  string   `json:"company_name,omitempty"`
	JobTitle     string   `json:"job_title,omitempty"`
	Location     Location `json:"location"`
}

// IsCompany reports whether the registration is for a business account.
func (d RegistrationData) IsCompany() bool {
	return d.Type == AccountTypeCompany
}

// PendingRegistration is a staged account request awaiting confirmation.
type PendingRegistration struct {
	Token     string           `json:"token"`
	Data      RegistrationData `json:"data"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether the registration is expired relative to now.
func (p PendingRegistration) Expired(now time.Time) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return now.UTC().After(p.ExpiresAt.UTC())
}
