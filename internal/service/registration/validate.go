package registration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/geocode"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
	// bcrypt refuses longer input.
	maxPasswordBytes = 72
	minPhoneDigits    = 10
	maxPhoneDigits    = 20
)

var (
	emailPattern = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-().]+$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// LocationInput is the location block of an intake request.
type LocationInput struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Country    string   `json:"country"`
	PostalCode string   `json:"postalCode"`
}

// RegistrationInput is the raw intake payload.
type RegistrationInput struct {
	Type        string         `json:"type"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Email       string         `json:"email"`
	MobilePhone string         `json:"mobile_phone"`
	Password    string         `json:"password"`
	CompanyName string         `json:"company_name"`
	JobTitle    string         `json:"job_title"`
	Location    *LocationInput `json:"location"`

	// decodeErrors holds fields whose JSON value had the wrong type.
	decodeErrors map[string]string
}

// UnmarshalJSON decodes field by field so a value of the wrong JSON type
// surfaces from Validate as a field error instead of rejecting the body.
func (in *RegistrationInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*in = RegistrationInput{}
	text := []struct {
		key string
		dst *string
	}{
		{"type", &in.Type},
		{"first_name", &in.FirstName},
		{"last_name", &in.LastName},
		{"email", &in.Email},
		{"mobile_phone", &in.MobilePhone},
		{"password", &in.Password},
		{"company_name", &in.CompanyName},
		{"job_title", &in.JobTitle},
	}
	for _, f := range text {
		value, ok := raw[f.key]
		if !ok || isJSONNull(value) {
			continue
		}
		if err := json.Unmarshal(value, f.dst); err != nil {
			in.decodeError(f.key, "Must be a string")
		}
	}
	if value, ok := raw["location"]; ok && !isJSONNull(value) {
		var loc LocationInput
		if err := json.Unmarshal(value, &loc); err != nil {
			in.decodeError("location", "Location coordinates must be numbers")
		} else {
			in.Location = &loc
		}
	}
	return nil
}

func (in *RegistrationInput) decodeError(field, reason string) {
	if in.decodeErrors == nil {
		in.decodeErrors = make(map[string]string)
	}
	in.decodeErrors[field] = reason
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// ValidationError lists every invalid field with a human readable reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("registration: invalid fields: %s", strings.Join(keys, ", "))
}

// Validate checks every field of in and returns the normalised data without a password hash.
// All failures are collected; it never stops at the first one.
func Validate(in RegistrationInput) (domain.RegistrationData, error) {
	fields := make(map[string]string)

	accountType := strings.ToLower(strings.TrimSpace(in.Type))
	if accountType == "" {
		accountType = domain.AccountTypeIndividual
	}
	if accountType != domain.AccountTypeIndividual && accountType != domain.AccountTypeCompany {
		fields["type"] = "Account type must be individual or company"
	}

	firstName := strings.TrimSpace(in.FirstName)
	if utf8.RuneCountInString(firstName) < minNameLength {
		fields["first_name"] = "First name must be at least 2 characters"
	}
	lastName := strings.TrimSpace(in.LastName)
	if utf8.RuneCountInString(lastName) < minNameLength {
		fields["last_name"] = "Last name must be at least 2 characters"
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !emailPattern.MatchString(email) {
		fields["email"] = "A valid email address is required"
	}

	phone := strings.TrimSpace(in.MobilePhone)
	digits := len(nonDigits.ReplaceAllString(phone, ""))
	if !phonePattern.MatchString(phone) || digits < minPhoneDigits || digits > maxPhoneDigits {
		fields["mobile_phone"] = "Phone number must contain 10 to 20 digits"
	}

	switch {
	case utf8.RuneCountInString(in.Password) < minPasswordLength:
		fields["password"] = "Password must be at least 6 characters"
	case len(in.Password) > maxPasswordBytes:
		fields["password"] = "Password must be at most 72 bytes"
	}

	companyName := strings.TrimSpace(in.CompanyName)
	if accountType == domain.AccountTypeCompany && utf8.RuneCountInString(companyName) < minNameLength {
		fields["company_name"] = "Company name must be at least 2 characters"
	}

	var loc domain.Location
	switch {
	case in.Location == nil || in.Location.Latitude == nil || in.Location.Longitude == nil:
		fields["location"] = "Location coordinates are required"
	case geocode.ValidateCoordinates(*in.Location.Latitude, *in.Location.Longitude) != nil:
		fields["location"] = "Location coordinates are out of range"
	default:
		loc = domain.Location{
			Latitude:   *in.Location.Latitude,
			Longitude:  *in.Location.Longitude,
			Address:    strings.TrimSpace(in.Location.Address),
			City:       strings.TrimSpace(in.Location.City),
			State:      strings.TrimSpace(in.Location.State),
			Country:    strings.TrimSpace(in.Location.Country),
			PostalCode: strings.TrimSpace(in.Location.PostalCode),
		}
	}

	for field, reason := range in.decodeErrors {
		fields[field] = reason
	}

	if len(fields) > 0 {
		return domain.RegistrationData{}, &ValidationError{Fields: fields}
	}

	data := domain.RegistrationData{
		Type:        accountType,
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		MobilePhone: phone,
		Location:    loc,
	}
	if accountType == domain.AccountTypeCompany {
		data.CompanyName = companyName
		data.JobTitle = strings.TrimSpace(in.JobTitle)
	}
	return data, nil
}
