package provision

import (
	"strconv"
	"strings"

	"github.com/splax/onboard/internal/domain"
)

// Sentinels written when the geocoder left a location field blank.
const (
	UnknownValue      = "Unknown"
	UnknownPostalCode = "00000"
)

// Geocode accuracy flags for cmn_location.
const (
	AccuracyRooftop     = "ROOFTOP"
	AccuracyApproximate = "APPROXIMATE"
)

// AccountName is the company name, or "<first> <last>'s" for individuals.
func AccountName(d domain.RegistrationData) string {
	if d.IsCompany() && strings.TrimSpace(d.CompanyName) != "" {
		return strings.TrimSpace(d.CompanyName)
	}
	return strings.TrimSpace(d.FirstName+" "+d.LastName) + "'s"
}

// AccountFields builds the customer_account payload.
func AccountFields(d domain.RegistrationData) map[string]string {
	accountType := "individual"
	if d.IsCompany() {
		accountType = "business"
	}
	return map[string]string{
		"name":     AccountName(d),
		"type":     accountType,
		"phone":    d.MobilePhone,
		"email":    d.Email,
		"customer": "true",
	}
}

// ContactFields builds the customer_contact payload linked to accountID.
func ContactFields(d domain.RegistrationData, accountID string) map[string]string {
	fields := map[string]string{
		"account":            accountID,
		"first_name":         d.FirstName,
		"last_name":          d.LastName,
		"email":              d.Email,
		"mobile_phone":       d.MobilePhone,
		"is_primary_contact": "true",
		"active":             "true",
		"u_password_hash":    d.PasswordHash,
	}
	if d.IsCompany() && strings.TrimSpace(d.JobTitle) != "" {
		fields["title"] = strings.TrimSpace(d.JobTitle)
	}
	return fields
}

// LocationFields builds the cmn_location payload back-referencing accountID.
func LocationFields(d domain.RegistrationData, accountID string) map[string]string {
	loc := d.Location
	accuracy := AccuracyApproximate
	if strings.TrimSpace(loc.Address) != "" {
		accuracy = AccuracyRooftop
	}
	return map[string]string{
		"name":               AccountName(d) + " - Primary",
		"account":            accountID,
		"street":             orDefault(loc.Address, UnknownValue),
		"city":               orDefault(loc.City, UnknownValue),
		"state":              orDefault(loc.State, UnknownValue),
		"country":            orDefault(loc.Country, UnknownValue),
		"zip":                orDefault(loc.PostalCode, UnknownPostalCode),
		"latitude":           strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		"longitude":          strconv.FormatFloat(loc.Longitude, 'f', -1, 64),
		"u_geocode_accuracy": accuracy,
	}
}

// RelationshipFields links the account and location as the primary address.
func RelationshipFields(accountID, locationID string) map[string]string {
	return map[string]string{
		"account":    accountID,
		"location":   locationID,
		"is_primary": "true",
	}
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
