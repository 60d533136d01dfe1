package domain

import "time"

// ProvisionStep names one remote write of the provisioning sequence.
type ProvisionStep string

// Steps in execution order.
const (
	StepCreateAccount    ProvisionStep = "create_account"
	StepCreateContact    ProvisionStep = "create_contact"
	StepCreateLocation   ProvisionStep = "create_location"
	StepLinkRelationship ProvisionStep = "link_relationship"
)

// ProvisionResult holds the identifiers returned by ServiceNow for a completed registration.
type ProvisionResult struct {
	AccountID      string    `json:"account_sys_id" bson:"account_sys_id"`
	ContactID      string    `json:"contact_sys_id" bson:"contact_sys_id"`
	LocationID     string    `json:"location_sys_id" bson:"location_sys_id"`
	RelationshipID string    `json:"relationship_sys_id" bson:"relationship_sys_id"`
	Email          string    `json:"email" bson:"email"`
	AccountType    string    `json:"account_type" bson:"account_type"`
	CompletedAt    time.Time `json:"completed_at" bson:"completed_at"`
}
