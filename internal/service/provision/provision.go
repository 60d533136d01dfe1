// Package provision creates the ServiceNow records backing a confirmed registration.
//
// The sequence is fixed: Account, Contact, Location, Account-Location relationship.
// Every step after the first embeds identifiers returned by earlier steps, so the
// steps run strictly in order and each remote call is attempted exactly once.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/servicenow"
)

// Remote is the subset of the ServiceNow client the provisioner needs.
type Remote interface {
	Create(ctx context.Context, table string, fields any) (string, error)
	Delete(ctx context.Context, table, sysID string) error
}

// PartialFailurePolicy decides what happens to records already created when a later step fails.
type PartialFailurePolicy string

const (
	// LeaveOrphans keeps earlier records in place. They are fixed up manually.
	LeaveOrphans PartialFailurePolicy = "leave_orphans"
	// Compensate deletes earlier records in reverse order, best-effort.
	Compensate PartialFailurePolicy = "compensate"
)

// ParsePolicy maps a configuration string to a policy.
func ParsePolicy(value string) (PartialFailurePolicy, error) {
	switch PartialFailurePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", LeaveOrphans:
		return LeaveOrphans, nil
	case Compensate:
		return Compensate, nil
	default:
		return "", fmt.Errorf("provision: unknown partial failure policy %q", value)
	}
}

// StepError reports which step aborted the sequence.
type StepError struct {
	Step domain.ProvisionStep
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Provisioner runs the creation sequence.
type Provisioner struct {
	remote  Remote
	policy  PartialFailurePolicy
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// New constructs a Provisioner. metrics may be nil.
func New(remote Remote, policy PartialFailurePolicy, logger *slog.Logger, metrics *Metrics) *Provisioner {
	if policy == "" {
		policy = LeaveOrphans
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{remote: remote, policy: policy, logger: logger, metrics: metrics, now: time.Now}
}

// Policy returns the configured partial failure policy.
func (p *Provisioner) Policy() PartialFailurePolicy {
	return p.policy
}

type created struct {
	table string
	id    string
}

type step struct {
	name  domain.ProvisionStep
	table string
	build func(data domain.RegistrationData, res *domain.ProvisionResult) map[string]string
	store func(res *domain.ProvisionResult, id string)
}

var sequence = []step{
	{
		name:  domain.StepCreateAccount,
		table: servicenow.TableAccount,
		build: func(d domain.RegistrationData, _ *domain.ProvisionResult) map[string]string { return AccountFields(d) },
		store: func(res *domain.ProvisionResult, id string) { res.AccountID = id },
	},
	{
		name:  domain.StepCreateContact,
		table: servicenow.TableContact,
		build: func(d domain.RegistrationData, res *domain.ProvisionResult) map[string]string {
			return ContactFields(d, res.AccountID)
		},
		store: func(res *domain.ProvisionResult, id string) { res.ContactID = id },
	},
	{
		name:  domain.StepCreateLocation,
		table: servicenow.TableLocation,
		build: func(d domain.RegistrationData, res *domain.ProvisionResult) map[string]string {
			return LocationFields(d, res.AccountID)
		},
		store: func(res *domain.ProvisionResult, id string) { res.LocationID = id },
	},
	{
		name:  domain.StepLinkRelationship,
		table: servicenow.TableRelationship,
		build: func(_ domain.RegistrationData, res *domain.ProvisionResult) map[string]string {
			return RelationshipFields(res.AccountID, res.LocationID)
		},
		store: func(res *domain.ProvisionResult, id string) { res.RelationshipID = id },
	},
}

// Run executes every step in order and stops at the first failure.
func (p *Provisioner) Run(ctx context.Context, data domain.RegistrationData) (domain.ProvisionResult, error) {
	result := domain.ProvisionResult{Email: data.Email, AccountType: data.Type}
	done := make([]created, 0, len(sequence))

	for _, st := range sequence {
		id, err := p.remote.Create(ctx, st.table, st.build(data, &result))
		if err == nil && strings.TrimSpace(id) == "" {
			err = servicenow.ErrMissingSysID
		}
		if err != nil {
			p.metrics.observe(st.name, "failed")
			p.logger.Error("provisioning step failed",
				"step", st.name,
				"email", data.Email,
				"created", len(done),
				"policy", p.policy,
				"error", err,
			)
			if p.policy == Compensate {
				p.compensate(ctx, done)
			}
			return result, &StepError{Step: st.name, Err: err}
		}
		p.metrics.observe(st.name, "ok")
		st.store(&result, id)
		done = append(done, created{table: st.table, id: id})
		p.logger.Debug("provisioning step completed", "step", st.name, "sys_id", id)
	}

	result.CompletedAt = p.now().UTC()
	p.logger.Info("account provisioned",
		"email", data.Email,
		"account_sys_id", result.AccountID,
		"location_sys_id", result.LocationID,
	)
	return result, nil
}

func (p *Provisioner) compensate(ctx context.Context, done []created) {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		rec := done[i]
		if err := p.remote.Delete(ctx, rec.table, rec.id); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", rec.table, rec.id, err))
			continue
		}
		p.metrics.observeCompensation(rec.table)
	}
	if err := errors.Join(errs...); err != nil {
		p.logger.Error("compensating delete failed", "error", err)
	}
}
