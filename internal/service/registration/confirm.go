package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/repository"
)

var (
	ErrTokenMissing    = errors.New("registration: confirmation token missing")
	ErrTokenInvalid    = errors.New("registration: confirmation token invalid")
	ErrTokenExpired    = errors.New("registration: confirmation token expired")
	ErrProvisionFailed = errors.New("registration: provisioning failed")
)

const mirrorTimeout = 5 * time.Second

// ConfirmCreation redeems token and provisions the staged account.
//
// Unknown tokens change nothing. Expired tokens are deleted. A failed provisioning step
// keeps the registration so the link can be retried until it expires. Only a full
// success consumes the token.
func (s *Service) ConfirmCreation(ctx context.Context, token string) (*domain.ProvisionResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMissing
	}
	if !s.claim(token) {
		return nil, ErrTokenInvalid
	}
	defer s.release(token)

	reg, err := s.deps.Store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if reg.Expired(s.now()) {
		s.discard(ctx, token)
		s.logger.Info("expired confirmation token redeemed", "email", reg.Data.Email)
		return nil, ErrTokenExpired
	}
	if s.deps.Provisioner == nil {
		return nil, ErrServiceNowConfigMissing
	}

	result, err := s.deps.Provisioner.Run(ctx, reg.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}
	s.discard(ctx, token)
	s.mirror(ctx, result)
	return &result, nil
}

func (s *Service) mirror(ctx context.Context, result domain.ProvisionResult) {
	if s.deps.Mirror == nil {
		return
	}
	mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := s.deps.Mirror.RecordProvisioned(mctx, result); err != nil {
		s.logger.Warn("provisioning mirror write failed", "account_sys_id", result.AccountID, "error", err)
	}
}

// claim marks token as being confirmed. A second concurrent confirmation is refused.
func (s *Service) claim(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[token]; busy {
		return false
	}
	s.inflight[token] = struct{}{}
	return true
}

func (s *Service) release(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, token)
}
