// Package registration stages self-service account requests and redeems their
// confirmation tokens.
package registration

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/mail"
	"github.com/splax/onboard/internal/repository"
	"github.com/splax/onboard/pkg/config"
	"github.com/splax/onboard/pkg/crypto"
)

var (
	ErrEmailExists             = errors.New("registration: email already registered")
	ErrServiceNowConfigMissing = errors.New("registration: servicenow not configured")
	ErrServiceNowCheckFailed   = errors.New("registration: servicenow email check failed")
	ErrEmailConfigMissing      = errors.New("registration: email not configured")
	ErrEmailSendFailed         = errors.New("registration: confirmation email not sent")
	ErrInternal                = errors.New("registration: internal error")
)

const (
	defaultTTL          = time.Hour
	defaultCleanupSlack = 5 * time.Minute
	tokenAttempts       = 5
)

// ContactDirectory answers whether an email already belongs to a contact.
type ContactDirectory interface {
	ContactExists(ctx context.Context, email string) (bool, error)
}

// ReverseGeocoder resolves coordinates to an address. Failures yield an empty Address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) domain.Address
}

// Provisioner creates the remote records for confirmed data.
type Provisioner interface {
	Run(ctx context.Context, data domain.RegistrationData) (domain.ProvisionResult, error)
}

// Deps groups the collaborators of a Service. Directory, Provisioner and Mailer are nil
// when their configuration group is missing; Geocoder and Mirror are optional.
type Deps struct {
	Store       repository.PendingRegistrationStore
	Directory   ContactDirectory
	Provisioner Provisioner
	Geocoder    ReverseGeocoder
	Mailer      mail.Sender
	Mirror      repository.ProvisionMirror
}

// Service implements registration intake and confirmation.
type Service struct {
	deps   Deps
	logger *slog.Logger
	cfg    config.APIConfig
	now    func() time.Time

	mu       sync.Mutex
	timers   map[string]*time.Timer
	inflight map[string]struct{}
	closed   bool
}

// New constructs a Service.
func New(deps Deps, logger *slog.Logger, cfg config.APIConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultTTL
	}
	if cfg.PendingCleanupSlack < 0 {
		cfg.PendingCleanupSlack = defaultCleanupSlack
	}
	return &Service{
		deps:     deps,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
		inflight: make(map[string]struct{}),
	}
}

// Staged describes a registration awaiting confirmation.
type Staged struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// RequestCreation validates in, checks the email is free upstream, stages the request and
// sends the confirmation email. A failed send leaves nothing staged.
func (s *Service) RequestCreation(ctx context.Context, in RegistrationInput) (*Staged, error) {
	data, err := Validate(in)
	if err != nil {
		return nil, err
	}
	if s.deps.Directory == nil {
		return nil, ErrServiceNowConfigMissing
	}
	exists, err := s.deps.Directory.ContactExists(ctx, data.Email)
	if err != nil {
		s.logger.Error("email availability check failed", "email", data.Email, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrServiceNowCheckFailed, err)
	}
	if exists {
		return nil, ErrEmailExists
	}
	if s.deps.Mailer == nil {
		return nil, ErrEmailConfigMissing
	}

	data.PasswordHash, err = crypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}
	if !data.Location.HasAddress() && s.deps.Geocoder != nil {
		addr := s.deps.Geocoder.Reverse(ctx, data.Location.Latitude, data.Location.Longitude)
		data.Location = data.Location.WithAddress(addr)
	}

	now := s.now().UTC()
	reg := domain.PendingRegistration{
		Data:      data,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.PendingTTL),
	}
	retention := s.cfg.PendingTTL + s.cfg.PendingCleanupSlack
	if err := s.stage(ctx, &reg, retention); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	s.scheduleCleanup(reg.Token, retention)

	if err := s.sendConfirmation(ctx, reg); err != nil {
		s.logger.Error("confirmation email failed", "email", data.Email, "error", err)
		s.discard(ctx, reg.Token)
		return nil, fmt.Errorf("%w: %w", ErrEmailSendFailed, err)
	}
	s.logger.Info("registration staged", "email", data.Email, "type", data.Type, "expires_at", reg.ExpiresAt)
	return &Staged{Token: reg.Token, Email: data.Email, ExpiresAt: reg.ExpiresAt}, nil
}

func (s *Service) stage(ctx context.Context, reg *domain.PendingRegistration, retention time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := randomToken()
		if err != nil {
			return err
		}
		reg.Token = token
		if err := s.deps.Store.Put(ctx, *reg, retention); err != nil {
			if errors.Is(err, repository.ErrInvalidArgument) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func (s *Service) sendConfirmation(ctx context.Context, reg domain.PendingRegistration) error {
	msg, err := mail.RenderConfirmation(reg.Data.Email, mail.ConfirmationData{
		AppName:   s.cfg.AppName,
		FirstName: reg.Data.FirstName,
		Link:      mail.ConfirmationLink(s.cfg.ConfirmationURL(), reg.Token),
		ValidFor:  s.cfg.PendingTTL,
	})
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return s.deps.Mailer.Send(ctx, msg)
}

// discard deletes a staged registration and its cleanup timer.
func (s *Service) discard(ctx context.Context, token string) {
	s.cancelCleanup(token)
	if err := s.deps.Store.Delete(ctx, token); err != nil {
		s.logger.Error("failed to delete pending registration", "error", err)
	}
}

func (s *Service) scheduleCleanup(token string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.timers[token] = time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.timers, token)
		s.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Store.Delete(ctx, token); err != nil {
			s.logger.Warn("pending registration cleanup failed", "error", err)
		}
	})
}

func (s *Service) cancelCleanup(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[token]; ok {
		t.Stop()
		delete(s.timers, token)
	}
}

// Sweep deletes every expired pending registration and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	removed, err := s.deps.Store.DeleteExpired(ctx, s.now())
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		s.logger.Info("expired registrations swept", "removed", removed)
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive interval disables it.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("periodic sweep failed", "error", err)
			}
		}
	}
}

// PendingCount reports how many registrations await confirmation.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.deps.Store.Count(ctx)
}

// Close stops outstanding cleanup timers. Durable stores expire entries on their own.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for token, t := range s.timers {
		t.Stop()
		delete(s.timers, token)
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate confirmation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
