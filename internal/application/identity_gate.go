package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// IdentityStore looks up and registers apartment logins.
type IdentityStore interface {
	FindIdentities(ctx context.Context, apartment string) ([]IdentityCredentials, error)
	CreateIdentity(ctx context.Context, identity IdentityCredentials) error
}

// Toggler performs a booking toggle on behalf of an authenticated resident.
type Toggler interface {
	Toggle(ctx context.Context, params ToggleParams) (ToggleResult, error)
}

// MinPINLength is the shortest PIN RegisterIdentity accepts.
const MinPINLength = 4

// IdentityGate authenticates residents by apartment and PIN.
type IdentityGate struct {
	identities IdentityStore
	booking    Toggler
	hashPIN    PINHasher
	verifyPIN  PINVerifier
	now        func() time.Time
	logger     *slog.Logger
}

// NewIdentityGate constructs an identity gate with the provided dependencies.
func NewIdentityGate(identities IdentityStore, booking Toggler, now func() time.Time) *IdentityGate {
	return NewIdentityGateWithLogger(identities, booking, nil, nil, now, nil)
}

// NewIdentityGateWithLogger constructs an identity gate with a specified logger.
// Nil hash and verify functions default to HashPIN and VerifyPIN.
func NewIdentityGateWithLogger(identities IdentityStore, booking Toggler, hash PINHasher, verify PINVerifier, now func() time.Time, logger *slog.Logger) *IdentityGate {
	if hash == nil {
		hash = HashPIN
	}
	if verify == nil {
		verify = VerifyPIN
	}
	if now == nil {
		now = time.Now
	}
	return &IdentityGate{
		identities: identities,
		booking:    booking,
		hashPIN:    hash,
		verifyPIN:  verify,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

func (g *IdentityGate) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, g.logger, "IdentityGate", operation, attrs...)
}

// Authenticate resolves apartment to an identity when pin matches. Every
// failure is an *AuthError; the cause is logged, never returned in the message.
func (g *IdentityGate) Authenticate(ctx context.Context, apartment, pin string) (identity Identity, err error) {
	if g == nil {
		err = fmt.Errorf("IdentityGate is nil")
		return
	}

	apartment = strings.TrimSpace(apartment)
	logger := g.loggerWith(ctx, "Authenticate", "apartment", apartment)
	defer func() {
		if err != nil {
			var aErr *AuthError
			reason := ""
			if errors.As(err, &aErr) {
				reason = aErr.Reason
			}
			logger.WarnContext(ctx, "authentication failed",
				"error", err,
				"error_kind", ErrorKind(err),
				"reason", reason,
				"cause", errors.Unwrap(err),
			)
			return
		}
		logger.InfoContext(ctx, "authentication succeeded")
	}()

	if apartment == "" || pin == "" {
		err = &AuthError{Reason: authReasonBlankInput}
		return
	}
	if g.identities == nil {
		err = &AuthError{Reason: authReasonStore, Err: fmt.Errorf("identity store not configured")}
		return
	}

	matches, lookupErr := g.identities.FindIdentities(ctx, apartment)
	if lookupErr != nil {
		err = &AuthError{Reason: authReasonStore, Err: lookupErr}
		return
	}

	switch len(matches) {
	case 0:
		err = &AuthError{Reason: authReasonUnknownApartment}
		return
	case 1:
	default:
		err = &AuthError{Reason: authReasonAmbiguous, Err: fmt.Errorf("%d identities for apartment", len(matches))}
		return
	}

	if verifyErr := g.verifyPIN(matches[0].PINHash, pin); verifyErr != nil {
		err = &AuthError{Reason: authReasonPINMismatch, Err: verifyErr}
		return
	}

	identity = matches[0].Identity
	return
}

// AuthenticateAndToggle runs the login form flow: authenticate, then toggle
// the slot as the authenticated apartment. Toggle is not attempted when
// authentication fails.
func (g *IdentityGate) AuthenticateAndToggle(ctx context.Context, params LoginAndToggleParams) (ToggleResult, error) {
	if g == nil {
		return ToggleResult{}, fmt.Errorf("IdentityGate is nil")
	}

	identity, err := g.Authenticate(ctx, params.Apartment, params.PIN)
	if err != nil {
		return ToggleResult{}, err
	}
	if g.booking == nil {
		return ToggleResult{}, fmt.Errorf("booking service not configured")
	}

	return g.booking.Toggle(ctx, ToggleParams{
		Slot:     params.Slot,
		Owner:    identity.Apartment,
		Notifier: params.Notifier,
	})
}

// RegisterIdentity stores a new apartment login with a hashed PIN.
func (g *IdentityGate) RegisterIdentity(ctx context.Context, apartment, pin string) (identity Identity, err error) {
	if g == nil {
		err = fmt.Errorf("IdentityGate is nil")
		return
	}

	apartment = strings.TrimSpace(apartment)
	logger := g.loggerWith(ctx, "RegisterIdentity", "apartment", apartment)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register identity", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "identity registered")
	}()

	vErr := &ValidationError{}
	if apartment == "" {
		vErr.add("apartment", "apartment is required")
	}
	if len(strings.TrimSpace(pin)) < MinPINLength {
		vErr.add("pin", fmt.Sprintf("pin must be at least %d characters", MinPINLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if g.identities == nil {
		err = fmt.Errorf("identity store not configured")
		return
	}

	var hash string
	hash, err = g.hashPIN(pin)
	if err != nil {
		return
	}

	identity = Identity{Apartment: apartment, CreatedAt: g.now()}
	err = g.identities.CreateIdentity(ctx, IdentityCredentials{Identity: identity, PINHash: hash})
	if err != nil {
		identity = Identity{}
	}
	return
}
