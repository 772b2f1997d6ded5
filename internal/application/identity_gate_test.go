package application

import (
	"context"
	"errors"
	"testing"
)

type identityStoreStub struct {
	identities map[string][]IdentityCredentials
	findErr    error
	createErr  error
	created    []IdentityCredentials
	lookups    int
}

func (s *identityStoreStub) FindIdentities(ctx context.Context, apartment string) ([]IdentityCredentials, error) {
	s.lookups++
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.identities[apartment], nil
}

func (s *identityStoreStub) CreateIdentity(ctx context.Context, identity IdentityCredentials) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, identity)
	return nil
}

type togglerStub struct {
	calls  []ToggleParams
	result ToggleResult
	err    error
}

func (t *togglerStub) Toggle(ctx context.Context, params ToggleParams) (ToggleResult, error) {
	t.calls = append(t.calls, params)
	return t.result, t.err
}

// plainHash keeps gate tests independent of argon2 cost.
func plainHash(pin string) (string, error) { return "plain:" + pin, nil }

func plainVerify(encoded, pin string) error {
	if encoded != "plain:"+pin {
		return ErrPINMismatch
	}
	return nil
}

func newTestGate(store IdentityStore, toggler Toggler) *IdentityGate {
	return NewIdentityGateWithLogger(store, toggler, plainHash, plainVerify, fixedNow(), nil)
}

func residentStore() *identityStoreStub {
	return &identityStoreStub{identities: map[string][]IdentityCredentials{
		"A101": {{Identity: Identity{Apartment: "A101"}, PINHash: "plain:1234"}},
	}}
}

func TestIdentityGate_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		gate := newTestGate(residentStore(), nil)

		identity, err := gate.Authenticate(ctx, " A101 ", "1234")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if identity.Apartment != "A101" {
			t.Fatalf("unexpected identity %+v", identity)
		}
	})

	failures := []struct {
		name      string
		store     *identityStoreStub
		apartment string
		pin       string
		reason    string
		lookups   int
	}{
		{"blank apartment", residentStore(), "  ", "1234", authReasonBlankInput, 0},
		{"blank pin", residentStore(), "A101", "", authReasonBlankInput, 0},
		{"unknown apartment", residentStore(), "Z999", "1234", authReasonUnknownApartment, 1},
		{"wrong pin", residentStore(), "A101", "9999", authReasonPINMismatch, 1},
		{"case differs", residentStore(), "a101", "1234", authReasonUnknownApartment, 1},
		{"store failure", &identityStoreStub{findErr: errors.New("offline")}, "A101", "1234", authReasonStore, 1},
		{"ambiguous rows", &identityStoreStub{identities: map[string][]IdentityCredentials{
			"A101": {
				{Identity: Identity{Apartment: "A101"}, PINHash: "plain:1234"},
				{Identity: Identity{Apartment: "A101"}, PINHash: "plain:1234"},
			},
		}}, "A101", "1234", authReasonAmbiguous, 1},
	}

	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			gate := newTestGate(tc.store, nil)

			identity, err := gate.Authenticate(ctx, tc.apartment, tc.pin)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			var aErr *AuthError
			if !errors.As(err, &aErr) || aErr.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %+v", tc.reason, aErr)
			}
			if err.Error() != ErrInvalidCredentials.Error() {
				t.Fatalf("message must not reveal the cause, got %q", err.Error())
			}
			if identity != (Identity{}) {
				t.Fatalf("expected zero identity, got %+v", identity)
			}
			if tc.store.lookups != tc.lookups {
				t.Fatalf("expected %d lookups, got %d", tc.lookups, tc.store.lookups)
			}
		})
	}
}

func TestIdentityGate_AuthenticateAndToggle(t *testing.T) {
	ctx := context.Background()

	t.Run("toggles as the authenticated apartment", func(t *testing.T) {
		toggler := &togglerStub{result: ToggleResult{Outcome: OutcomeCreated}}
		gate := newTestGate(residentStore(), toggler)
		signal := NewChangeSignal()

		result, err := gate.AuthenticateAndToggle(ctx, LoginAndToggleParams{
			Apartment: "A101",
			PIN:       "1234",
			Slot:      testSlot,
			Notifier:  signal,
		})
		if err != nil {
			t.Fatalf("AuthenticateAndToggle failed: %v", err)
		}
		if result.Outcome != OutcomeCreated {
			t.Fatalf("unexpected result %+v", result)
		}
		if len(toggler.calls) != 1 {
			t.Fatalf("expected one toggle, got %d", len(toggler.calls))
		}
		call := toggler.calls[0]
		if call.Owner != "A101" || call.Slot != testSlot || call.Notifier != Notifier(signal) {
			t.Fatalf("unexpected toggle params %+v", call)
		}
	})

	t.Run("failed login never toggles", func(t *testing.T) {
		toggler := &togglerStub{}
		gate := newTestGate(residentStore(), toggler)

		_, err := gate.AuthenticateAndToggle(ctx, LoginAndToggleParams{Apartment: "A101", PIN: "0000", Slot: testSlot})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if len(toggler.calls) != 0 {
			t.Fatalf("toggle must not run after failed authentication")
		}
	})

	t.Run("toggle errors pass through", func(t *testing.T) {
		cause := &LookupError{Op: "find_reservations", Err: errors.New("offline")}
		gate := newTestGate(residentStore(), &togglerStub{err: cause})

		_, err := gate.AuthenticateAndToggle(ctx, LoginAndToggleParams{Apartment: "A101", PIN: "1234", Slot: testSlot})
		if !errors.Is(err, cause) {
			t.Fatalf("expected toggle error, got %v", err)
		}
	})
}

func TestIdentityGate_RegisterIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hashed pin", func(t *testing.T) {
		store := &identityStoreStub{}
		gate := newTestGate(store, nil)

		identity, err := gate.RegisterIdentity(ctx, " B202 ", "4321")
		if err != nil {
			t.Fatalf("RegisterIdentity failed: %v", err)
		}
		if identity.Apartment != "B202" || identity.CreatedAt.IsZero() {
			t.Fatalf("unexpected identity %+v", identity)
		}
		if len(store.created) != 1 || store.created[0].PINHash != "plain:4321" {
			t.Fatalf("unexpected stored credentials %+v", store.created)
		}
	})

	t.Run("validation", func(t *testing.T) {
		store := &identityStoreStub{}
		gate := newTestGate(store, nil)

		_, err := gate.RegisterIdentity(ctx, "", "12")
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["apartment"] == "" || vErr.FieldErrors["pin"] == "" {
			t.Fatalf("expected validation errors, got %v", err)
		}
		if len(store.created) != 0 {
			t.Fatalf("nothing should be stored")
		}
	})

	t.Run("duplicate apartment", func(t *testing.T) {
		gate := newTestGate(&identityStoreStub{createErr: ErrAlreadyExists}, nil)

		if _, err := gate.RegisterIdentity(ctx, "A101", "1234"); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("round trip with argon2", func(t *testing.T) {
		store := &identityStoreStub{identities: map[string][]IdentityCredentials{}}
		gate := NewIdentityGate(store, nil, fixedNow())

		if _, err := gate.RegisterIdentity(ctx, "C303", "2468"); err != nil {
			t.Fatalf("RegisterIdentity failed: %v", err)
		}
		store.identities["C303"] = store.created

		if _, err := gate.Authenticate(ctx, "C303", "2468"); err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if _, err := gate.Authenticate(ctx, "C303", "2469"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected wrong pin to fail, got %v", err)
		}
	})
}
