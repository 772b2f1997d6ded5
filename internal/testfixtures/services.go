package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewBookingService builds a booking service over store.
func (f *ServiceFactory) NewBookingService(store application.ReservationStore) *application.BookingService {
	return application.NewBookingServiceWithLogger(store, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// CalendarServiceDeps captures dependencies for constructing a calendar service.
type CalendarServiceDeps struct {
	Reader   application.ReservationReader
	Settings application.CalendarSettings
}

// NewCalendarService builds a calendar service. Missing settings default to
// rooms room1 and room2, a Monday week start and UTC.
func (f *ServiceFactory) NewCalendarService(deps CalendarServiceDeps) *application.CalendarService {
	settings := deps.Settings
	if len(settings.Rooms) == 0 {
		settings.Rooms = []string{"room1", "room2"}
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return application.NewCalendarServiceWithLogger(deps.Reader, settings, f.Clock.NowFunc(), f.Logger)
}

// IdentityGateDeps captures dependencies for constructing an identity gate.
type IdentityGateDeps struct {
	Identities application.IdentityStore
	Booking    application.Toggler
	Hash       application.PINHasher
	Verify     application.PINVerifier
}

// NewIdentityGate builds an identity gate. Hashing defaults to argon2id with
// FastPINParams.
func (f *ServiceFactory) NewIdentityGate(deps IdentityGateDeps) *application.IdentityGate {
	hash := deps.Hash
	if hash == nil {
		hash = func(pin string) (string, error) {
			return application.HashPINWithParams(pin, FastPINParams)
		}
	}
	return application.NewIdentityGateWithLogger(deps.Identities, deps.Booking, hash, deps.Verify, f.Clock.NowFunc(), f.Logger)
}
