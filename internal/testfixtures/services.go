package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/persistence/memory"
)

// ServiceFactory builds the application services over one store with a
// deterministic clock and identifier sequence.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Store       persistence.Store
	Logger      *slog.Logger
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory returns a factory over a fresh in-memory store.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Store:       memory.New(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location:    time.UTC,
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
	if factory.Store == nil {
		factory.Store = memory.New()
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

// WithStore runs the services against store instead of a fresh in-memory one.
func WithStore(store persistence.Store) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Store = store
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Services bundles one instance of every application service sharing a store.
type Services struct {
	Groups     *application.GroupService
	Sessions   *application.SessionService
	Attendance *application.AttendanceService
	Calendar   *application.CalendarService
	Stats      *application.StatsService
}

// Config returns the ServiceConfig the factory hands to every service.
func (f *ServiceFactory) Config() application.ServiceConfig {
	return application.ServiceConfig{
		IDGenerator:   f.IDGenerator.NextFunc(),
		Now:           f.Clock.NowFunc(),
		Location:      f.Location,
		Logger:        f.Logger,
		CreateRetries: 10,
	}
}

// Build wires every service over the factory store, with the stats service
// registered as the dashboard cache invalidator.
func (f *ServiceFactory) Build() Services {
	cfg := f.Config()
	statsService := application.NewStatsService(f.Store, cfg)
	cfg.Invalidator = statsService

	return Services{
		Groups:     application.NewGroupService(f.Store, cfg),
		Sessions:   application.NewSessionService(f.Store, cfg),
		Attendance: application.NewAttendanceService(f.Store, cfg),
		Calendar:   application.NewCalendarService(f.Store, cfg),
		Stats:      statsService,
	}
}
