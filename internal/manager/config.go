package manager

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultTracerName = "modelsync/manager"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Merger reconciles stored and incoming nodes. Defaults to Replace.
	Merger Merger
	// Executor is the delivery context. When nil the manager starts and owns
	// a MainLoop, closed together with the manager.
	Executor Executor
	// Logger receives structured manager logs. Defaults to a disabled logger.
	Logger *zerolog.Logger
	// Publisher receives lifecycle events. Defaults to a no-op publisher.
	Publisher EventPublisher
	// Debug turns internal invariant violations into panics and validates the
	// registry after every mutation.
	Debug bool
	// TracerName names the OpenTelemetry tracer used for pass spans.
	TracerName string
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		merger: cfg.Merger,
		exec:   cfg.Executor,
		debug:  cfg.Debug,
		reg:    newRegistry(),
		store:  newStore(),
	}
	// Apply defaults if unset
	if m.merger == nil {
		m.merger = Replace
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	} else {
		m.log = zerolog.Nop()
	}
	name := cfg.TracerName
	if name == "" {
		name = defaultTracerName
	}
	m.tracer = otel.Tracer(name)
	m.SetEventPublisher(cfg.Publisher)
	if m.exec == nil {
		m.ownLoop = NewMainLoop(m.onDeliveryPanic)
		m.exec = m.ownLoop
	}
	m.queue = newSerialQueue(m.onQueuePanic)
	m.startTime = time.Now()
	return m
}
