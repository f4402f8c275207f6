package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"genctl/internal/transport"
	"genctl/pkg/types"
)

// Defaults applied when corresponding config fields are unset.
const (
	defaultOpTimeout      = 10 * time.Minute
	defaultQueueCapacity  = 8
	defaultRequestTimeout = 5 * time.Minute
	defaultScheduling     = ScheduleGlobal
	defaultJobRetention   = 15 * time.Minute
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Transport transport.Transport
	// Models lists the identities to track. Defaults to types.KnownModels().
	Models []string
	// OpTimeout bounds each load/unload/clear transport call.
	OpTimeout time.Duration
	// SkipClearSweep disables the POST /models/clear-all call at the end of ClearAll.
	SkipClearSweep bool
	Logger         *zerolog.Logger
	Publisher    EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	models := cfg.Models
	if len(models) == 0 {
		models = types.KnownModels()
	}
	m := &Manager{
		transport:  cfg.Transport,
		records:    make(map[string]*record, len(models)),
		order:      make([]string, 0, len(models)),
		clearSweep: !cfg.SkipClearSweep,
		publisher:  noopPublisher{},
		log:        zerolog.Nop(),
	}
	now := time.Now()
	for _, id := range models {
		if _, dup := m.records[id]; dup || id == "" {
			continue
		}
		m.records[id] = &record{id: id, status: StatusUnloaded, updatedAt: now}
		m.order = append(m.order, id)
	}
	if cfg.OpTimeout <= 0 {
		m.opTimeout = defaultOpTimeout
	} else {
		m.opTimeout = cfg.OpTimeout
	}
	if cfg.Publisher != nil {
		m.publisher = cfg.Publisher
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "lifecycle").Logger()
	}
	m.baseCtx, m.stop = context.WithCancel(context.Background())
	return m
}

// DispatcherConfig encapsulates all tunables for Dispatcher construction.
type DispatcherConfig struct {
	Transport transport.Transport
	// QueueCapacity is the number of jobs that may wait per lane, excluding the running one.
	QueueCapacity int
	// RequestTimeout bounds each generation transport call.
	RequestTimeout time.Duration
	Scheduling     Scheduling
	// JobRetention is how long a resolved job stays visible to Lookup.
	JobRetention time.Duration
	Logger       *zerolog.Logger
	Publisher    EventPublisher
}

// NewDispatcher constructs a Dispatcher that checks readiness against models.
func NewDispatcher(models ModelStatusReader, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		models:    models,
		transport: cfg.Transport,
		lanes:     make(map[string]*lane),
		jobs:      make(map[string]*Job),
		publisher: noopPublisher{},
		log:       zerolog.Nop(),
	}
	if cfg.QueueCapacity <= 0 {
		d.capacity = defaultQueueCapacity
	} else {
		d.capacity = cfg.QueueCapacity
	}
	if cfg.RequestTimeout <= 0 {
		d.timeout = defaultRequestTimeout
	} else {
		d.timeout = cfg.RequestTimeout
	}
	d.retention = cfg.JobRetention
	if d.retention <= 0 {
		d.retention = defaultJobRetention
	}
	switch cfg.Scheduling {
	case SchedulePerModel:
		d.scheduling = SchedulePerModel
	default:
		d.scheduling = defaultScheduling
	}
	if cfg.Publisher != nil {
		d.publisher = cfg.Publisher
	}
	if cfg.Logger != nil {
		d.log = cfg.Logger.With().Str("component", "dispatch").Logger()
	}
	d.baseCtx, d.stop = context.WithCancel(context.Background())
	return d
}
