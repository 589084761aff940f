package ecs

import (
	"context"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	QueryCount      int
	Ticks           uint64
	TotalExecutions int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	name           string
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

// RefreshMode selects how queries are brought up to date at the start of a tick.
type RefreshMode int

const (
	// RefreshIncremental re-tests only the entities drained from the dirty set.
	RefreshIncremental RefreshMode = iota
	// RefreshRescan re-tests every live entity whenever the dirty set is non-empty.
	RefreshRescan
)

// ParseRefreshMode maps "incremental" and "rescan" to a RefreshMode.
func ParseRefreshMode(s string) (RefreshMode, bool) {
	switch strings.ToLower(s) {
	case "", "incremental":
		return RefreshIncremental, true
	case "rescan":
		return RefreshRescan, true
	}
	return RefreshIncremental, false
}

type queryRefresher interface {
	Update(dirty []Entity)
	Rescan()
}

// Scheduler manages and executes systems in order.
type Scheduler struct {
	storage     *Storage
	systems     []System
	systemStats []*systemStatsInternal
	queries     []queryRefresher
	inbox       *Inbox
	mode        RefreshMode
	ticks       uint64
	log         *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRefreshMode picks the query refresh strategy.
func WithRefreshMode(mode RefreshMode) SchedulerOption {
	return func(s *Scheduler) {
		s.mode = mode
	}
}

// WithInboxSize sets the capacity of the scheduler's inbox.
func WithInboxSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.inbox = NewInbox(n)
	}
}

// NewScheduler creates a new scheduler for the given storage.
func NewScheduler(storage *Storage, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		storage: storage,
		systems: make([]System, 0),
		inbox:   NewInbox(64),
		log:     storage.log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRefreshMode switches the query refresh strategy from the next tick on.
func (s *Scheduler) SetRefreshMode(mode RefreshMode) {
	s.mode = mode
}

// Inbox returns the hand-off channel drained at the start of every tick.
func (s *Scheduler) Inbox() *Inbox {
	return s.inbox
}

// Register adds a system to the scheduler and initializes its Query fields.
func (s *Scheduler) Register(system System) {
	s.initializeQueries(system)
	s.systems = append(s.systems, system)

	systemType := reflect.TypeOf(system)
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	systemName := systemType.Name()

	s.systemStats = append(s.systemStats, &systemStatsInternal{
		name:        systemName,
		minDuration: time.Duration(1<<63 - 1),
	})
	s.log.Debug("registered system", zap.String("system", systemName))
}

// AddQuery makes the scheduler refresh q along with the queries of its systems.
func (s *Scheduler) AddQuery(q queryRefresher) {
	q.Rescan()
	s.queries = append(s.queries, q)
}

func (s *Scheduler) initializeQueries(system System) {
	systemValue := reflect.ValueOf(system)
	if systemValue.Kind() == reflect.Ptr {
		systemValue = systemValue.Elem()
	}

	if systemValue.Kind() != reflect.Struct {
		return
	}

	systemType := systemValue.Type()

	for i := 0; i < systemValue.NumField(); i++ {
		field := systemValue.Field(i)
		fieldType := systemType.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() != reflect.Struct {
			continue
		}

		typeName := field.Type().Name()

		// Initialize Query fields
		if strings.HasPrefix(typeName, "Query[") {
			initMethod := field.Addr().MethodByName("Init")
			if !initMethod.IsValid() {
				panic("Init method not found on Query field: " + fieldType.Name)
			}

			initMethod.Call([]reflect.Value{
				reflect.ValueOf(s.storage),
			})
			if q, ok := field.Addr().Interface().(queryRefresher); ok {
				s.AddQuery(q)
			}
			continue
		}

		// Initialize Singleton fields
		if strings.HasPrefix(typeName, "Singleton[") {
			initMethod := field.Addr().MethodByName("Init")
			if !initMethod.IsValid() {
				panic("Init method not found on Singleton field: " + fieldType.Name)
			}

			initMethod.Call([]reflect.Value{
				reflect.ValueOf(s.storage),
			})
			continue
		}
	}
}

// Refresh drains the storage's dirty set once and brings every registered query
// up to date. Once calls it at the start of each tick.
func (s *Scheduler) Refresh() {
	dirty, ok := s.storage.DrainDirty()
	if !ok {
		return
	}
	for _, q := range s.queries {
		if s.mode == RefreshRescan {
			q.Rescan()
		} else {
			q.Update(dirty)
		}
	}
}

// Once runs a single tick: inbox commands, query refresh, scripts, systems,
// then the deferred command buffer.
func (s *Scheduler) Once(dt float64) {
	s.ticks++
	frame := newUpdateFrame(s.ticks, dt, s.storage)

	s.inbox.drain(frame)
	s.Refresh()
	s.storage.scripts.Update(dt)

	for i, system := range s.systems {
		start := time.Now()
		system.Execute(frame)
		duration := time.Since(start)

		stats := s.systemStats[i]
		stats.executionCount++
		stats.lastDuration = duration
		stats.totalDuration += duration

		if duration < stats.minDuration {
			stats.minDuration = duration
		}
		if duration > stats.maxDuration {
			stats.maxDuration = duration
		}
	}

	frame.Commands.Flush(s.storage)
	s.storage.scripts.Sweep()
}

// Dispatch forwards an input event to every active script.
func (s *Scheduler) Dispatch(ev InputEvent) {
	s.storage.scripts.Dispatch(ev)
}

// Render hands target to every registered system that implements Renderer.
func (s *Scheduler) Render(target DrawTarget) {
	for _, system := range s.systems {
		if r, ok := system.(Renderer); ok {
			r.Render(target)
		}
	}
}

// Run executes all systems repeatedly at the given interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			s.Once(dt)
		}
	}
}

// GetStats returns statistics about system execution.
func (s *Scheduler) GetStats() *SchedulerStats {
	stats := &SchedulerStats{
		SystemCount: len(s.systems),
		QueryCount:  len(s.queries),
		Ticks:       s.ticks,
		Systems:     make([]SystemStats, len(s.systemStats)),
	}

	var totalExecs int64
	for i, internal := range s.systemStats {
		avgDuration := time.Duration(0)
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		}

		stats.Systems[i] = SystemStats{
			Name:           internal.name,
			ExecutionCount: internal.executionCount,
			MinDuration:    internal.minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
