package world

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"voxelforge.dev/internal/sim/catalogs"
	"voxelforge.dev/internal/sim/tuning"
)

type Config struct {
	Seed    int64
	Tuning  tuning.Tuning
	Storage Storage   // nil for an ephemeral world
	Events  EventSink // nil to drop events
	Log     *log.Logger
}

// World owns all simulation state. Everything below the channel layer
// is single-goroutine: Run is the only goroutine that touches chunks,
// entities, lighting and the clock, so no locks guard them.
type World struct {
	cfg   tuning.Tuning
	log   *log.Logger
	store *ChunkStore
	light *LightEngine
	clock *Clock
	sink  EventSink

	inbox     chan RequestEnvelope
	regionReq chan RegionRequest
	stop      chan struct{}

	tick atomic.Uint64
}

func New(cfg Config, cat *catalogs.Catalogs) *World {
	t := cfg.Tuning
	logger := cfg.Log
	if logger == nil {
		logger = log.New(log.Writer(), "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	store := NewChunkStore(Gen{Seed: cfg.Seed, BoundaryR: t.BoundaryR, Height: t.Height}, cat, cfg.Storage)
	w := &World{
		cfg:       t,
		log:       logger,
		store:     store,
		light:     NewLightEngine(store),
		clock:     NewClock(cfg.Seed, t.DayTicks, t.Weather),
		sink:      cfg.Events,
		inbox:     make(chan RequestEnvelope, 256),
		regionReq: make(chan RegionRequest, 64),
		stop:      make(chan struct{}),
	}
	return w
}

func (w *World) Store() *ChunkStore   { return w.store }
func (w *World) Lights() *LightEngine { return w.light }
func (w *World) Clock() *Clock        { return w.clock }
func (w *World) Tick() uint64         { return w.tick.Load() }

// SetEvents replaces the event sink. Transports that need the world to
// exist before they do call this once, before Run.
func (w *World) SetEvents(sink EventSink) { w.sink = sink }

// RestoreClock resumes the tick counter and weather spell from a saved
// world state. Call before Run.
func (w *World) RestoreClock(st ClockState) {
	w.tick.Store(st.Tick)
	w.clock.Restore(st)
}

func (w *World) emit(ev Event) {
	if w.sink != nil {
		w.sink.Emit(ev)
	}
}

// AdvanceTick runs one full simulation step: pending bridge requests,
// then clock and weather, then hoppers, then the lighting budget, then
// a periodic dirty-chunk flush. Tests drive the world through this
// directly; Run drives it from a ticker.
func (w *World) AdvanceTick(requests []RequestEnvelope) {
	tick := w.tick.Add(1)

	for _, env := range requests {
		res := w.applyRequest(env.Req)
		if env.Resp != nil {
			env.Resp <- res
		}
	}

	if old, now, changed := w.clock.Advance(); changed {
		w.log.Printf("weather %s -> %s at tick %d", old, now, tick)
		w.emit(Event{Tick: tick, Type: EvWeatherChange, Detail: now})
	}

	tickHoppers(w.store, tick, w.sink)

	w.light.ProcessPending(w.cfg.LightBudget)

	if w.cfg.FlushEveryTicks > 0 && tick%uint64(w.cfg.FlushEveryTicks) == 0 {
		if err := w.store.FlushDirty(); err != nil {
			w.log.Printf("flush: %v", err)
		}
	}
}

// Run drives the tick loop until ctx is cancelled or Stop is called,
// then flushes every dirty chunk as a save barrier.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []RequestEnvelope
	for {
		select {
		case <-ctx.Done():
			w.shutdownFlush()
			return ctx.Err()
		case <-w.stop:
			w.shutdownFlush()
			return nil
		case env := <-w.inbox:
			pending = append(pending, env)
		case req := <-w.regionReq:
			w.handleRegionRequest(req)
		case <-ticker.C:
			w.AdvanceTick(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) shutdownFlush() {
	if err := w.store.FlushDirty(); err != nil {
		w.log.Printf("shutdown flush: %v", err)
		return
	}
	w.log.Printf("shutdown flush complete at tick %d", w.tick.Load())
}
