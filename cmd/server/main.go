package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelforge.dev/internal/persistence/journal"
	"voxelforge.dev/internal/persistence/store"
	"voxelforge.dev/internal/sim/catalogs"
	"voxelforge.dev/internal/sim/tuning"
	"voxelforge.dev/internal/sim/world"
	"voxelforge.dev/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite save index")
		preload    = flag.Int("preload", 2, "radius of chunks to load around the origin at boot")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "world")
	var idx *store.Index
	if !*disableDB {
		idx, err = store.OpenIndex(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open save index: %v", err)
		}
		defer idx.Close()
	}
	st, err := store.Open(worldDir, idx)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}

	// Resume the clock and seed from a previous run when present.
	resumed, found, err := st.LoadWorldState()
	if err != nil {
		logger.Fatalf("load world state: %v", err)
	}
	if found {
		if resumed.PaletteDigest != cats.Blocks.PaletteDigest {
			logger.Fatalf("palette digest changed since last run; saved chunks would misdecode (saved %s, configs %s)",
				resumed.PaletteDigest, cats.Blocks.PaletteDigest)
		}
		*seed = resumed.Seed
		logger.Printf("resuming world: seed=%d tick=%d weather=%s", resumed.Seed, resumed.Tick, resumed.Weather)
	}

	events := journal.NewWriter(filepath.Join(worldDir, "journal"), "events", logger)
	defer events.Close()

	w := world.New(world.Config{
		Seed:    *seed,
		Tuning:  tune,
		Storage: st,
		Log:     logger,
	}, cats)
	obs := observer.NewServer(w, cats, tune, *seed, logger)
	w.SetEvents(world.Sinks(events, obs))

	if found {
		w.RestoreClock(world.ClockState{
			Tick:         resumed.Tick,
			Weather:      resumed.Weather,
			WeatherUntil: resumed.WeatherUntil,
			Transitions:  resumed.Transitions,
		})
	}
	if idx != nil {
		_ = idx.SetMeta("seed", fmt.Sprintf("%d", *seed))
		_ = idx.SetMeta("palette_digest", cats.Blocks.PaletteDigest)
	}

	for cx := -*preload; cx <= *preload; cx++ {
		for cz := -*preload; cz <= *preload; cz++ {
			if _, err := w.Store().Load(cx, cz); err != nil {
				logger.Fatalf("preload chunk %d,%d: %v", cx, cz, err)
			}
		}
	}
	logger.Printf("world ready: seed=%d height=%d tick_rate=%dHz chunks=%d",
		*seed, tune.Height, tune.TickRateHz, len(w.Store().LoadedChunkKeys()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", obs.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(rw, "ok tick=%d\n", w.Tick())
	})
	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	loopDone := false
	select {
	case s := <-sig:
		logger.Printf("signal %v: shutting down", s)
	case err := <-runErr:
		loopDone = true
		logger.Printf("world loop exited: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	if !loopDone {
		w.Stop()
		select {
		case <-runErr:
		case <-time.After(10 * time.Second):
			logger.Printf("world loop did not stop in time")
		}
	}

	cs := w.Clock().State()
	if err := st.SaveWorldState(store.WorldStateV1{
		Seed:          *seed,
		Tick:          w.Tick(),
		Weather:       cs.Weather,
		WeatherUntil:  cs.WeatherUntil,
		Transitions:   cs.Transitions,
		PaletteDigest: cats.Blocks.PaletteDigest,
	}); err != nil {
		logger.Printf("save world state: %v", err)
	}
	logger.Printf("shutdown complete at tick %d", w.Tick())
}
