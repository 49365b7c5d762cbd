// Command asp runs the association set provider: it loads configuration,
// spawns the prover worker, opens the store, rebuilds the in-worker tree
// from durable state, and serves the HTTP API while an event syncer
// reconciles against the chain in the background.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zylith-labs/asp/config"
	"github.com/zylith-labs/asp/eventsync"
	"github.com/zylith-labs/asp/httpapi"
	applog "github.com/zylith-labs/asp/log"
	"github.com/zylith-labs/asp/lifecycle"
	"github.com/zylith-labs/asp/process"
	"github.com/zylith-labs/asp/prover"
	"github.com/zylith-labs/asp/relayer"
	"github.com/zylith-labs/asp/store"
	"github.com/zylith-labs/asp/tree"
)

// Priority ordering for lifecycle.Manager: lower starts first, and
// StopAll() reverses it so the HTTP listener drains before the syncer
// and prover worker go away underneath it.
const (
	priorityProver = 0
	prioritySyncer = 10
	priorityHTTP   = 20
)

const version = "0.1.0"

func main() {
	log := applog.Module("main")

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	worker, err := prover.Spawn(cfg.WorkerPath)
	if err != nil {
		log.Error("failed to spawn prover worker", "error", err)
		os.Exit(1)
	}

	treeEngine := tree.New(worker)
	if err := rebuildTree(st, treeEngine, log); err != nil {
		log.Error("failed to rebuild tree from store", "error", err)
		os.Exit(1)
	}

	var rl relayer.Relayer
	var source relayer.EventSource
	if adminKey := os.Getenv("ADMIN_PRIVATE_KEY"); adminKey != "" {
		chain, err := relayer.NewRealChain(cfg.RPCURL, cfg.AdminAddress, adminKey, cfg.CoordinatorAddr, cfg.PoolAddr)
		if err != nil {
			log.Error("failed to connect to chain", "error", err)
			os.Exit(1)
		}
		rl = chain
		source = chain
	} else {
		log.Warn("ADMIN_PRIVATE_KEY not set, running with a mock relayer")
		rl = relayer.NewMock()
		source = relayer.NewMockEventSource(0)
	}

	var treeMu sync.Mutex
	proc := process.New(st, treeEngine, worker, rl, &treeMu)
	syncer := eventsync.New(st, treeEngine, source, rl, cfg.PoolAddr, &treeMu, cfg.SyncPollInterval)

	health := lifecycle.NewHealthChecker()
	health.RegisterSubsystem("store", storeChecker{st}, true)
	health.RegisterSubsystem("prover", proverChecker{worker}, true)

	api := httpapi.New(proc, st, treeEngine, health,
		httpapi.Contracts{Coordinator: cfg.CoordinatorAddr, Pool: cfg.PoolAddr}, version)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: api,
	}

	manager := lifecycle.NewManager(lifecycle.DefaultConfig())
	_ = manager.Register(proverService{worker}, priorityProver, true)
	_ = manager.Register(syncerService{syncer}, prioritySyncer, false)
	_ = manager.Register(httpService{httpServer, log}, priorityHTTP, true)

	if errs := manager.StartAll(); len(errs) > 0 {
		for _, e := range errs {
			log.Error("service failed to start", "error", e)
		}
		os.Exit(1)
	}
	log.Info("asp running", "addr", httpServer.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	for _, e := range manager.StopAll() {
		log.Error("service failed to stop cleanly", "error", e)
	}
}

// rebuildTree replays every stored commitment into the worker's tree on
// startup so the in-worker tree and the durable store agree before
// anything else runs.
func rebuildTree(st *store.Store, te *tree.Engine, log *applog.Logger) error {
	commitments, err := st.GetAllCommitments()
	if err != nil {
		return err
	}
	if len(commitments) == 0 {
		return nil
	}

	root, err := te.Rebuild(commitments)
	if err != nil {
		return err
	}

	latest, err := st.GetLatestRoot()
	if err != nil {
		return err
	}
	if latest == nil || *latest != root {
		log.Warn("rebuilt root does not match latest stored root, seeding it", "rebuilt_root", root)
		if err := st.InsertRoot(root, te.LeafCount(), ""); err != nil {
			return err
		}
	}
	return nil
}

type storeChecker struct{ st *store.Store }

func (c storeChecker) Check() *lifecycle.SubsystemHealth {
	status := lifecycle.StatusHealthy
	msg := ""
	if !c.st.IsHealthy() {
		status = lifecycle.StatusUnhealthy
		msg = "database probe failed"
	}
	return &lifecycle.SubsystemHealth{Status: status, Message: msg}
}

type proverChecker struct{ w *prover.Worker }

func (c proverChecker) Check() *lifecycle.SubsystemHealth {
	status := lifecycle.StatusHealthy
	msg := ""
	if err := c.w.Ping(); err != nil {
		status = lifecycle.StatusUnhealthy
		msg = err.Error()
	}
	return &lifecycle.SubsystemHealth{Status: status, Message: msg}
}

type proverService struct{ w *prover.Worker }

func (s proverService) Name() string { return "prover" }
func (s proverService) Start() error { return s.w.Ping() }
func (s proverService) Stop() error  { return s.w.Stop() }

type syncerService struct{ s *eventsync.Syncer }

func (s syncerService) Name() string { return "eventsync" }
func (s syncerService) Start() error { return s.s.Start() }
func (s syncerService) Stop() error  { return s.s.Stop() }

type httpService struct {
	server *http.Server
	log    *applog.Logger
}

func (s httpService) Name() string { return "httpapi" }

func (s httpService) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

func (s httpService) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
