package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gamepilot/gamepilot/internals/broadcast"
	"github.com/gamepilot/gamepilot/internals/engine"
	"github.com/gamepilot/gamepilot/internals/history"
	"github.com/gamepilot/gamepilot/pilotd/baseserver"
	"github.com/gamepilot/gamepilot/pilotd/core"
)

type Server struct {
	Base    *baseserver.BaseServer
	store   *core.Store
	queue   *core.Queue
	handler *core.CallbackHandler
	events  *broadcast.Broadcaster
	archive *history.Store
	worker  *core.Worker
	engine  engine.Handle

	httpServer *http.Server
	cancel     context.CancelFunc
	startedAt  time.Time
}

func New() (*Server, error) {
	base := baseserver.New()

	dataDir := filepath.Clean(base.Config.Server.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	archive, err := history.Open(filepath.Join(dataDir, "history.db"))
	if err != nil {
		return nil, err
	}

	// Buffered so bursts of engine callbacks survive a briefly busy relay.
	// The bridge drops on overflow rather than blocking engine threads.
	messages := make(chan engine.CallbackMessage, 256)

	eng, err := engine.New(engine.Options{
		PreferReal:   base.Config.Engine.PreferReal,
		ForceStub:    base.Config.Engine.ForceStub,
		LibPath:      base.Config.Engine.LibPath,
		ResourcePath: base.Config.Engine.ResourcePath,
		Messages:     messages,
		Logger:       base.Logger,
	})
	if err != nil {
		_ = archive.Close()
		return nil, err
	}

	store := core.NewStore()
	queue := core.NewQueue()
	handler := core.NewCallbackHandler(base.Logger)
	events := broadcast.New(16, base.Logger)

	worker := core.NewWorker(core.WorkerDeps{
		Logger:   base.Logger,
		Device:   base.Config.Device,
		Store:    store,
		Queue:    queue,
		Handler:  handler,
		Events:   events,
		Archive:  archive,
		Engine:   eng,
		Messages: messages,
	})

	return &Server{
		Base:    base,
		store:   store,
		queue:   queue,
		handler: handler,
		events:  events,
		archive: archive,
		worker:  worker,
		engine:  eng,
	}, nil
}

// Start runs the worker, the prune loop and the HTTP listener. It blocks
// until the listener stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.startedAt = time.Now()

	s.worker.Run(ctx)
	go s.pruneLoop(ctx)

	listener, err := net.Listen("tcp", s.Base.Env.LISTEN_ADDR)
	if err != nil {
		cancel()
		return err
	}
	server := &http.Server{Handler: s.Router()}
	s.httpServer = server

	s.Base.Logger.Info("pilotd listening",
		"addr", s.Base.Env.LISTEN_ADDR,
		"backend", s.engine.ID(),
		"version", s.Base.Config.Version,
	)
	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in order: stop accepting requests, cancel the worker so it
// fails whatever is still queued, wait for the worker to release the engine
// handle, then close the fan-out and the archive.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Base.Logger.Error("http shutdown failed", "error", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.worker.Wait()
	s.events.Close()
	if err := s.archive.Close(); err != nil {
		s.Base.Logger.Error("failed to close history archive", "error", err)
	}
	s.Base.Logger.Info("pilotd stopped")
	s.Base.Close()
}

func (s *Server) pruneLoop(ctx context.Context) {
	retention := time.Duration(s.Base.Config.Tasks.RetentionMinutes) * time.Minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.Prune(retention); removed > 0 {
				s.Base.Logger.Debug("pruned finished tasks", "count", removed)
			}
		}
	}
}
