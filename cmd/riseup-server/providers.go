package main

import (
	"net/http"
	"time"

	"github.com/samber/do"

	"riseup-backend/internal/assist"
	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
	"riseup-backend/internal/mcpserver"
	"riseup-backend/internal/server"
	"riseup-backend/internal/store"
)

// transcripts adapts the store to the injector's shutdown hook.
type transcripts struct {
	store.Transcript
}

func (t transcripts) Shutdown() error { return t.Close() }

func provide(di *do.Injector) {
	do.ProvideValue(di, chatbot.New())

	do.Provide(di, func(i *do.Injector) (transcripts, error) {
		cfg := do.MustInvoke[*config.Config](i)
		s, err := store.Open(cfg.Store)
		if err != nil {
			return transcripts{}, err
		}
		return transcripts{s}, nil
	})

	do.Provide(di, func(i *do.Injector) (*store.Pruner, error) {
		cfg := do.MustInvoke[*config.Config](i)
		history, err := do.Invoke[transcripts](i)
		if err != nil {
			return nil, err
		}
		return store.NewPruner(history.Transcript, cfg.Store.PruneSchedule, cfg.Store.Retention)
	})

	do.Provide(di, func(i *do.Injector) (*server.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		resolver := do.MustInvoke[*chatbot.Resolver](i)

		history, err := do.Invoke[transcripts](i)
		if err != nil {
			return nil, err
		}
		deps := server.Deps{Resolver: resolver, Transcripts: history.Transcript}
		if cfg.Assistant.Enabled() {
			a, err := assist.New(cfg.Assistant, resolver)
			if err != nil {
				return nil, err
			}
			deps.Assistant = a
		}
		if cfg.MCPEnabled {
			deps.MCP = mcpserver.NewHTTPHandler(resolver)
		}
		return server.NewServer(cfg, deps), nil
	})

	do.Provide(di, func(i *do.Injector) (*http.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		srv, err := do.Invoke[*server.Server](i)
		if err != nil {
			return nil, err
		}
		return &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}, nil
	})
}
