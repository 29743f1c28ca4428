package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xiaot623/gogo/runwatch/internal/adapter/runclient"
	"github.com/xiaot623/gogo/runwatch/internal/config"
	"github.com/xiaot623/gogo/runwatch/internal/policy"
	"github.com/xiaot623/gogo/runwatch/internal/repository"
	"github.com/xiaot623/gogo/runwatch/internal/service"
	"github.com/xiaot623/gogo/runwatch/internal/state"
)

// app is the wired object graph shared by the commands.
type app struct {
	store   *state.Store
	service *service.Service
	journal *repository.SQLiteStore
}

func (a *app) Close() error {
	return a.journal.Close()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	policyContent := policy.DefaultPolicy
	if cfg.PolicyFile != "" {
		b, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		policyContent = string(b)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	journal, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	store := state.NewStore()
	client := runclient.NewClient(cfg.BackendURL, cfg.RunPath)
	svc := service.New(store, state.NewModelOverrides(), client, journal, policyEngine, cfg)

	return &app{store: store, service: svc, journal: journal}, nil
}
