package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/rabiesbot/core/config"
	coredatabase "github.com/m3rciful/rabiesbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not be called")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil {
		t.Fatal("unexpected db")
	}
	if err := res.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRunMigratesBeforeConnecting(t *testing.T) {
	var steps []string
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Host: "db", Name: "rabies"},
		LoggerInit: noLogger,
		Migrate: func(_ context.Context, cfg coredatabase.Config) error {
			if cfg.Port != "5432" {
				t.Fatalf("config not normalized: %+v", cfg)
			}
			steps = append(steps, "migrate")
			return nil
		},
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return nil, errors.New("refused")
		},
	})
	if err == nil {
		t.Fatal("expected connect error")
	}
	if len(steps) != 2 || steps[0] != "migrate" || steps[1] != "connect" {
		t.Fatalf("steps = %v", steps)
	}
}

func TestRunFailsFast(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("nil config accepted")
	}
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("bad level") },
	})
	if err == nil {
		t.Fatal("logger error swallowed")
	}
	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{},
		LoggerInit: noLogger,
	})
	if err == nil {
		t.Fatal("invalid database config accepted")
	}
}
