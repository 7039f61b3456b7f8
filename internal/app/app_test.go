package app

import (
	"context"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/rabiesbot/core/config"
	"github.com/m3rciful/rabiesbot/core/bootstrap"
	"github.com/m3rciful/rabiesbot/internal/bot"
	"github.com/m3rciful/rabiesbot/internal/config"

	tele "gopkg.in/telebot.v4"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.AdminID = 42
	cfg.Content.Path = "../../content/content.json"
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

func quiet() bootstrap.Options {
	return bootstrap.Options{LoggerInit: func(*coreconfig.Config) error { return nil }}
}

func TestBuildAssemblesMemoryBot(t *testing.T) {
	a, err := build(context.Background(), testConfig(t), quiet())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	if opts.Config != a.cfg.CoreConfig() || opts.Registry == nil || opts.OnStart == nil {
		t.Fatalf("options incomplete: %+v", opts)
	}
	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{bot.CommandStart, bot.CommandContent, tele.OnCallback, tele.OnText} {
		if !endpoints[want] {
			t.Fatalf("route %v missing", want)
		}
	}
	if len(opts.Middlewares) == 0 {
		t.Fatal("expected default middlewares")
	}
	if !a.content.HasLanguage("hi") {
		t.Fatal("content not loaded")
	}
}

func TestBuildFailsOnMissingContent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Content.Path = filepath.Join(t.TempDir(), "absent.json")
	if _, err := build(context.Background(), cfg, quiet()); err == nil {
		t.Fatal("expected error for missing content document")
	}
}

func TestBuildRejectsNilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
