package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m3rciful/rabiesbot/internal/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "absent.env"))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.RunMode != "longpoll" {
		t.Fatalf("core section not loaded: %+v", cfg.Telegram)
	}
	if cfg.Content.Path != DefaultContentPath || cfg.Content.DefaultLanguage != "en" {
		t.Fatalf("content defaults: %+v", cfg.Content)
	}
	if len(cfg.Content.Languages) != 2 || cfg.Content.Languages[1] != "hi" {
		t.Fatalf("languages = %v", cfg.Content.Languages)
	}
	if cfg.Sessions.Backend != session.BackendMemory {
		t.Fatalf("backend = %q", cfg.Sessions.Backend)
	}
	if cfg.DatabaseConfig() != nil {
		t.Fatal("memory backend should not request a database")
	}
	if cfg.CoreConfig() != &cfg.Config {
		t.Fatal("CoreConfig must expose the embedded struct")
	}
}

func TestLoadPostgresBackend(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
sessions:
  backend: postgres
database:
  host: db
  name: rabies
  user: bot
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	db := cfg.DatabaseConfig()
	if db == nil || db.Host != "db" || db.Port != "5432" || db.MigrationsDir != "migrations" {
		t.Fatalf("database = %+v", db)
	}
}

func TestEnvironmentOverridesContentAndSessions(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\ncontent:\n  languages: [en]\n")
	t.Setenv("CONTENT_LANGUAGES", "hi,EN,hi")
	t.Setenv("CONTENT_DEFAULT_LANGUAGE", "hi")
	t.Setenv("SESSIONS_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Content.Languages; len(got) != 2 || got[0] != "hi" || got[1] != "en" {
		t.Fatalf("languages = %v", got)
	}
	if cfg.Content.DefaultLanguage != "hi" {
		t.Fatalf("default language = %q", cfg.Content.DefaultLanguage)
	}
	if cfg.Sessions.Backend != session.BackendRedis || cfg.Sessions.Redis.Addr != "localhost:6379" {
		t.Fatalf("sessions = %+v", cfg.Sessions)
	}
}

func TestNormalizeRejectsInvalidSections(t *testing.T) {
	cases := map[string]string{
		"default language not offered": "telegram:\n  token: t\ncontent:\n  languages: [en]\n  default_language: hi\n",
		"unknown backend":              "telegram:\n  token: t\nsessions:\n  backend: etcd\n",
		"redis without addr":           "telegram:\n  token: t\nsessions:\n  backend: redis\n",
		"postgres without host":        "telegram:\n  token: t\nsessions:\n  backend: postgres\n",
		"missing token":                "content:\n  path: x.json\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", "")
			os.Unsetenv("BOT_TOKEN")
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
