package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	coredatabase "github.com/m3rciful/catalogbot/core/database"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigInlinesCoreAndFillsChatIDs(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: yaml-token
  admin_id: 42
database:
  driver: sqlite3
  path: bot.db
catalog:
  seed_path: " seed.yaml "
media:
  placeholder_handle: PH
`)
	t.Setenv("MEDIA_ROOT", "/srv/media")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CoreConfig().Telegram.Token != "yaml-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Catalog.NotifyChatID != 42 || cfg.Media.UploadChatID != 42 {
		t.Fatalf("chat ids = %d / %d, want admin fallback", cfg.Catalog.NotifyChatID, cfg.Media.UploadChatID)
	}
	if cfg.Media.Root != "/srv/media" || cfg.Media.PlaceholderHandle != "PH" {
		t.Fatalf("media = %#v", cfg.Media)
	}
	if cfg.Catalog.SeedPath != "seed.yaml" {
		t.Fatalf("seed path = %q", cfg.Catalog.SeedPath)
	}
	if cfg.Database.Driver != coredatabase.DriverSQLite || cfg.Database.MaxConnections != 1 {
		t.Fatalf("database = %#v", cfg.Database)
	}
}

func TestLoadConfigEnvOverridesChatIDs(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: t
  admin_id: 42
database:
  driver: sqlite3
  path: bot.db
`)
	t.Setenv("CATALOG_NOTIFY_CHAT_ID", "-1001")
	t.Setenv("MEDIA_UPLOAD_CHAT_ID", "-1002")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Catalog.NotifyChatID != -1001 || cfg.Media.UploadChatID != -1002 {
		t.Fatalf("chat ids = %d / %d", cfg.Catalog.NotifyChatID, cfg.Media.UploadChatID)
	}
	if cfg.Media.Root != "media" {
		t.Fatalf("default media root = %q", cfg.Media.Root)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no upload chat", "telegram:\n  token: t\ndatabase:\n  driver: sqlite3\n  path: x.db\n", "upload_chat_id"},
		{"no db name", "telegram:\n  token: t\n  admin_id: 1\n", "database.name"},
		{"core", "telegram:\n  admin_id: 1\n", "token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
