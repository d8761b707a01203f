package bot

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/catalogbot/core/config"
	coredatabase "github.com/m3rciful/catalogbot/core/database"
)

// CatalogConfig controls where inquiries are announced and how the catalog
// is seeded on first start.
type CatalogConfig struct {
	// NotifyChatID receives new inquiries; 0 falls back to telegram.admin_id.
	NotifyChatID int64 `yaml:"notify_chat_id" envconfig:"CATALOG_NOTIFY_CHAT_ID"`
	// SeedPath points at a YAML catalog loaded into an empty database.
	SeedPath string `yaml:"seed_path" envconfig:"CATALOG_SEED_PATH"`
}

// MediaConfig controls media resolution.
type MediaConfig struct {
	Root string `yaml:"root" envconfig:"MEDIA_ROOT"`
	// UploadChatID is where local files are uploaded to obtain a file_id;
	// 0 falls back to telegram.admin_id.
	UploadChatID      int64  `yaml:"upload_chat_id" envconfig:"MEDIA_UPLOAD_CHAT_ID"`
	PlaceholderPath   string `yaml:"placeholder_path" envconfig:"MEDIA_PLACEHOLDER_PATH"`
	PlaceholderHandle string `yaml:"placeholder_handle" envconfig:"MEDIA_PLACEHOLDER_HANDLE"`
}

// Config is the full bot configuration. The core section is inlined at the
// top level of the YAML document.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Catalog  CatalogConfig       `yaml:"catalog"`
	Media    MediaConfig         `yaml:"media"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills the chat id fallbacks.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if c.Catalog.NotifyChatID == 0 {
		c.Catalog.NotifyChatID = c.Telegram.AdminID
	}
	if c.Media.UploadChatID == 0 {
		c.Media.UploadChatID = c.Telegram.AdminID
	}
	c.Media.Root = strings.TrimSpace(c.Media.Root)
	if c.Media.Root == "" {
		c.Media.Root = "media"
	}
	if c.Media.UploadChatID == 0 {
		return fmt.Errorf("media.upload_chat_id or telegram.admin_id is required")
	}
	c.Catalog.SeedPath = strings.TrimSpace(c.Catalog.SeedPath)
	return nil
}
