package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultIndexerURL  = "https://api.mini.pixotchi.tech/graphql"
	DefaultBaseRPCURL  = "https://mainnet.base.org"
	PlaceholderAddress = "0xYourSeedContractAddressHere"

	MinIntervalMinutes = 5
	MaxIntervalMinutes = 1440
)

type Config struct {
	Telegram TelegramConfig
	Reports  ReportsConfig
	Indexer  IndexerConfig
	Seed     SeedConfig

	// HTTPAddr enables the status API when set, e.g. ":8080".
	HTTPAddr string `env:"PIXBOT_HTTP_ADDR"`
	LogLevel string `env:"PIXBOT_LOG_LEVEL" envDefault:"info"`
}

type TelegramConfig struct {
	Token        string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	Proxy        string `env:"TELEGRAM_PROXY"`
	AdminUserIDs string `env:"ADMIN_USER_IDS,required,notEmpty"`
	TargetChatID int64  `env:"TARGET_CHAT_ID,required"`

	// Admins is parsed from AdminUserIDs.
	Admins []int64
}

type ReportsConfig struct {
	ActivityIntervalMinutes     int           `env:"DEFAULT_INTERVAL_MINUTES" envDefault:"180"`
	BurnIntervalMinutes         int           `env:"DEFAULT_SEED_BURN_INTERVAL_MINUTES" envDefault:"60"`
	ManualActivityWindowMinutes int           `env:"PIXBOT_MANUAL_ACTIVITY_WINDOW_MINUTES" envDefault:"180"`
	ManualBurnIntervalMinutes   int           `env:"PIXBOT_MANUAL_BURN_INTERVAL_MINUTES" envDefault:"60"`
	PageSize                    int           `env:"PIXBOT_PAGE_SIZE" envDefault:"6"`
	PaginationTTL               time.Duration `env:"PIXBOT_PAGINATION_TTL" envDefault:"0s"`
	RestartDelay                time.Duration `env:"PIXBOT_RESTART_DELAY" envDefault:"1s"`
}

type IndexerConfig struct {
	URL          string        `env:"PONDER_API_URL" envDefault:"https://api.mini.pixotchi.tech/graphql"`
	ItemCacheTTL time.Duration `env:"PIXBOT_ITEM_CACHE_TTL" envDefault:"5m"`
}

type SeedConfig struct {
	ContractAddress string  `env:"SEED_CONTRACT_ADDRESS,required,notEmpty"`
	TotalSupply     float64 `env:"SEED_TOTAL_SUPPLY,required"`
	RPCURL          string  `env:"BASE_RPC_URL" envDefault:"https://mainnet.base.org"`
	RPCBackup1      string  `env:"BASE_RPC_BACKUP_1"`
	RPCBackup2      string  `env:"BASE_RPC_BACKUP_2"`
	RPCBackup3      string  `env:"BASE_RPC_BACKUP_3"`
	RPCMaxTries     uint    `env:"PIXBOT_RPC_MAX_TRIES" envDefault:"3"`
}

// RPCEndpoints lists the primary RPC URL followed by the configured backups.
func (s SeedConfig) RPCEndpoints() []string {
	urls := []string{s.RPCURL}
	for _, u := range []string{s.RPCBackup1, s.RPCBackup2, s.RPCBackup3} {
		if strings.TrimSpace(u) != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// LoadConfig reads the process environment.
func LoadConfig() (*Config, error) {
	return LoadFrom(envMap(os.Environ()))
}

// LoadFrom parses and validates configuration from the given variables.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Telegram.Admins = ParseAdminIDs(cfg.Telegram.AdminUserIDs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseAdminIDs parses a comma separated id list, skipping entries that are
// not integers.
func ParseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (c *Config) Validate() error {
	if len(c.Telegram.Admins) == 0 {
		return errors.New("ADMIN_USER_IDS must contain at least one valid user ID")
	}
	if !validInterval(c.Reports.ActivityIntervalMinutes) {
		return errors.New("DEFAULT_INTERVAL_MINUTES must be between 5 and 1440 minutes (24 hours)")
	}
	if !validInterval(c.Reports.BurnIntervalMinutes) {
		return errors.New("DEFAULT_SEED_BURN_INTERVAL_MINUTES must be between 5 and 1440 minutes (24 hours)")
	}
	if c.Reports.ManualActivityWindowMinutes <= 0 || c.Reports.ManualBurnIntervalMinutes <= 0 {
		return errors.New("manual report windows must be positive")
	}
	if c.Reports.PageSize <= 0 {
		return errors.New("PIXBOT_PAGE_SIZE must be positive")
	}
	if c.Seed.ContractAddress == PlaceholderAddress {
		return errors.New("SEED_CONTRACT_ADDRESS must be set to a valid contract address")
	}
	if c.Seed.TotalSupply <= 0 {
		return errors.New("SEED_TOTAL_SUPPLY must be a positive number")
	}
	return nil
}

// IsAdmin reports whether userID is a configured admin.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Telegram.Admins, userID)
}

// MaskSecret keeps the first and last four characters of a secret.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func validInterval(m int) bool {
	return m >= MinIntervalMinutes && m <= MaxIntervalMinutes
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
