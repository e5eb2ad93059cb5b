package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Upload    UploadConfig
	Storage   StorageConfig
	Blob      StorageConfig
	Legacy    LegacyConfig
	Flickr    FlickrConfig
	Seed      SeedConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	URL    string
	Schema string
}

type SessionConfig struct {
	TTL          time.Duration
	SecureCookie bool
}

type RateLimitConfig struct {
	// Auth is a ulule/limiter formatted rate ("20-M"). Empty disables.
	Auth string
}

type CacheConfig struct {
	TTL time.Duration
}

type UploadConfig struct {
	TicketSecret string
	TicketTTL    time.Duration
}

// StorageConfig selects and configures one object store.
type StorageConfig struct {
	Backend string

	R2AccountID       string
	R2Bucket          string
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2PublicBaseURL   string

	LocalDir     string
	LocalBaseURL string
}

type LegacyConfig struct {
	TownsRoot        string
	PhotosBaseURL    string
	PhotosDir        string
	PlaceholderEmail string
	PlaceholderName  string
	PublishOnImport  bool
	FlickrLocalRoot  string
	MigrateStateFile string
}

type FlickrConfig struct {
	APIKey    string
	UserID    string
	RateLimit float64
}

type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load reads .env.local (if present), then the environment, then CONFIG_FILE underneath it.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.AutomaticEnv()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", p, err)
		}
	}
	setDefaults(v)

	accountID := v.GetString("R2_ACCOUNT_ID")
	endpoint := v.GetString("R2_ENDPOINT")
	if endpoint == "" && accountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	env := strings.ToLower(v.GetString("APP_ENV"))

	cfg := &Config{
		Env: env,
		Server: ServerConfig{
			Port:        v.GetString("PORT"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:    v.GetString("DATABASE_URL"),
			Schema: v.GetString("DB_SCHEMA"),
		},
		Session: SessionConfig{
			TTL:          v.GetDuration("SESSION_TTL"),
			SecureCookie: env != "development",
		},
		RateLimit: RateLimitConfig{
			Auth: v.GetString("RATE_LIMIT_AUTH"),
		},
		Cache: CacheConfig{
			TTL: v.GetDuration("GALLERY_CACHE_TTL"),
		},
		Upload: UploadConfig{
			TicketSecret: v.GetString("UPLOAD_TICKET_SECRET"),
			TicketTTL:    v.GetDuration("UPLOAD_TICKET_TTL"),
		},
		Storage: StorageConfig{
			Backend:           v.GetString("STORAGE_BACKEND"),
			R2AccountID:       accountID,
			R2Bucket:          v.GetString("R2_BUCKET"),
			R2Endpoint:        endpoint,
			R2AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			R2SecretAccessKey: v.GetString("R2_SECRET_ACCESS_KEY"),
			R2PublicBaseURL:   v.GetString("R2_PUBLIC_BASE_URL"),
			LocalDir:          v.GetString("LOCAL_STORAGE_DIR"),
			LocalBaseURL:      v.GetString("LOCAL_STORAGE_BASE_URL"),
		},
		Blob: StorageConfig{
			Backend:      v.GetString("BLOB_BACKEND"),
			LocalDir:     v.GetString("BLOB_LOCAL_DIR"),
			LocalBaseURL: v.GetString("BLOB_LOCAL_BASE_URL"),
		},
		Legacy: LegacyConfig{
			TownsRoot:        v.GetString("LOCAL_TOWNS_ROOT"),
			PhotosBaseURL:    v.GetString("LEGACY_PHOTOS_BASE_URL"),
			PhotosDir:        v.GetString("LEGACY_PHOTOS_DIR"),
			PlaceholderEmail: v.GetString("LEGACY_PLACEHOLDER_EMAIL"),
			PlaceholderName:  v.GetString("LEGACY_PLACEHOLDER_NAME"),
			PublishOnImport:  v.GetString("LEGACY_PUBLISH_ON_IMPORT") == "1",
			FlickrLocalRoot:  v.GetString("FLICKR_LOCAL_ROOT"),
			MigrateStateFile: v.GetString("MIGRATE_STATE_FILE"),
		},
		Flickr: FlickrConfig{
			APIKey:    v.GetString("FLICKR_API_KEY"),
			UserID:    v.GetString("FLICKR_USER_ID"),
			RateLimit: v.GetFloat64("FLICKR_RATE"),
		},
		Seed: SeedConfig{
			AdminEmail:    v.GetString("ADMIN_EMAIL"),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
			AdminName:     v.GetString("ADMIN_NAME"),
		},
	}

	// The blob store shares R2 credentials when it is pointed at R2 too.
	if cfg.Blob.Backend == "r2" {
		local := cfg.Blob
		cfg.Blob = cfg.Storage
		cfg.Blob.Backend = "r2"
		cfg.Blob.LocalDir = local.LocalDir
		cfg.Blob.LocalBaseURL = local.LocalBaseURL
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("PORT", "5050")
	v.SetDefault("DB_SCHEMA", "gallery")
	v.SetDefault("SESSION_TTL", 6*time.Hour)
	v.SetDefault("RATE_LIMIT_AUTH", "20-M")
	v.SetDefault("GALLERY_CACHE_TTL", 5*time.Minute)
	v.SetDefault("UPLOAD_TICKET_TTL", time.Hour)
	v.SetDefault("STORAGE_BACKEND", "r2")
	v.SetDefault("LOCAL_STORAGE_DIR", "./data/blobs")
	v.SetDefault("LOCAL_STORAGE_BASE_URL", "/blobs")
	v.SetDefault("BLOB_BACKEND", "local")
	v.SetDefault("BLOB_LOCAL_DIR", "./data/blob-uploads")
	v.SetDefault("BLOB_LOCAL_BASE_URL", "/blob-uploads")
	v.SetDefault("LOCAL_TOWNS_ROOT", "../towns")
	v.SetDefault("LEGACY_PLACEHOLDER_EMAIL", "unclaimed@smalltown.gallery")
	v.SetDefault("LEGACY_PLACEHOLDER_NAME", "Unclaimed Legacy Collection")
	v.SetDefault("FLICKR_LOCAL_ROOT", "/opt/smalltown.gallery/flickr-import/full-albums")
	v.SetDefault("FLICKR_USER_ID", "30563993@N07")
	v.SetDefault("FLICKR_RATE", 2.0)
	v.SetDefault("MIGRATE_STATE_FILE", "/tmp/migrate-storage-state.json")
	v.SetDefault("ADMIN_NAME", "Admin")
}

// IsDevelopment reports whether APP_ENV=development.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// RequireDatabase fails fast for commands that cannot run without DATABASE_URL.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
