package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"piads/rank"
	"piads/storage"
)

type Config struct {
	Supabase SupabaseConfig
	Database DatabaseConfig
	Backup   BackupConfig
	Sync     SyncConfig
	Ranking  RankingConfig
	LogLevel string
}

type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
}

type DatabaseConfig struct {
	// Direct Postgres connection string. Preferred over the REST API
	// when both are set.
	URL string
	// Path to the local SQLite fallback database
	LocalPath string
}

type BackupConfig struct {
	// Snapshot file path on local disk
	Path string
	// Cron expression for scheduled snapshots; empty disables the
	// schedule (write-triggered snapshots still run)
	Cron string
	S3   storage.S3Config
}

type SyncConfig struct {
	Interval  time.Duration
	BatchSize int
	Cron      string
	// Cron expression for the promotion expiry sweep
	PromotionCron string
}

type RankingConfig struct {
	// Optional YAML file overriding the default scoring weights
	WeightsPath string
	Weights     rank.Weights
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			AnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		},
		Database: DatabaseConfig{
			URL:       os.Getenv("DATABASE_URL"),
			LocalPath: getEnv("DB_PATH", "piads.db"),
		},
		Backup: BackupConfig{
			Path: getEnv("BACKUP_PATH", "piads-backup.json"),
			Cron: os.Getenv("BACKUP_CRON"),
			S3: storage.S3Config{
				Bucket:          os.Getenv("S3_BUCKET"),
				Region:          getEnv("S3_REGION", "us-east-1"),
				Endpoint:        os.Getenv("S3_ENDPOINT"),
				AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
				KeyPrefix:       os.Getenv("S3_KEY_PREFIX"),
			},
		},
		Sync: SyncConfig{
			Interval:      getEnvDuration("SYNC_INTERVAL", time.Minute),
			BatchSize:     getEnvInt("SYNC_BATCH_SIZE", 50),
			Cron:          os.Getenv("SYNC_CRON"),
			PromotionCron: getEnv("PROMOTION_SWEEP_CRON", "*/15 * * * *"),
		},
		Ranking: RankingConfig{
			WeightsPath: getEnv("RANKING_WEIGHTS_PATH", "config/ranking.yaml"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	weights, err := rank.LoadWeights(cfg.Ranking.WeightsPath)
	if err != nil {
		return nil, err
	}
	cfg.Ranking.Weights = weights

	return cfg, nil
}

// RemoteConfigured reports whether any remote backend can be built
// from this configuration
func (c *Config) RemoteConfigured() bool {
	return c.Database.URL != "" || (c.Supabase.URL != "" && c.Supabase.ServiceKey != "")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
