package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Path     string `mapstructure:"path"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"database"`

	Seed struct {
		AdminUsername string `mapstructure:"admin_username"`
		AdminPassword string `mapstructure:"admin_password"`
		AdminRole     string `mapstructure:"admin_role"`
	} `mapstructure:"seed"`

	Backup struct {
		Dir string `mapstructure:"dir"`
		S3  struct {
			Enabled   bool   `mapstructure:"enabled"`
			Bucket    string `mapstructure:"bucket"`
			Region    string `mapstructure:"region"`
			Endpoint  string `mapstructure:"endpoint"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
			Prefix    string `mapstructure:"prefix"`
		} `mapstructure:"s3"`
	} `mapstructure:"backup"`
}

// Load reads configs/config.yaml when present, then the environment.
// Precedence: explicit env var > .env file > config file > default.
func Load() *Config {
	// Load .env file if exists (ignore error when absent)
	godotenv.Load()
	return LoadFrom("configs/config.yaml")
}

// LoadFrom is Load with an explicit config file path and without .env handling.
func LoadFrom(path string) *Config {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file found at %s, using defaults", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("[Config] unmarshal error, using defaults: %v", err)
		cfg = Config{}
		_ = viperDefaults().Unmarshal(&cfg)
	}

	applyEnvOverrides(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "inventory.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("seed.admin_username", "sunshine")
	v.SetDefault("seed.admin_password", "sunshine@123")
	v.SetDefault("seed.admin_role", "admin")
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.s3.enabled", false)
	v.SetDefault("backup.s3.region", "auto")
	v.SetDefault("backup.s3.prefix", "backups/")
}

func viperDefaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv("INVENTORY_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if level := os.Getenv("DB_LOG_LEVEL"); level != "" {
		cfg.Database.LogLevel = level
	}
	if bucket := os.Getenv("BACKUP_S3_BUCKET"); bucket != "" {
		cfg.Backup.S3.Bucket = bucket
		cfg.Backup.S3.Enabled = true
	}
	if endpoint := os.Getenv("BACKUP_S3_ENDPOINT"); endpoint != "" {
		cfg.Backup.S3.Endpoint = endpoint
	}
	if key := os.Getenv("BACKUP_S3_ACCESS_KEY"); key != "" {
		cfg.Backup.S3.AccessKey = key
	}
	if secret := os.Getenv("BACKUP_S3_SECRET_KEY"); secret != "" {
		cfg.Backup.S3.SecretKey = secret
	}
}
