package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	MigrationsDir string
	CORSOrigin    string
	// Redis - optional, enables the sync advisory lock and the full-data cache
	RedisURL    string
	SyncLockTTL time.Duration
	FullDataTTL time.Duration
	// Meilisearch - optional search backend
	MeiliURL       string
	MeiliMasterKey string
	// Object storage - optional snapshot backups
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	// Notion - optional upstream workspace adapter
	NotionToken      string
	NotionProjectsDB string
	NotionTasksDB    string
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8790"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		MigrationsDir: getenv("ATELIER_MIGRATIONS_DIR", "./db/migrations"),
		CORSOrigin:    getenv("ATELIER_CORS_ORIGIN", "*"),
		RedisURL:      getenv("REDIS_URL", ""),
		SyncLockTTL:   time.Duration(getenvInt("ATELIER_SYNC_LOCK_TTL_SECONDS", 60)) * time.Second,
		FullDataTTL:   time.Duration(getenvInt("ATELIER_FULL_DATA_TTL_SECONDS", 30)) * time.Second,

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "atelier-snapshots"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		NotionToken:      getenv("NOTION_TOKEN", ""),
		NotionProjectsDB: getenv("NOTION_PROJECTS_DB", ""),
		NotionTasksDB:    getenv("NOTION_TASKS_DB", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
