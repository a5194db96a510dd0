package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	DataDir           string
	DBPath            string
	CheckSchedule     string
	BatchSize         int
	CheckConcurrency  int
	RetentionDays     int
	RetentionSchedule string
	DockerHost        string
	DNSServer         string
	PingPrivileged    bool
	UserAgent         string
	ResendAPIKey      string
	EmailFrom         string
	SeedFile          string
	LogLevel          string
	LogFile           string
	LogMaxSizeMB      int
	LogMaxBackups     int
	LogMaxAgeDays     int
	ShutdownTimeout   time.Duration
}

// Load reads the optional env file first; variables already set in the
// process environment win over the file.
func Load() Config {
	_ = godotenv.Load(getenv("APP_ENV_FILE", ".env"))

	dataDir := getenv("APP_DATA_DIR", "./data")
	return Config{
		Addr:              getenv("APP_ADDR", ":8080"),
		DataDir:           dataDir,
		DBPath:            getenv("APP_DB_PATH", dataDir+"/pulse.db"),
		CheckSchedule:     getenv("APP_CHECK_SCHEDULE", "@every 30s"),
		BatchSize:         getenvInt("APP_BATCH_SIZE", 10),
		CheckConcurrency:  getenvInt("APP_CHECK_CONCURRENCY", 4),
		RetentionDays:     getenvInt("APP_RETENTION_DAYS", 30),
		RetentionSchedule: getenv("APP_RETENTION_SCHEDULE", "@every 6h"),
		DockerHost:        getenv("DOCKER_HOST", "unix:///var/run/docker.sock"),
		DNSServer:         getenv("APP_DNS_SERVER", "1.1.1.1"),
		PingPrivileged:    getenvBool("APP_PING_PRIVILEGED", false),
		UserAgent:         getenv("APP_HTTP_USER_AGENT", "Pulse-Monitor/1.0"),
		ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
		EmailFrom:         getenv("APP_EMAIL_FROM", "Pulse <alerts@pulse.local>"),
		SeedFile:          os.Getenv("APP_SEED_FILE"),
		LogLevel:          getenv("APP_LOG_LEVEL", "info"),
		LogFile:           os.Getenv("APP_LOG_FILE"),
		LogMaxSizeMB:      getenvInt("APP_LOG_MAX_SIZE_MB", 50),
		LogMaxBackups:     getenvInt("APP_LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:     getenvInt("APP_LOG_MAX_AGE_DAYS", 14),
		ShutdownTimeout:   getenvDuration("APP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
}
