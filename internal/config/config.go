package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/punchd.db"

	// Optional central archive (HQ Postgres). Empty disables the forwarder.
	ArchiveDSN string

	// Ingestion thresholds, tunable per site.
	MaxClockDrift     time.Duration // reject punches further than this from ingestion time
	ConflictWindow    time.Duration // same-type punch from another device within this window conflicts
	MaxSkewCorrection time.Duration // cap on the learned per-device clock correction
	SkewWindow        int           // samples kept per device for the trimmed-mean estimator
	AnomalyWindow     time.Duration // rolling window for trust escalation
	AnomalyThreshold  int           // anomalies within window that escalate trust one level
	DeviceQueueDepth  int           // in-flight punches allowed per device before Overload
	IngestTimeout     time.Duration // bound on one admit call
	WriterQueueDepth  int           // write transactions buffered by the db worker

	// Heartbeat retention
	HeartbeatRetentionDays int // 0 = keep forever
	PruneIntervalHours     int // how often the pruner runs (default 6)
}

func FromEnv() Config {
	addr := getenvDefault("PUNCHD_HTTP_ADDR", ":8000")

	env := strings.ToLower(getenvDefault("PUNCHD_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   getenvDefault("PUNCHD_DB_PATH", "./data/punchd.db"),

		ArchiveDSN: os.Getenv("PUNCHD_ARCHIVE_DSN"),

		MaxClockDrift:     time.Duration(getenvInt("PUNCHD_MAX_CLOCK_DRIFT_HOURS", 24)) * time.Hour,
		ConflictWindow:    time.Duration(getenvInt("PUNCHD_CONFLICT_WINDOW_MINUTES", 2)) * time.Minute,
		MaxSkewCorrection: time.Duration(getenvInt("PUNCHD_MAX_SKEW_CORRECTION_MINUTES", 10)) * time.Minute,
		SkewWindow:        getenvInt("PUNCHD_SKEW_WINDOW_SAMPLES", 16),
		AnomalyWindow:     time.Duration(getenvInt("PUNCHD_ANOMALY_WINDOW_MINUTES", 60)) * time.Minute,
		AnomalyThreshold:  getenvInt("PUNCHD_ANOMALY_THRESHOLD", 5),
		DeviceQueueDepth:  getenvInt("PUNCHD_DEVICE_QUEUE_DEPTH", 32),
		IngestTimeout:     time.Duration(getenvInt("PUNCHD_INGEST_TIMEOUT_MS", 5000)) * time.Millisecond,
		WriterQueueDepth:  getenvInt("PUNCHD_WRITER_QUEUE_DEPTH", 256),

		HeartbeatRetentionDays: getenvInt("PUNCHD_HEARTBEAT_RETENTION_DAYS", 30),
		PruneIntervalHours:     getenvInt("PUNCHD_PRUNE_INTERVAL_HOURS", 6),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
