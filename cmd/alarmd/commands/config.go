package commands

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment-sourced setting for alarmd, per the
// service's external configuration contract.
type Config struct {
	DatabaseURL           string
	BusURL                string
	MinDBConnections      int
	MaxDBConnections      int
	DefaultTimezone       string
	WorkerThreads         int
	CleanupIntervalSec    int
	ReconcileIntervalSec  int
	ListenAddr            string
}

func loadConfig() Config {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("MIN_DB_CONNECTIONS", 5)
	v.SetDefault("MAX_DB_CONNECTIONS", 20)
	v.SetDefault("SCHEDULER_TIMEZONE_DEFAULT", "UTC")
	v.SetDefault("WORKER_THREADS", 8)
	v.SetDefault("CLEANUP_INTERVAL_SEC", 600)
	v.SetDefault("RECONCILE_INTERVAL_SEC", 600)
	v.SetDefault("LISTEN_ADDR", ":8080")

	return Config{
		DatabaseURL:           v.GetString("DATABASE_URL"),
		BusURL:                v.GetString("BUS_URL"),
		MinDBConnections:      v.GetInt("MIN_DB_CONNECTIONS"),
		MaxDBConnections:      v.GetInt("MAX_DB_CONNECTIONS"),
		DefaultTimezone:       v.GetString("SCHEDULER_TIMEZONE_DEFAULT"),
		WorkerThreads:         v.GetInt("WORKER_THREADS"),
		CleanupIntervalSec:    v.GetInt("CLEANUP_INTERVAL_SEC"),
		ReconcileIntervalSec:  v.GetInt("RECONCILE_INTERVAL_SEC"),
		ListenAddr:            v.GetString("LISTEN_ADDR"),
	}
}

func (c Config) cleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSec) * time.Second
}

func (c Config) reconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSec) * time.Second
}
