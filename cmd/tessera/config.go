// Config loading for the tessera CLI.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/migrate"
	"github.com/tessera-orm/tessera/pool"
)

// Config keys. Dots map to underscores in TESSERA_* environment
// variables, so database.dsn is TESSERA_DATABASE_DSN.
const (
	cfgDialect         = "database.dialect"
	cfgDSN             = "database.dsn"
	cfgMigrationsDir   = "migrations.dir"
	cfgMigrationsTable = "migrations.table"
	cfgPoolMaxConns    = "pool.max_conns"
	cfgPoolMinConns    = "pool.min_conns"
	cfgPoolTimeout     = "pool.acquire_timeout"
)

// loadConfig reads tessera.yaml (or the --config file) and the
// environment. A missing config file is not an error as long as the
// DSN arrives some other way.
func loadConfig() (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgDialect, dialect.SQLite)
	v.SetDefault(cfgMigrationsDir, "migrations")
	v.SetDefault(cfgMigrationsTable, migrate.DefaultHistoryTable)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("tessera")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("TESSERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// openPool builds a connection pool from the loaded configuration.
func openPool(v *viper.Viper) (*pool.Pool, error) {
	dsn := v.GetString(cfgDSN)
	if dsn == "" {
		return nil, fmt.Errorf("no database DSN configured (set %s or TESSERA_DATABASE_DSN)", cfgDSN)
	}
	cfg := pool.Config{
		MaxConns:       v.GetInt(cfgPoolMaxConns),
		MinConns:       v.GetInt(cfgPoolMinConns),
		AcquireTimeout: v.GetDuration(cfgPoolTimeout),
	}
	return pool.Open(v.GetString(cfgDialect), dsn, cfg)
}

// newEngine wires a migration engine from the loaded configuration.
// The caller owns the returned pool.
func newEngine(v *viper.Viper) (*migrate.Engine, *pool.Pool, error) {
	p, err := openPool(v)
	if err != nil {
		return nil, nil, err
	}
	src := migrate.NewSource(v.GetString(cfgMigrationsDir))
	e := migrate.NewEngine(p, src, migrate.WithHistoryTable(v.GetString(cfgMigrationsTable)))
	return e, p, nil
}

func formatAppliedAt(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
