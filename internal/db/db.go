package db

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
)

// Connect opens the process-wide pool. The caller owns it and must Close it on shutdown.
func Connect(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	pgcfg, err := pgx.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Force IPv4; some hosts only publish IPv6 routes that the platform can't reach.
	pgcfg.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
		return d.DialContext(ctx, "tcp4", addr)
	}

	sqlDB := stdlib.OpenDB(*pgcfg)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logging.Gorm(log, cfg.IsDevelopment()),
		NamingStrategy: NamingStrategy(cfg.Database.Schema),
		TranslateError: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	dbLog := logging.Component(log, "db")
	dbLog.Info().Str("schema", cfg.Database.Schema).Msg("connected to database")
	return gdb, nil
}

// NamingStrategy qualifies every table with the schema ("gallery.projects").
func NamingStrategy(schemaName string) schema.NamingStrategy {
	if schemaName == "" {
		return schema.NamingStrategy{}
	}
	return schema.NamingStrategy{TablePrefix: schemaName + "."}
}

func Close(d *gorm.DB) error {
	sqlDB, err := d.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping is used by the health check.
func Ping(ctx context.Context, d *gorm.DB) error {
	sqlDB, err := d.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
