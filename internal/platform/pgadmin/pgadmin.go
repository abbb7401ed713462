// Package pgadmin holds the privileged connection used for tenant database
// administration.
package pgadmin

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/pkg/config"
	gormzap "github.com/fatflowers/tenantmaster/pkg/gormlog"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidIdent reports whether s may be used as a database or role name.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// QuoteIdent validates s and returns it double quoted. Only allow-listed
// names are ever interpolated into DDL.
func QuoteIdent(s string) (string, error) {
	if !ValidIdent(s) {
		return "", fmt.Errorf("invalid identifier %q", s)
	}
	return `"` + s + `"`, nil
}

// Opener connects to a named database on the admin server.
type Opener func(database string) (*gorm.DB, error)

type Conn struct {
	db   *gorm.DB
	cfg  config.AdminDBConfig
	open Opener
}

// dialector uses the simple protocol so values can be bound as parameters in
// utility statements such as CREATE ROLE ... PASSWORD.
func dialector(dsn string) gorm.Dialector {
	return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
}

func New(log *zap.SugaredLogger, cfg *config.Config) (*Conn, error) {
	admin := cfg.AdminDB
	open := func(database string) (*gorm.DB, error) {
		return gorm.Open(dialector(admin.DSN(database)), &gorm.Config{
			Logger:               gormzap.NewRedacted(log),
			DisableAutomaticPing: true,
		})
	}
	db, err := open("")
	if err != nil {
		return nil, fmt.Errorf("failed to open admin connection: %w", err)
	}
	log.Infow("admin database configured", "host", admin.Host, "port", admin.Port, "user", admin.User)
	return NewWithDB(db, admin, open), nil
}

// NewWithDB wraps an existing connection; open is used for per-database work.
func NewWithDB(db *gorm.DB, cfg config.AdminDBConfig, open Opener) *Conn {
	return &Conn{db: db, cfg: cfg, open: open}
}

// DB is the connection to the maintenance database.
func (c *Conn) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *Conn) Host() string { return c.cfg.Host }
func (c *Conn) Port() int    { return c.cfg.Port }
func (c *Conn) User() string { return c.cfg.User }

// Password is handed to client tools through PGPASSWORD.
func (c *Conn) Password() string { return c.cfg.Password }

// WithDatabase runs fn on a short-lived connection to database.
func (c *Conn) WithDatabase(ctx context.Context, database string, fn func(db *gorm.DB) error) error {
	if !ValidIdent(database) {
		return fmt.Errorf("invalid identifier %q", database)
	}
	db, err := c.open(database)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", database, err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	return fn(db.WithContext(ctx))
}

func (c *Conn) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func registerClose(lc fx.Lifecycle, log *zap.SugaredLogger, c *Conn) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("closing admin connection pool")
			return c.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerClose),
)
