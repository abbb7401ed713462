// Package provisioning creates, drops, backs up and inspects tenant
// databases on the shared PostgreSQL server.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/internal/platform/command"
	"github.com/fatflowers/tenantmaster/internal/platform/pgadmin"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
)

// Backup describes a dump written by BackupDatabase.
type Backup struct {
	Filename string  `json:"filename"`
	Path     string  `json:"path"`
	SizeMB   float64 `json:"size_mb"`
}

type ServerStatus struct {
	Online    bool   `json:"online"`
	Version   string `json:"version,omitempty"`
	Databases int64  `json:"databases"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Error     string `json:"error,omitempty"`
}

type Service struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	conn   *pgadmin.Conn
	runner command.Runner
	fs     afero.Fs
	now    func() time.Time
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, conn *pgadmin.Conn, runner command.Runner, fs afero.Fs) *Service {
	return &Service{cfg: cfg, log: log, conn: conn, runner: runner, fs: fs, now: time.Now}
}

func (s *Service) exists(ctx context.Context, query, name string) (bool, error) {
	var ok bool
	if err := s.conn.DB(ctx).Raw(query, name).Scan(&ok).Error; err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Service) RoleExists(ctx context.Context, user string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = ?)", user)
}

func (s *Service) DatabaseExists(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = ?)", name)
}

// CreateDatabase makes sure role user exists with password and owns database
// name. Existing objects are reused, and an existing role gets the new
// password, so calling it again with the same arguments succeeds. A failure
// midway leaves whatever was already created in place.
func (s *Service) CreateDatabase(ctx context.Context, name, user, password string) error {
	qName, err := pgadmin.QuoteIdent(name)
	if err != nil {
		return apperr.Validation("database name: %v", err)
	}
	qUser, err := pgadmin.QuoteIdent(user)
	if err != nil {
		return apperr.Validation("database user: %v", err)
	}
	if password == "" {
		return apperr.Validation("database password is empty")
	}
	log := logctx.FromCtx(ctx, s.log).With("db_name", name, "db_user", user)
	db := s.conn.DB(ctx)

	roleExists, err := s.RoleExists(ctx, user)
	if err != nil {
		return apperr.Provisioning(err, "failed to look up role %s", user)
	}
	if roleExists {
		if err := db.Exec("ALTER ROLE "+qUser+" WITH LOGIN PASSWORD ?", password).Error; err != nil {
			return apperr.Provisioning(err, "failed to update role %s", user)
		}
		log.Infow("role already existed, password updated")
	} else {
		if err := db.Exec("CREATE ROLE "+qUser+" WITH LOGIN PASSWORD ?", password).Error; err != nil {
			return apperr.Provisioning(err, "failed to create role %s", user)
		}
		log.Infow("role created")
	}

	dbExists, err := s.DatabaseExists(ctx, name)
	if err != nil {
		return apperr.Provisioning(err, "failed to look up database %s", name)
	}
	if !dbExists {
		if err := db.Exec("CREATE DATABASE " + qName + " OWNER " + qUser + " ENCODING 'UTF8'").Error; err != nil {
			return apperr.Provisioning(err, "failed to create database %s", name)
		}
		log.Infow("database created")
	} else {
		log.Infow("database already existed")
	}

	if err := db.Exec("REVOKE ALL ON DATABASE " + qName + " FROM PUBLIC").Error; err != nil {
		return apperr.Provisioning(err, "failed to revoke public access on %s", name)
	}
	if err := db.Exec("GRANT ALL PRIVILEGES ON DATABASE " + qName + " TO " + qUser).Error; err != nil {
		return apperr.Provisioning(err, "failed to grant privileges on %s", name)
	}
	return nil
}

// DeleteDatabase terminates other sessions, then drops the database and the
// role. Missing objects are not an error.
func (s *Service) DeleteDatabase(ctx context.Context, name, user string) error {
	qName, err := pgadmin.QuoteIdent(name)
	if err != nil {
		return apperr.Validation("database name: %v", err)
	}
	qUser, err := pgadmin.QuoteIdent(user)
	if err != nil {
		return apperr.Validation("database user: %v", err)
	}
	log := logctx.FromCtx(ctx, s.log).With("db_name", name, "db_user", user)
	db := s.conn.DB(ctx)

	if err := db.Exec("SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = ? AND pid <> pg_backend_pid()", name).Error; err != nil {
		return apperr.Provisioning(err, "failed to terminate sessions on %s", name)
	}
	if err := db.Exec("DROP DATABASE IF EXISTS " + qName).Error; err != nil {
		return apperr.Provisioning(err, "failed to drop database %s", name)
	}
	if err := db.Exec("DROP ROLE IF EXISTS " + qUser).Error; err != nil {
		return apperr.Provisioning(err, "failed to drop role %s", user)
	}
	log.Infow("database dropped")
	return nil
}

func (s *Service) clientCommand(name string, args ...string) command.Command {
	base := []string{"-h", s.conn.Host(), "-p", strconv.Itoa(s.conn.Port()), "-U", s.conn.User(), "--no-password"}
	return command.Command{
		Name:    name,
		Args:    append(base, args...),
		Env:     []string{"PGPASSWORD=" + s.conn.Password()},
		Timeout: s.cfg.Commands.Timeout,
		Secrets: []string{s.conn.Password()},
	}
}

// BackupDatabase writes a compressed custom-format dump into dir.
func (s *Service) BackupDatabase(ctx context.Context, name, dir string) (*Backup, error) {
	if !pgadmin.ValidIdent(name) {
		return nil, apperr.Validation("invalid database name %q", name)
	}
	if dir == "" {
		dir = s.cfg.Provisioning.BackupDir
	}
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup dir %s: %w", dir, err)
	}
	filename := fmt.Sprintf("%s_%s.dump", name, s.now().Format("20060102_150405"))
	path := filepath.Join(dir, filename)

	if _, err := s.runner.Run(ctx, s.clientCommand(s.cfg.Commands.PgDump, "-d", name, "-F", "c", "-f", path)); err != nil {
		if errors.Is(err, apperr.ErrTimeout) {
			return nil, err
		}
		return nil, apperr.Provisioning(err, "backup of %s failed", name)
	}

	b := &Backup{Filename: filename, Path: path}
	if fi, err := s.fs.Stat(path); err == nil {
		b.SizeMB = toMB(float64(fi.Size()))
	}
	logctx.FromCtx(ctx, s.log).Infow("database backed up", "db_name", name, "path", path, "size_mb", b.SizeMB)
	return b, nil
}

// RestoreDatabase replaces the objects of database name with the dump at path.
func (s *Service) RestoreDatabase(ctx context.Context, name, path string) error {
	if !pgadmin.ValidIdent(name) {
		return apperr.Validation("invalid database name %q", name)
	}
	if _, err := s.fs.Stat(path); err != nil {
		return apperr.Validation("backup file %s: %v", path, err)
	}
	if _, err := s.runner.Run(ctx, s.clientCommand(s.cfg.Commands.PgRestore, "-d", name, "--clean", "--if-exists", path)); err != nil {
		if errors.Is(err, apperr.ErrTimeout) {
			return err
		}
		return apperr.Provisioning(err, "restore of %s failed", name)
	}
	logctx.FromCtx(ctx, s.log).Infow("database restored", "db_name", name, "path", path)
	return nil
}

// MeasureSize returns the database size in MB, or 0 when unknown.
func (s *Service) MeasureSize(ctx context.Context, name string) float64 {
	var size float64
	err := s.conn.DB(ctx).Raw("SELECT COALESCE(pg_database_size(datname), 0) FROM pg_database WHERE datname = ?", name).Scan(&size).Error
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to measure database size", "db_name", name, "err", err)
		return 0
	}
	return toMB(size)
}

// CountConnections returns the number of open sessions on the database.
func (s *Service) CountConnections(ctx context.Context, name string) int {
	var n int64
	err := s.conn.DB(ctx).Raw("SELECT count(*) FROM pg_stat_activity WHERE datname = ?", name).Scan(&n).Error
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to count connections", "db_name", name, "err", err)
		return 0
	}
	return int(n)
}

// ListTables returns the public tables of the database, empty on error.
func (s *Service) ListTables(ctx context.Context, name string) []string {
	var tables []string
	err := s.conn.WithDatabase(ctx, name, func(db *gorm.DB) error {
		rows, err := db.Raw("SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public' ORDER BY tablename").Rows()
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return err
			}
			tables = append(tables, t)
		}
		return rows.Err()
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to list tables", "db_name", name, "err", err)
		return []string{}
	}
	return tables
}

// Vacuum runs VACUUM ANALYZE inside the tenant database.
func (s *Service) Vacuum(ctx context.Context, name string) error {
	err := s.conn.WithDatabase(ctx, name, func(db *gorm.DB) error {
		return db.Exec("VACUUM ANALYZE").Error
	})
	if err != nil {
		return apperr.Provisioning(err, "vacuum of %s failed", name)
	}
	return nil
}

// ServerStatus probes the admin connection. Errors are reported in the result.
func (s *Service) ServerStatus(ctx context.Context) *ServerStatus {
	st := &ServerStatus{Host: s.conn.Host(), Port: s.conn.Port()}
	db := s.conn.DB(ctx)
	if err := db.Raw("SELECT version()").Scan(&st.Version).Error; err != nil {
		st.Error = err.Error()
		return st
	}
	if err := db.Raw("SELECT count(*) FROM pg_database WHERE datistemplate = false").Scan(&st.Databases).Error; err != nil {
		st.Error = err.Error()
		return st
	}
	st.Online = true
	return st
}

func toMB(bytes float64) float64 {
	return math.Round(bytes/1024/1024*100) / 100
}
