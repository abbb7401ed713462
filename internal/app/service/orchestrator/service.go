// Package orchestrator drives a workspace through its lifecycle: provisioning,
// plan changes, backups and deletion.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/materializer"
	"github.com/fatflowers/tenantmaster/internal/app/service/provisioning"
	"github.com/fatflowers/tenantmaster/internal/app/service/publisher"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/metrics"
	"github.com/fatflowers/tenantmaster/pkg/tool"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

type DatabaseProvisioner interface {
	CreateDatabase(ctx context.Context, name, user, password string) error
	DeleteDatabase(ctx context.Context, name, user string) error
	BackupDatabase(ctx context.Context, name, dir string) (*provisioning.Backup, error)
	RestoreDatabase(ctx context.Context, name, path string) error
	MeasureSize(ctx context.Context, name string) float64
}

type PortAllocator interface {
	Claim(ctx context.Context, product *models.Product, owner string) (int, error)
	Release(ctx context.Context, productID string, port int) error
	ReleaseOwner(ctx context.Context, productID, owner string) ([]int, error)
}

type CodeMaterializer interface {
	Materialize(ctx context.Context, req *materializer.Request) (*materializer.Result, error)
	WorkspaceDir(product, subdomain string) string
	RemoveWorkspaceDir(ctx context.Context, path string) error
	InitProductTemplate(ctx context.Context, p *models.Product) (string, error)
}

type RepositoryPublisher interface {
	Publish(ctx context.Context, req *publisher.Request) (*publisher.Result, error)
}

type AuditLog interface {
	Record(ctx context.Context, e *activity.Entry) (*models.ActivityLog, error)
	RecordTx(tx *gorm.DB, e *activity.Entry) (*models.ActivityLog, error)
	RecordPlanChange(ctx context.Context, pc *models.PlanChange) error
	Tombstone(tx *gorm.DB, workspaceID string) error
}

type ProductCatalog interface {
	Get(ctx context.Context, name string) (*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	SetRepoURL(ctx context.Context, id, url string) error
}

type JobSubmitter interface {
	Submit(ctx context.Context, name string, run func(ctx context.Context) error) error
}

// Deps are the collaborators of the orchestrator. Every field is required
// except Jobs (only ProvisionAsync needs it) and Metrics.
type Deps struct {
	Databases DatabaseProvisioner
	Ports     PortAllocator
	Code      CodeMaterializer
	Repos     RepositoryPublisher
	Audit     AuditLog
	Catalog   ProductCatalog
	Jobs      JobSubmitter
	Metrics   *metrics.Lifecycle
}

type Service struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	db   *gorm.DB
	deps Deps

	// serializes lifecycle operations per workspace id
	locks tool.KeyedMutex
	now   func() time.Time
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, deps Deps) *Service {
	return &Service{cfg: cfg, log: log, db: db, deps: deps, now: time.Now}
}

// DatabaseName derives the tenant database name: {product}_{subdomain},
// lowercased with dashes turned into underscores.
func DatabaseName(product, subdomain string) string {
	return strings.ReplaceAll(strings.ToLower(product+"_"+subdomain), "-", "_")
}

// DatabaseUser is user_{db_name}.
func DatabaseUser(dbName string) string {
	return "user_" + dbName
}

// RepoName is the remote repository of a dedicated workspace.
func RepoName(product, subdomain string) string {
	return product + "-" + subdomain
}

// Get loads a workspace with its product.
func (s *Service) Get(ctx context.Context, id string) (*models.Workspace, error) {
	return s.load(s.db.WithContext(ctx), id)
}

func (s *Service) load(tx *gorm.DB, id string) (*models.Workspace, error) {
	var ws models.Workspace
	err := tx.Preload("Product").Where("id = ?", id).Take(&ws).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %s: %w", id, err)
	}
	if ws.Product == nil {
		return nil, fmt.Errorf("workspace %s references a missing product", id)
	}
	return &ws, nil
}

// save writes every column of ws; the product row is never touched.
func (s *Service) save(ctx context.Context, ws *models.Workspace) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(ws).Error; err != nil {
		return fmt.Errorf("failed to save workspace %s: %w", ws.ID, err)
	}
	return nil
}

// record writes an audit entry. The operation it describes already happened,
// so a failure here is logged and swallowed.
func (s *Service) record(ctx context.Context, e *activity.Entry) {
	if _, err := s.deps.Audit.Record(ctx, e); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to record activity", "action", e.Action, "error", err)
	}
}

// lock serializes work on one workspace and tags ctx with its id.
func (s *Service) lock(ctx context.Context, id string) (context.Context, func()) {
	unlock := s.locks.Lock(id)
	return logctx.WithWorkspace(ctx, id), unlock
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// stepError makes sure err is an *apperr.Error naming step.
func stepError(err error, step types.ProvisionState) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithStep(string(step))
	}
	return apperr.Provisioning(err, "unexpected failure").WithStep(string(step))
}
