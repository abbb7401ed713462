package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/tool"
)

var ErrProductNotFound = errors.New("product not found")

// Service owns the product catalog.
type Service struct {
	cfg *config.Config
	log *zap.SugaredLogger
	db  *gorm.DB
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB) *Service {
	return &Service{cfg: cfg, log: log, db: db}
}

// Seed upserts the configured products by name. Overlapping dedicated port
// ranges are accepted but logged.
func (s *Service) Seed(ctx context.Context) ([]*models.Product, error) {
	log := logctx.FromCtx(ctx, s.log)
	var out []*models.Product
	for _, seed := range s.cfg.ProductSeeds() {
		var p models.Product
		err := s.db.WithContext(ctx).Where("name = ?", seed.Name).Take(&p).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = models.Product{ID: tool.GenerateUUIDV7()}
		case err != nil:
			return nil, fmt.Errorf("failed to load product %s: %w", seed.Name, err)
		}
		repoURL := p.RepoURL
		p.ApplySeed(seed)
		p.RepoURL = repoURL
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Save(&p).Error; err != nil {
			return nil, fmt.Errorf("failed to save product %s: %w", seed.Name, err)
		}
		out = append(out, &p)
	}

	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[i].PortRangeOverlaps(out[j]) {
				log.Warnw("dedicated port ranges overlap", "product", out[i].Name, "other", out[j].Name)
			}
		}
	}
	log.Infow("product catalog seeded", "count", len(out))
	return out, nil
}

// Get looks a product up by name.
func (s *Service) Get(ctx context.Context, name string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", name, err)
	}
	return &p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return &p, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*models.Product, error) {
	q := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var ps []*models.Product
	if err := q.Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return ps, nil
}

// SetRepoURL stores the remote of the product's base code.
func (s *Service) SetRepoURL(ctx context.Context, id, url string) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("repo_url", url)
	if res.Error != nil {
		return fmt.Errorf("failed to update product repo url: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return nil
}
