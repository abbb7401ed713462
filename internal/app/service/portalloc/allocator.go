// Package portalloc hands out dedicated host ports from a product's range.
package portalloc

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/tool"
)

// Allocator claims ports through the dedicated_port_claim table. The
// in-process lock avoids pointless conflicts; the unique index is what
// guarantees two owners never hold the same port.
type Allocator struct {
	log   *zap.SugaredLogger
	db    *gorm.DB
	locks tool.KeyedMutex
}

func New(log *zap.SugaredLogger, db *gorm.DB) *Allocator {
	return &Allocator{log: log, db: db}
}

// Claim returns the lowest free port of the product's range and records it
// for owner. An owner that already holds a port in the range gets that port
// back. A full range yields a port exhaustion error.
func (a *Allocator) Claim(ctx context.Context, product *models.Product, owner string) (int, error) {
	if product.DedicatedPortStart <= 0 || product.DedicatedPortStart >= product.DedicatedPortEnd {
		return 0, apperr.Validation("product %s has no usable dedicated port range", product.Name)
	}
	unlock := a.locks.Lock(product.ID)
	defer unlock()

	claimed, reused := 0, false
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []int
		err := tx.Model(&models.PortClaim{}).
			Where("product_id = ? AND owner = ? AND port BETWEEN ? AND ?", product.ID, owner, product.DedicatedPortStart, product.DedicatedPortEnd).
			Order("port").Limit(1).Pluck("port", &existing).Error
		if err != nil {
			return fmt.Errorf("failed to load claims of %s: %w", owner, err)
		}
		if len(existing) > 0 {
			claimed, reused = existing[0], true
			return nil
		}

		held, err := heldPorts(tx, product.ID)
		if err != nil {
			return err
		}
		taken := make(map[int]struct{}, len(held))
		for _, p := range held {
			taken[p] = struct{}{}
		}
		for port := product.DedicatedPortStart; port <= product.DedicatedPortEnd; port++ {
			if _, ok := taken[port]; ok {
				continue
			}
			claim := &models.PortClaim{ID: tool.GenerateUUIDV7(), ProductID: product.ID, Port: port, Owner: owner}
			// savepoint, so a lost race does not abort the outer transaction
			err := tx.Transaction(func(sp *gorm.DB) error {
				return sp.Create(claim).Error
			})
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to claim port %d: %w", port, err)
			}
			claimed = port
			return nil
		}
		return apperr.PortExhaustion("no free dedicated port for %s in %d-%d", product.Name, product.DedicatedPortStart, product.DedicatedPortEnd)
	})
	if err != nil {
		return 0, err
	}
	logctx.FromCtx(ctx, a.log).Infow("dedicated port claimed", "product", product.Name, "port", claimed, "owner", owner, "reused", reused)
	return claimed, nil
}

// Release frees port. Releasing a port that is not held is a no-op.
func (a *Allocator) Release(ctx context.Context, productID string, port int) error {
	unlock := a.locks.Lock(productID)
	defer unlock()

	res := a.db.WithContext(ctx).Where("product_id = ? AND port = ?", productID, port).Delete(&models.PortClaim{})
	if res.Error != nil {
		return fmt.Errorf("failed to release port %d: %w", port, res.Error)
	}
	if res.RowsAffected > 0 {
		logctx.FromCtx(ctx, a.log).Infow("dedicated port released", "product_id", productID, "port", port)
	}
	return nil
}

// ReleaseOwner frees every port owner holds for the product and returns them.
func (a *Allocator) ReleaseOwner(ctx context.Context, productID, owner string) ([]int, error) {
	unlock := a.locks.Lock(productID)
	defer unlock()

	var ports []int
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.PortClaim{}).Where("product_id = ? AND owner = ?", productID, owner)
		if err := q.Order("port").Pluck("port", &ports).Error; err != nil {
			return err
		}
		if len(ports) == 0 {
			return nil
		}
		return tx.Where("product_id = ? AND owner = ?", productID, owner).Delete(&models.PortClaim{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to release ports of %s: %w", owner, err)
	}
	if len(ports) > 0 {
		logctx.FromCtx(ctx, a.log).Infow("dedicated ports released", "product_id", productID, "owner", owner, "ports", ports)
	}
	return ports, nil
}

// Held lists the claimed ports of a product in ascending order.
func (a *Allocator) Held(ctx context.Context, productID string) ([]int, error) {
	return heldPorts(a.db.WithContext(ctx), productID)
}

func heldPorts(db *gorm.DB, productID string) ([]int, error) {
	var ports []int
	err := db.Model(&models.PortClaim{}).Where("product_id = ?", productID).Order("port").Pluck("port", &ports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load held ports: %w", err)
	}
	return ports, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
