// Package provision creates and removes the site record a clone writes into.
package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"site-cloner/internal/database"
	"site-cloner/internal/model"
	"site-cloner/internal/repository"
)

// ErrAddressTaken is returned when a site already answers on the requested
// domain and path.
var ErrAddressTaken = errors.New("site address already in use")

// Provisioner allocates the destination tenant of a clone.
type Provisioner interface {
	Create(ctx context.Context, req *model.CloneRequest) (model.Tenant, error)
	// Cleanup removes a tenant whose clone failed before its tables were
	// fully copied.
	Cleanup(ctx context.Context, tenant model.Tenant) error
}

// Network describes the multisite install being provisioned into.
type Network struct {
	BasePrefix string
	MainSiteID int64
	NetworkID  int64
}

// SiteProvisioner registers sites in the blogs table and drops their tables
// on cleanup.
type SiteProvisioner struct {
	db      *gorm.DB
	sites   repository.SiteRepository
	network Network
	logger  *zap.Logger
}

func NewSiteProvisioner(db *gorm.DB, sites repository.SiteRepository, network Network, logger *zap.Logger) *SiteProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteProvisioner{db: db, sites: sites, network: network, logger: logger}
}

func (p *SiteProvisioner) Create(ctx context.Context, req *model.CloneRequest) (model.Tenant, error) {
	site := NewSite(req, p.network)

	existing, err := p.sites.GetByAddress(ctx, site.Domain, site.Path)
	switch {
	case err == nil:
		return model.Tenant{}, fmt.Errorf("%w: %s%s is site %d", ErrAddressTaken, existing.Domain, existing.Path, existing.BlogID)
	case !errors.Is(err, repository.ErrSiteNotFound):
		return model.Tenant{}, fmt.Errorf("look up site address: %w", err)
	}

	if err := p.sites.Create(ctx, site); err != nil {
		return model.Tenant{}, fmt.Errorf("create site: %w", err)
	}

	tenant := model.Tenant{
		SiteID:    site.BlogID,
		NetworkID: site.SiteID,
		Prefix:    model.TablePrefix(p.network.BasePrefix, site.BlogID, p.network.MainSiteID),
	}
	p.logger.Info("site provisioned",
		zap.Int64("site_id", tenant.SiteID),
		zap.String("prefix", tenant.Prefix),
		zap.String("domain", site.Domain),
		zap.String("path", site.Path))
	return tenant, nil
}

// Cleanup drops the tenant's tables and deletes its site row.
func (p *SiteProvisioner) Cleanup(ctx context.Context, tenant model.Tenant) error {
	if tenant.SiteID == p.network.MainSiteID || tenant.Prefix == p.network.BasePrefix {
		return fmt.Errorf("refusing to clean up the main site")
	}

	var tables []string
	err := p.db.WithContext(ctx).Raw(
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME LIKE ?",
		database.EscapeLike(tenant.Prefix)+"%",
	).Scan(&tables).Error
	if err != nil {
		return fmt.Errorf("list tables for cleanup: %w", err)
	}

	migrator := p.db.WithContext(ctx).Migrator()
	for _, t := range tables {
		if err := migrator.DropTable(t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}

	if err := p.sites.Delete(ctx, tenant.SiteID); err != nil && !errors.Is(err, repository.ErrSiteNotFound) {
		return fmt.Errorf("delete site %d: %w", tenant.SiteID, err)
	}
	p.logger.Info("site cleaned up", zap.Int64("site_id", tenant.SiteID), zap.Int("tables_dropped", len(tables)))
	return nil
}

// NewSite builds the blogs row for a clone request.
func NewSite(req *model.CloneRequest, network Network) *model.Site {
	domain, path := model.SiteAddress(req.Domain, req.Path)
	networkID := req.NetworkID
	if networkID == 0 {
		networkID = network.NetworkID
	}
	public := 1
	if req.Public != nil && !*req.Public {
		public = 0
	}
	return &model.Site{
		SiteID: networkID,
		Domain: domain,
		Path:   path,
		Public: public,
	}
}
