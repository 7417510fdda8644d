package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"site-cloner/internal/model"
)

type siteRepository struct {
	db    *gorm.DB
	table string
}

// NewSiteRepository creates a SiteRepository over <basePrefix>blogs
func NewSiteRepository(db *gorm.DB, basePrefix string) SiteRepository {
	return &siteRepository{db: db, table: basePrefix + "blogs"}
}

// GetByID retrieves a site by blog id
func (r *siteRepository) GetByID(ctx context.Context, blogID int64) (*model.Site, error) {
	var site model.Site
	result := r.db.WithContext(ctx).Table(r.table).Where("blog_id = ?", blogID).First(&site)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, result.Error
	}
	return &site, nil
}

// GetByAddress retrieves a site by domain and path
func (r *siteRepository) GetByAddress(ctx context.Context, domain, path string) (*model.Site, error) {
	var site model.Site
	result := r.db.WithContext(ctx).Table(r.table).Where("domain = ? AND path = ?", domain, path).First(&site)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, result.Error
	}
	return &site, nil
}

// Create inserts a site row and fills in its blog id
func (r *siteRepository) Create(ctx context.Context, site *model.Site) error {
	now := time.Now()
	if site.Registered.IsZero() {
		site.Registered = now
	}
	if site.LastUpdated.IsZero() {
		site.LastUpdated = now
	}
	return r.db.WithContext(ctx).Table(r.table).Create(site).Error
}

// Delete removes a site row
func (r *siteRepository) Delete(ctx context.Context, blogID int64) error {
	result := r.db.WithContext(ctx).Table(r.table).Where("blog_id = ?", blogID).Delete(&model.Site{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSiteNotFound
	}
	return nil
}

// Touch sets last_updated to now
func (r *siteRepository) Touch(ctx context.Context, blogID int64) error {
	return r.db.WithContext(ctx).Table(r.table).
		Where("blog_id = ?", blogID).
		Update("last_updated", time.Now()).Error
}
