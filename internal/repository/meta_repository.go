package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"vitess.io/vitess/go/sqlescape"

	"site-cloner/internal/model"
)

type metaRepository struct {
	db       *gorm.DB
	siteMeta string
	blogMeta string
}

// NewMetaRepository creates a MetaRepository over <basePrefix>sitemeta and
// <basePrefix>blogmeta
func NewMetaRepository(db *gorm.DB, basePrefix string) MetaRepository {
	return &metaRepository{db: db, siteMeta: basePrefix + "sitemeta", blogMeta: basePrefix + "blogmeta"}
}

// NetworkMeta returns a sitemeta value for a network
func (r *metaRepository) NetworkMeta(ctx context.Context, networkID int64, key string) (string, error) {
	var meta model.NetworkMeta
	result := r.db.WithContext(ctx).Table(r.siteMeta).
		Where("site_id = ? AND meta_key = ?", networkID, key).
		First(&meta)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrMetaNotFound
		}
		return "", result.Error
	}
	return meta.MetaValue, nil
}

// CopyBlogMeta replaces the destination site's blog meta with a copy of the
// source site's rows
func (r *metaRepository) CopyBlogMeta(ctx context.Context, fromSiteID, toSiteID int64) (int64, error) {
	table := sqlescape.EscapeID(r.blogMeta)
	var copied int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(r.blogMeta).Where("blog_id = ?", toSiteID).Delete(&model.BlogMeta{}).Error; err != nil {
			return err
		}
		res := tx.Exec(
			"INSERT INTO "+table+" (blog_id, meta_key, meta_value) SELECT ?, meta_key, meta_value FROM "+table+" WHERE blog_id = ? ORDER BY meta_id",
			toSiteID, fromSiteID,
		)
		copied = res.RowsAffected
		return res.Error
	})
	return copied, err
}
