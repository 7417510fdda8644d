package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"site-cloner/internal/catalog"
	"site-cloner/internal/database"
	"site-cloner/internal/model"
)

type userRepository struct {
	db        *gorm.DB
	usersTbl  string
	metaTable string
}

// NewUserRepository creates a UserRepository over the network's users and
// usermeta tables
func NewUserRepository(db *gorm.DB, basePrefix string) UserRepository {
	return &userRepository{db: db, usersTbl: basePrefix + "users", metaTable: basePrefix + "usermeta"}
}

// GetByID retrieves a user by id
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	result := r.db.WithContext(ctx).Table(r.usersTbl).Where("ID = ?", id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetMeta returns a user meta value
func (r *userRepository) GetMeta(ctx context.Context, userID int64, key string) (string, error) {
	var meta model.UserMeta
	result := r.db.WithContext(ctx).Table(r.metaTable).
		Where("user_id = ? AND meta_key = ?", userID, key).
		Order("umeta_id").
		First(&meta)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrMetaNotFound
		}
		return "", result.Error
	}
	return meta.MetaValue, nil
}

// SetMeta inserts or overwrites a user meta value. usermeta has no unique
// key on (user_id, meta_key), so the row is looked up first.
func (r *userRepository) SetMeta(ctx context.Context, userID int64, key, value string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meta model.UserMeta
		result := tx.Table(r.metaTable).Where("user_id = ? AND meta_key = ?", userID, key).First(&meta)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tx.Table(r.metaTable).Create(&model.UserMeta{UserID: userID, MetaKey: key, MetaValue: value}).Error
		}
		if result.Error != nil {
			return result.Error
		}
		return tx.Table(r.metaTable).
			Where("user_id = ? AND meta_key = ?", userID, key).
			Update("meta_value", value).Error
	})
}

// CopyTenantMeta duplicates every meta row keyed by the source prefix under
// the destination prefix. Keys of other numbered tenants sharing the source
// prefix are skipped. Existing destination rows with the same key are
// replaced.
func (r *userRepository) CopyTenantMeta(ctx context.Context, from, to model.Tenant) (int64, error) {
	var rows []model.UserMeta
	err := r.db.WithContext(ctx).Table(r.metaTable).
		Where("meta_key LIKE ?", database.EscapeLike(from.Prefix)+"%").
		Order("umeta_id").
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	copies := RenameTenantKeys(rows, from.Prefix, to.Prefix)
	if len(copies) == 0 {
		return 0, nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range copies {
			if err := tx.Table(r.metaTable).
				Where("user_id = ? AND meta_key = ?", m.UserID, m.MetaKey).
				Delete(&model.UserMeta{}).Error; err != nil {
				return err
			}
		}
		return tx.Table(r.metaTable).CreateInBatches(&copies, 200).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(copies)), nil
}

// RenameTenantKeys returns new rows with the from prefix of each key swapped
// for to. Rows belonging to other tenants nested under from are dropped.
func RenameTenantKeys(rows []model.UserMeta, from, to string) []model.UserMeta {
	nested := catalog.OtherTenantTable(from)
	var out []model.UserMeta
	for _, m := range rows {
		if !strings.HasPrefix(m.MetaKey, from) || nested(m.MetaKey) {
			continue
		}
		out = append(out, model.UserMeta{
			UserID:    m.UserID,
			MetaKey:   to + strings.TrimPrefix(m.MetaKey, from),
			MetaValue: m.MetaValue,
		})
	}
	return out
}
