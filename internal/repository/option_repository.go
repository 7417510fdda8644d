package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"site-cloner/internal/model"
)

type optionRepository struct {
	db *gorm.DB
}

// NewOptionRepository creates an OptionRepository. The table is chosen per
// call from the tenant handle.
func NewOptionRepository(db *gorm.DB) OptionRepository {
	return &optionRepository{db: db}
}

// Get returns an option value
func (r *optionRepository) Get(ctx context.Context, tenant model.Tenant, name string) (string, error) {
	var opt model.Option
	result := r.db.WithContext(ctx).Table(tenant.Table("options")).Where("option_name = ?", name).First(&opt)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrOptionNotFound
		}
		return "", result.Error
	}
	return opt.OptionValue, nil
}

// Set inserts or overwrites an option; option_name is unique
func (r *optionRepository) Set(ctx context.Context, tenant model.Tenant, name, value string) error {
	opt := model.Option{OptionName: name, OptionValue: value, Autoload: "yes"}
	return r.db.WithContext(ctx).Table(tenant.Table("options")).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "option_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"option_value"}),
	}).Create(&opt).Error
}
