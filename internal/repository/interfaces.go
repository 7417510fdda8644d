package repository

import (
	"context"

	"site-cloner/internal/model"
)

// SiteRepository reads and writes the network's blogs table.
type SiteRepository interface {
	// GetByID retrieves a site by blog id
	GetByID(ctx context.Context, blogID int64) (*model.Site, error)

	// GetByAddress retrieves a site by domain and path
	GetByAddress(ctx context.Context, domain, path string) (*model.Site, error)

	// Create inserts a site row and fills in its blog id
	Create(ctx context.Context, site *model.Site) error

	// Delete removes a site row
	Delete(ctx context.Context, blogID int64) error

	// Touch sets last_updated to now
	Touch(ctx context.Context, blogID int64) error
}

// OptionRepository reads and writes one tenant's options table.
type OptionRepository interface {
	// Get returns an option value
	Get(ctx context.Context, tenant model.Tenant, name string) (string, error)

	// Set inserts or overwrites an option
	Set(ctx context.Context, tenant model.Tenant, name, value string) error
}

// UserRepository reads users and writes user meta.
type UserRepository interface {
	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id int64) (*model.User, error)

	// GetMeta returns a user meta value
	GetMeta(ctx context.Context, userID int64, key string) (string, error)

	// SetMeta inserts or overwrites a user meta value
	SetMeta(ctx context.Context, userID int64, key, value string) error

	// CopyTenantMeta duplicates every meta row keyed by the source tenant's
	// prefix under the destination prefix and returns the number copied
	CopyTenantMeta(ctx context.Context, from, to model.Tenant) (int64, error)
}

// MetaRepository reads network meta and copies blog meta.
type MetaRepository interface {
	// NetworkMeta returns a sitemeta value for a network
	NetworkMeta(ctx context.Context, networkID int64, key string) (string, error)

	// CopyBlogMeta duplicates the blog meta rows of one site onto another
	CopyBlogMeta(ctx context.Context, fromSiteID, toSiteID int64) (int64, error)
}
