// Package assets duplicates a site's upload tree when it is cloned.
package assets

import (
	"context"
	"path"
	"strconv"
	"strings"

	"site-cloner/internal/model"
)

// Copier duplicates the uploads of one tenant into another's directory and
// returns the number of files copied.
type Copier interface {
	CopyUploads(ctx context.Context, from, to model.Tenant) (int, error)
}

// DefaultUploadsPath is where uploads live relative to the site root.
const DefaultUploadsPath = "wp-content/uploads"

// Layout maps tenants to upload directories. The main site owns the uploads
// root; every other site gets sites/<id> below it.
type Layout struct {
	UploadsPath string
	MainSiteID  int64
}

func (l Layout) uploadsPath() string {
	if l.UploadsPath == "" {
		return DefaultUploadsPath
	}
	return strings.Trim(l.UploadsPath, "/")
}

// Dir returns the tenant's upload directory relative to the uploads root,
// empty for the main site.
func (l Layout) Dir(siteID int64) string {
	if siteID == l.MainSiteID {
		return ""
	}
	return path.Join("sites", strconv.FormatInt(siteID, 10))
}

// URL returns the public URL of the tenant's upload directory under siteURL.
func (l Layout) URL(siteURL string, siteID int64) string {
	u := strings.TrimRight(siteURL, "/") + "/" + l.uploadsPath()
	if d := l.Dir(siteID); d != "" {
		u += "/" + d
	}
	return u
}

// sourceFilter reports paths, relative to the source directory, that belong
// to other tenants. Only the main site's directory contains them.
func (l Layout) sourceFilter(from model.Tenant) func(rel string) bool {
	if from.SiteID != l.MainSiteID {
		return func(string) bool { return false }
	}
	return func(rel string) bool {
		return rel == "sites" || strings.HasPrefix(rel, "sites/")
	}
}
