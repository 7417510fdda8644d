package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidIdentity is returned for identities that cannot drive a rewrite.
var ErrInvalidIdentity = errors.New("invalid tenant identity")

// Identity is the set of strings that brand one tenant's data.
type Identity struct {
	Prefix   string `json:"prefix" validate:"required"`
	BaseURL  string `json:"baseUrl" validate:"required,url"`
	AssetURL string `json:"assetUrl" validate:"required,url"`
}

// Validate reports an empty field.
func (id Identity) Validate() error {
	switch {
	case id.Prefix == "":
		return fmt.Errorf("%w: empty table prefix", ErrInvalidIdentity)
	case id.BaseURL == "":
		return fmt.Errorf("%w: empty base url", ErrInvalidIdentity)
	case id.AssetURL == "":
		return fmt.Errorf("%w: empty asset url", ErrInvalidIdentity)
	}
	return nil
}

func (id Identity) String() string {
	return fmt.Sprintf("{prefix=%s url=%s assets=%s}", id.Prefix, id.BaseURL, id.AssetURL)
}

// Tenant is an explicit handle to one site's table namespace. It replaces any
// notion of a "current site": every store call receives the tenant it targets.
type Tenant struct {
	SiteID    int64  `json:"siteId"`
	NetworkID int64  `json:"networkId"`
	Prefix    string `json:"prefix"`
}

// Table returns the physical name of a tenant table.
func (t Tenant) Table(suffix string) string {
	return t.Prefix + suffix
}

// TablePrefix computes a site's prefix the way multisite does: the main site
// uses the bare base prefix, every other site appends "<id>_".
func TablePrefix(basePrefix string, siteID, mainSiteID int64) string {
	if siteID == mainSiteID {
		return basePrefix
	}
	return basePrefix + strconv.FormatInt(siteID, 10) + "_"
}

// HomeURL joins a domain and path into the new site's home URL. Slashes at
// the join are trimmed and http:// is assumed when the domain has no scheme.
func HomeURL(domain, path string) string {
	domain = strings.TrimRight(domain, "/")
	if !strings.Contains(domain, "://") {
		domain = "http://" + domain
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return domain
	}
	return domain + "/" + path
}

// SiteAddress splits a requested domain and path into the host and the
// slash-wrapped path stored in the blogs table.
func SiteAddress(domain, path string) (host, sitePath string) {
	host = domain
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimRight(host, "/")
	path = strings.Trim(path, "/")
	if path == "" {
		return host, "/"
	}
	return host, "/" + path + "/"
}
