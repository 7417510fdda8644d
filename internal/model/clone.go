package model

// CloneRequest describes a new site to create from an existing one.
type CloneRequest struct {
	FromSiteID int64  `json:"fromSiteId" validate:"required,min=1"`
	Domain     string `json:"domain" validate:"required,min=1,max=200"`
	Path       string `json:"path" validate:"omitempty,max=100"`
	Title      string `json:"title" validate:"omitempty,max=255"`
	UserID     int64  `json:"userId" validate:"required,min=1"`
	NetworkID  int64  `json:"networkId" validate:"omitempty,min=1"`
	Public     *bool  `json:"public,omitempty"`
	// CopyUploads duplicates the source upload tree when an asset copier is configured.
	CopyUploads bool `json:"copyUploads"`
}

// CloneResult is what a finished clone returns to its caller.
type CloneResult struct {
	Tenant   Tenant         `json:"tenant"`
	HomeURL  string         `json:"homeUrl"`
	Tables   []string       `json:"tables"`
	From     Identity       `json:"from"`
	To       Identity       `json:"to"`
	Report   *RewriteReport `json:"report"`
	Uploaded int            `json:"uploadedFiles"`
}

// RewriteRequest re-runs only the rewrite step against an existing site.
type RewriteRequest struct {
	SiteID int64    `json:"siteId" validate:"required,min=1"`
	From   Identity `json:"from" validate:"required"`
	To     Identity `json:"to" validate:"required"`
}
