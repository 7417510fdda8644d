package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"site-cloner/internal/assets"
	"site-cloner/internal/catalog"
	"site-cloner/internal/codec"
	"site-cloner/internal/database"
	"site-cloner/internal/model"
	"site-cloner/internal/provision"
	"site-cloner/internal/repository"
)

// ErrInvalidRequest wraps validation failures of clone and rewrite requests.
var ErrInvalidRequest = errors.New("invalid request")

// CloneService creates new sites as copies of existing ones.
type CloneService interface {
	// Clone provisions a site, copies the source's tables, meta and uploads
	// into it and rewrites the copied data to the new identity. A failed
	// rewrite returns the partial result alongside the error.
	Clone(ctx context.Context, req *model.CloneRequest) (*model.CloneResult, error)

	// Rewrite re-runs only the rewrite step against an existing site.
	Rewrite(ctx context.Context, req *model.RewriteRequest) (*model.RewriteReport, error)

	// ResolveIdentity reads a tenant's identity from its options.
	ResolveIdentity(ctx context.Context, tenant model.Tenant) (model.Identity, error)
}

// CloneRecorder receives clone outcomes.
type CloneRecorder interface {
	CloneFinished(status string, d time.Duration)
}

// CloneDeps are the collaborators of the clone service. Uploads and
// Recorder may be nil.
type CloneDeps struct {
	Store       database.Store
	Sites       repository.SiteRepository
	Options     repository.OptionRepository
	Users       repository.UserRepository
	Meta        repository.MetaRepository
	Provisioner provision.Provisioner
	Rewriter    TableRewriteService
	Uploads     assets.Copier
	Recorder    CloneRecorder
}

type cloneService struct {
	CloneDeps
	network  provision.Network
	layout   assets.Layout
	logger   *zap.Logger
	validate *validator.Validate
	locks    *keyedLock
}

// NewCloneService wires a CloneService.
func NewCloneService(deps CloneDeps, network provision.Network, layout assets.Layout, logger *zap.Logger) CloneService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cloneService{
		CloneDeps: deps,
		network:   network,
		layout:    layout,
		logger:    logger,
		validate:  validator.New(),
		locks:     newKeyedLock(),
	}
}

func (s *cloneService) tenantOf(site *model.Site) model.Tenant {
	return model.Tenant{
		SiteID:    site.BlogID,
		NetworkID: site.SiteID,
		Prefix:    model.TablePrefix(s.network.BasePrefix, site.BlogID, s.network.MainSiteID),
	}
}

func (s *cloneService) Clone(ctx context.Context, req *model.CloneRequest) (result *model.CloneResult, err error) {
	start := time.Now()
	defer func() {
		if s.Recorder == nil {
			return
		}
		status := "success"
		switch {
		case err != nil:
			status = "error"
		case result != nil && result.Report != nil && result.Report.Failed():
			status = "partial"
		}
		s.Recorder.CloneFinished(status, time.Since(start))
	}()

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	source, err := s.Sites.GetByID(ctx, req.FromSiteID)
	if err != nil {
		return nil, fmt.Errorf("source site %d: %w", req.FromSiteID, err)
	}
	user, err := s.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", req.UserID, err)
	}

	domain, path := model.SiteAddress(req.Domain, req.Path)
	unlock, err := s.locks.Lock(ctx, domain+path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	from := s.tenantOf(source)
	to, err := s.Provisioner.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.Int64("from_site", from.SiteID), zap.Int64("to_site", to.SiteID))
	log.Info("clone started", zap.String("domain", domain), zap.String("path", path))

	result = &model.CloneResult{Tenant: to, HomeURL: model.HomeURL(req.Domain, req.Path)}

	if err := s.maybeSetPrimaryBlog(ctx, user, to); err != nil {
		return s.abort(ctx, result, fmt.Errorf("set primary blog: %w", err))
	}

	result.Tables, err = s.copyTables(ctx, from, to)
	if err != nil {
		return s.abort(ctx, result, err)
	}

	// Tables are in place; later failures leave the site for inspection.
	if err := s.seedOptions(ctx, req, user, from, to, result.HomeURL); err != nil {
		return result, err
	}
	if err := s.copyMeta(ctx, user, from, to); err != nil {
		return result, err
	}

	if req.CopyUploads && s.Uploads != nil {
		n, err := s.Uploads.CopyUploads(ctx, from, to)
		if err != nil {
			return result, fmt.Errorf("copy uploads: %w", err)
		}
		result.Uploaded = n
	}

	if result.From, err = s.ResolveIdentity(ctx, from); err != nil {
		return result, err
	}
	if result.To, err = s.ResolveIdentity(ctx, to); err != nil {
		return result, err
	}

	result.Report, err = s.rewrite(ctx, to, result.From, result.To)
	if err != nil {
		return result, err
	}

	if err := s.Sites.Touch(ctx, to.SiteID); err != nil {
		log.Warn("failed to touch site", zap.Error(err))
	}
	log.Info("clone finished",
		zap.Int("tables", len(result.Tables)),
		zap.Int("uploads", result.Uploaded),
		zap.Int("rows_updated", result.Report.RowsUpdated),
		zap.Int("rows_failed", len(result.Report.RowsFailed)),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// abort removes the half-built destination and returns err.
func (s *cloneService) abort(ctx context.Context, result *model.CloneResult, err error) (*model.CloneResult, error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if cerr := s.Provisioner.Cleanup(cleanupCtx, result.Tenant); cerr != nil {
		s.logger.Error("cleanup after failed clone", zap.Int64("site_id", result.Tenant.SiteID), zap.Error(cerr))
		return nil, errors.Join(err, fmt.Errorf("cleanup: %w", cerr))
	}
	return nil, err
}

func (s *cloneService) Rewrite(ctx context.Context, req *model.RewriteRequest) (*model.RewriteReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	site, err := s.Sites.GetByID(ctx, req.SiteID)
	if err != nil {
		return nil, fmt.Errorf("site %d: %w", req.SiteID, err)
	}
	unlock, err := s.locks.Lock(ctx, site.Domain+site.Path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.rewrite(ctx, s.tenantOf(site), req.From, req.To)
}

func (s *cloneService) rewrite(ctx context.Context, to model.Tenant, fromID, toID model.Identity) (*model.RewriteReport, error) {
	cat, err := catalog.Discover(ctx, s.Store, to, catalog.OtherTenantTable(to.Prefix))
	if err != nil {
		return nil, err
	}
	return s.Rewriter.RewriteTables(ctx, to, fromID, toID, cat, catalog.DefaultGlobal(s.network.BasePrefix, to))
}

// ResolveIdentity reads siteurl and upload_url_path from the tenant's options.
func (s *cloneService) ResolveIdentity(ctx context.Context, tenant model.Tenant) (model.Identity, error) {
	siteURL, err := s.Options.Get(ctx, tenant, "siteurl")
	if err != nil {
		return model.Identity{}, fmt.Errorf("siteurl of site %d: %w", tenant.SiteID, err)
	}
	assetURL := s.layout.URL(siteURL, tenant.SiteID)
	custom, err := s.Options.Get(ctx, tenant, "upload_url_path")
	switch {
	case err == nil && custom != "":
		assetURL = custom
	case err != nil && !errors.Is(err, repository.ErrOptionNotFound):
		return model.Identity{}, fmt.Errorf("upload_url_path of site %d: %w", tenant.SiteID, err)
	}
	return model.Identity{Prefix: tenant.Prefix, BaseURL: siteURL, AssetURL: assetURL}, nil
}

// maybeSetPrimaryBlog points a regular user's primary blog at the new site
// unless one is already set.
func (s *cloneService) maybeSetPrimaryBlog(ctx context.Context, user *model.User, to model.Tenant) error {
	admin, err := s.isSuperAdmin(ctx, user, to.NetworkID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	current, err := s.Users.GetMeta(ctx, user.ID, "primary_blog")
	if err != nil && !errors.Is(err, repository.ErrMetaNotFound) {
		return err
	}
	if current != "" {
		return nil
	}
	return s.Users.SetMeta(ctx, user.ID, "primary_blog", fmt.Sprint(to.SiteID))
}

// isSuperAdmin looks the user's login up in the network's serialized
// site_admins list.
func (s *cloneService) isSuperAdmin(ctx context.Context, user *model.User, networkID int64) (bool, error) {
	raw, err := s.Meta.NetworkMeta(ctx, networkID, "site_admins")
	if errors.Is(err, repository.ErrMetaNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logins, err := SuperAdmins(raw)
	if err != nil {
		s.logger.Warn("unreadable site_admins", zap.Int64("network_id", networkID), zap.Error(err))
		return false, nil
	}
	for _, l := range logins {
		if l == user.UserLogin {
			return true, nil
		}
	}
	return false, nil
}

// SuperAdmins decodes the site_admins network option.
func SuperAdmins(raw string) ([]string, error) {
	v, err := codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	var logins []string
	switch t := v.(type) {
	case codec.List:
		for _, e := range t {
			if s, ok := e.(codec.String); ok {
				logins = append(logins, string(s))
			}
		}
	case codec.Map:
		for _, e := range t {
			if s, ok := e.Value.(codec.String); ok {
				logins = append(logins, string(s))
			}
		}
	default:
		return nil, fmt.Errorf("site_admins is a %s", v.Kind())
	}
	return logins, nil
}

// copyTables copies every source table into the destination prefix. The
// main site shares its prefix with network tables, so only the default
// catalog is copied from it.
func (s *cloneService) copyTables(ctx context.Context, from, to model.Tenant) ([]string, error) {
	var sources []string
	if from.SiteID == s.network.MainSiteID {
		for _, suffix := range catalog.Default().Suffixes() {
			sources = append(sources, from.Table(suffix))
		}
	} else {
		names, err := s.Store.ListTables(ctx, from.Prefix)
		if err != nil {
			return nil, fmt.Errorf("list source tables: %w", err)
		}
		sources = names
	}

	copied := make([]string, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		dst := to.Prefix + src[len(from.Prefix):]
		if err := s.Store.CopyTable(ctx, src, dst); err != nil {
			return copied, fmt.Errorf("copy table %s: %w", src, err)
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

func (s *cloneService) seedOptions(ctx context.Context, req *model.CloneRequest, user *model.User, from, to model.Tenant, homeURL string) error {
	title := req.Title
	if title == "" {
		var err error
		if title, err = s.Options.Get(ctx, from, "blogname"); err != nil && !errors.Is(err, repository.ErrOptionNotFound) {
			return fmt.Errorf("read blogname: %w", err)
		}
	}
	options := []struct{ name, value string }{
		{"siteurl", homeURL},
		{"home", homeURL},
		{"blogname", title},
		{"admin_email", user.UserEmail},
	}
	for _, o := range options {
		if err := s.Options.Set(ctx, to, o.name, o.value); err != nil {
			return fmt.Errorf("set option %s: %w", o.name, err)
		}
	}
	return nil
}

// copyMeta carries the source's per-site user meta and blog meta over and
// makes the requesting user an administrator of the new site.
func (s *cloneService) copyMeta(ctx context.Context, user *model.User, from, to model.Tenant) error {
	if _, err := s.Users.CopyTenantMeta(ctx, from, to); err != nil {
		return fmt.Errorf("copy user meta: %w", err)
	}
	caps := codec.Encode(codec.Map{{Key: codec.String("administrator"), Value: codec.Bool(true)}})
	if err := s.Users.SetMeta(ctx, user.ID, to.Prefix+"capabilities", caps); err != nil {
		return fmt.Errorf("grant capabilities: %w", err)
	}
	if err := s.Users.SetMeta(ctx, user.ID, to.Prefix+"user_level", "10"); err != nil {
		return fmt.Errorf("grant user level: %w", err)
	}
	if _, err := s.Meta.CopyBlogMeta(ctx, from.SiteID, to.SiteID); err != nil {
		return fmt.Errorf("copy blog meta: %w", err)
	}
	return nil
}
