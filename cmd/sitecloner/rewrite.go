package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"site-cloner/internal/catalog"
	"site-cloner/internal/model"
)

var rewriteFlags struct {
	siteID int64
	from   model.Identity
	to     model.Identity
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite",
	Short: "Rewrite one identity to another across a site's tables",
	Long: "Replace the --from prefix and URLs with the --to ones in every table of the site. " +
		"When the --to values are omitted they are read from the site's options.",
	Example: "  sitecloner rewrite --site 5 --from-prefix wp_2_ --from-url https://a.example --from-asset-url https://a.example/wp-content/uploads/sites/2",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := runRewrite(ctx, a, rewriteFlags.siteID, rewriteFlags.from, rewriteFlags.to)
		if report != nil {
			if perr := printJSON(report); perr != nil {
				return perr
			}
		}
		return err
	},
}

func runRewrite(ctx context.Context, a *app, siteID int64, from, to model.Identity) (*model.RewriteReport, error) {
	if a.clones != nil {
		if to == (model.Identity{}) {
			site, err := a.sites.GetByID(ctx, siteID)
			if err != nil {
				return nil, fmt.Errorf("site %d: %w", siteID, err)
			}
			tenant := model.Tenant{
				SiteID:    site.BlogID,
				NetworkID: site.SiteID,
				Prefix:    model.TablePrefix(cfg.Clone.BasePrefix, site.BlogID, cfg.Clone.MainSiteID),
			}
			if to, err = a.clones.ResolveIdentity(ctx, tenant); err != nil {
				return nil, err
			}
		}
		return a.clones.Rewrite(ctx, &model.RewriteRequest{SiteID: siteID, From: from, To: to})
	}

	// The Data API store has no repositories; address the tenant directly.
	if to == (model.Identity{}) {
		return nil, errors.New("--to-prefix, --to-url and --to-asset-url are required with the rds-data driver")
	}
	tenant := model.Tenant{
		SiteID:    siteID,
		NetworkID: cfg.Clone.NetworkID,
		Prefix:    model.TablePrefix(cfg.Clone.BasePrefix, siteID, cfg.Clone.MainSiteID),
	}
	cat, err := catalog.Discover(ctx, a.store, tenant, catalog.OtherTenantTable(tenant.Prefix))
	if err != nil {
		return nil, err
	}
	return a.rewriter.RewriteTables(ctx, tenant, from, to, cat, catalog.DefaultGlobal(cfg.Clone.BasePrefix, tenant))
}

func init() {
	f := rewriteCmd.Flags()
	f.Int64Var(&rewriteFlags.siteID, "site", 0, "Blog ID of the site to rewrite")
	f.StringVar(&rewriteFlags.from.Prefix, "from-prefix", "", "Old table prefix")
	f.StringVar(&rewriteFlags.from.BaseURL, "from-url", "", "Old site URL")
	f.StringVar(&rewriteFlags.from.AssetURL, "from-asset-url", "", "Old uploads URL")
	f.StringVar(&rewriteFlags.to.Prefix, "to-prefix", "", "New table prefix")
	f.StringVar(&rewriteFlags.to.BaseURL, "to-url", "", "New site URL")
	f.StringVar(&rewriteFlags.to.AssetURL, "to-asset-url", "", "New uploads URL")
	_ = rewriteCmd.MarkFlagRequired("site")
	_ = rewriteCmd.MarkFlagRequired("from-prefix")
	_ = rewriteCmd.MarkFlagRequired("from-url")
	_ = rewriteCmd.MarkFlagRequired("from-asset-url")
	rewriteCmd.MarkFlagsRequiredTogether("to-prefix", "to-url", "to-asset-url")
}
