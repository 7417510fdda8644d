package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"site-cloner/internal/model"
)

var cloneFlags struct {
	req    model.CloneRequest
	public bool
}

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone a site into a new address",
	Long: "Provision a new site at --domain/--path, copy the source site's tables, options, " +
		"user meta and uploads into it and rewrite the copied data to the new identity.",
	Example: "  sitecloner clone --from 2 --domain b.example --user 1 --copy-uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.clones == nil {
			return errors.New("clone requires the mysql database driver")
		}

		req := cloneFlags.req
		if cmd.Flags().Changed("public") {
			req.Public = &cloneFlags.public
		}
		result, err := a.clones.Clone(cmd.Context(), &req)
		if result != nil {
			if perr := printJSON(result); perr != nil {
				return perr
			}
		}
		return err
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := cloneCmd.Flags()
	f.Int64Var(&cloneFlags.req.FromSiteID, "from", 0, "Blog ID of the source site")
	f.StringVar(&cloneFlags.req.Domain, "domain", "", "Domain of the new site")
	f.StringVar(&cloneFlags.req.Path, "path", "/", "Path of the new site")
	f.StringVar(&cloneFlags.req.Title, "title", "", "Title of the new site (default: source title)")
	f.Int64Var(&cloneFlags.req.UserID, "user", 0, "ID of the user who owns the new site")
	f.Int64Var(&cloneFlags.req.NetworkID, "network", 0, "Network ID (default: clone.network_id)")
	f.BoolVar(&cloneFlags.public, "public", true, "Whether the new site is public")
	f.BoolVar(&cloneFlags.req.CopyUploads, "copy-uploads", false, "Copy the source site's uploads")
	_ = cloneCmd.MarkFlagRequired("from")
	_ = cloneCmd.MarkFlagRequired("domain")
	_ = cloneCmd.MarkFlagRequired("user")
}
