package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/borrowscope/borrowscope/internal/version"
)

func newInstallCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or update the rustowl analyzer",
		Long:  fmt.Sprintf("Installs rustowl %s into the borrowscope cache, building from\nsource when no prebuilt binary is available.", version.Required),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			closeLogs, err := setupLogging(cfg, false)
			if err != nil {
				return err
			}
			defer closeLogs()

			resolver, err := newResolver(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if !force {
				if loc, err := resolver.Resolve(ctx); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "rustowl %s already available at %s (%s)\n",
						version.Required, loc.Path, loc.Origin)
					return nil
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "installing rustowl %s...\n", version.Required)
			loc, err := resolver.ForceUpdate(ctx)
			if err != nil {
				return resolverError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed rustowl %s at %s\n", version.Required, loc.Path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reinstall even when a usable binary exists")
	return cmd
}
