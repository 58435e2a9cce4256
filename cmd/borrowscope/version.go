package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/borrowscope/borrowscope/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "borrowscope %s (commit %s, built %s)\n", buildVersion, commit, date)
			fmt.Fprintf(cmd.OutOrStdout(), "pinned rustowl release: %s\n", version.Required)
		},
	}
}
