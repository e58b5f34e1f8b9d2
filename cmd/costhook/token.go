package main

import (
	"fmt"
	"time"

	"github.com/goliatone/go-costhook/auth"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with the configured JWT secret",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadAppConfig(cfgFile)
		if err != nil {
			return err
		}
		token, err := auth.Issue(cfg.Security.JWTSecret, tokenSubject, cfg.Security.JWTAudience, tokenTTL, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "user id placed in the sub claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("sub")
	rootCmd.AddCommand(tokenCmd)
}
