/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "jira-pulse",
	Short:         "Chat assistant for Jira sprint metrics and initiative status changes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			return os.Setenv("CONFIG_FILE", cfgFile)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server, worker pool and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), cmd.OutOrStdout(), args)
	},
}

var checkProject string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify Jira credentials and list the boards of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context(), cmd.OutOrStdout(), checkProject)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml); environment variables take precedence")
	checkCmd.Flags().StringVarP(&checkProject, "project", "p", "", "project key whose boards to list")
	_ = checkCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(serveCmd, askCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
