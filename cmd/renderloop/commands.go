package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/render-loop/internal/config"
	"github.com/kingrea/render-loop/internal/logbook"
)

func newInitCmd(root *rootOptions) *cobra.Command {
	var (
		sets   map[string]string
		values []int
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .renderloop/config.yaml",
		Long: `Creates the .renderloop directory and a commented default config file.
An existing config file is left alone unless --set or --values are given, in
which case the overrides are merged into it. Comments in the file are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(root.dir)
			if err != nil {
				return err
			}
			if err := config.InitDir(dir); err != nil {
				return err
			}
			cfg, err := config.NewConfig(dir)
			if err != nil {
				return err
			}
			if len(sets) > 0 || cmd.Flags().Changed("values") {
				if err := cfg.Override(sets); err != nil {
					return err
				}
				if cmd.Flags().Changed("values") {
					cfg.Render.Values = append([]int{}, values...)
				}
				if err := cfg.Save(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.ProjectConfigPath())
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&sets, "set", nil, "config field to store (tool, source, param, output, command), repeatable")
	cmd.Flags().IntSliceVar(&values, "values", nil, "parameter values to store")
	return cmd
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent renders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(root.dir)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(dir, root.configFile)
			if err != nil {
				return err
			}
			book, err := logbook.New(cfg.HistoryPath())
			if err != nil {
				return err
			}
			entries, total := book.Tail(lines)
			out := cmd.OutOrStdout()
			if total == 0 {
				fmt.Fprintln(out, "No renders recorded yet.")
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintln(out, entry)
			}
			if total > len(entries) {
				fmt.Fprintf(out, "(%d of %d entries shown)\n", len(entries), total)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of entries to show")
	return cmd
}
