package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codepage/codepage/pkg/config"
	"github.com/codepage/codepage/pkg/ingest/detect"
	"github.com/codepage/codepage/pkg/report"
	"github.com/codepage/codepage/pkg/tui"
)

var (
	configPaths bool
	configSave  string
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List the detector chain in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		order := a.resolver.Chain().Detectors()
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string][]string{
				"order":     order,
				"available": detect.Names(),
				"sinks":     report.Names(),
			})
		}

		out := cmd.OutOrStdout()
		tui.PrintList(out, "chain", order)
		fmt.Fprintln(out)
		tui.PrintList(out, "available", detect.Names())
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, config files, CODEPAGE_*
environment variables and flags. --save writes it to a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		if configPaths {
			loaded := a.manager.Paths()
			if len(loaded) == 0 {
				fmt.Fprintln(out, "# no config files loaded; searched:")
				for _, p := range config.DefaultSearchPaths() {
					fmt.Fprintln(out, "#  ", p)
				}
				return nil
			}
			for _, p := range loaded {
				fmt.Fprintln(out, p)
			}
			return nil
		}

		if configSave != "" {
			if err := a.manager.Save(configSave); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", configSave)
			return nil
		}

		data, err := a.manager.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	configCmd.Flags().BoolVar(&configPaths, "paths", false, "List the config files that were loaded")
	configCmd.Flags().StringVar(&configSave, "save", "", "Write the effective configuration to this path")
}
