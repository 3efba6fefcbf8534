package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ygrebnov/mftasks"
	"github.com/ygrebnov/mftasks/mfconfig"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mftasks",
		Short:         "Create and drop MetricFlow materializations",
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("mf-command", "", "MetricFlow command, e.g. \"poetry run mf\"")
	pf.Duration("timeout", 0, "Timeout for each mf invocation (0 disables)")
	pf.String("env-file", "", "Load environment variables from this file")

	root.AddCommand(
		materializeCmd(a),
		dropMaterializationCmd(a),
		configCmd(a),
	)
	return root
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "MetricFlow config as a YAML string; persisted before running")
	cmd.Flags().String("config-file", "", "Read the MetricFlow config from this YAML file (- for stdin)")
	cmd.Flags().String("config-path", "", "MetricFlow config file path (default: $MF_CONFIG_DIR/config.yml or ~/.metricflow/config.yml)")
}

func materializeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "materialize NAME",
		Short: "Materialize metrics on the target warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.configValue(cmd)
			if err != nil {
				return err
			}
			startTime, _ := cmd.Flags().GetString("start-time")
			endTime, _ := cmd.Flags().GetString("end-time")
			configPath, _ := cmd.Flags().GetString("config-path")

			table, err := a.runner.Materialize(cmd.Context(), mftasks.MaterializeParams{
				MaterializationName: args[0],
				StartTime:           startTime,
				EndTime:             endTime,
				Config:              cfg,
				ConfigFilePath:      configPath,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.String())
			return nil
		},
	}
	cmd.Flags().String("start-time", "", "Start of the time range to materialize")
	cmd.Flags().String("end-time", "", "End of the time range to materialize")
	addConfigFlags(cmd)
	return cmd
}

func dropMaterializationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop-materialization NAME",
		Short: "Drop a materialization created by MetricFlow",
		Long:  "Drop a materialization created by MetricFlow. Prints true when the table was dropped, false when it did not exist.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.configValue(cmd)
			if err != nil {
				return err
			}
			configPath, _ := cmd.Flags().GetString("config-path")

			dropped, err := a.runner.DropMaterialization(cmd.Context(), mftasks.DropParams{
				MaterializationName: args[0],
				Config:              cfg,
				ConfigFilePath:      configPath,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(dropped))
			return nil
		},
	}
	addConfigFlags(cmd)
	return cmd
}

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the MetricFlow config file",
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the resolved config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			explicit, _ := cmd.Flags().GetString("config-path")
			fmt.Fprintln(cmd.OutOrStdout(), a.runner.ConfigFilePath(explicit))
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted config as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			explicit, _ := cmd.Flags().GetString("config-path")
			m, err := mfconfig.NewPersister(a.fs).Load(a.runner.ConfigFilePath(explicit))
			if err != nil {
				return err
			}
			data, err := mfconfig.Marshal(m)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	for _, c := range []*cobra.Command{pathCmd, showCmd} {
		c.Flags().String("config-path", "", "MetricFlow config file path")
		cmd.AddCommand(c)
	}
	return cmd
}
