package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hyprpal/clusterdock/internal/config"
	"github.com/hyprpal/clusterdock/internal/control/client"
	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/replay"
	"github.com/hyprpal/clusterdock/internal/util"
)

type solveOptions struct {
	mode       string
	variant    string
	container  float64
	cluster    float64
	reserved   float64
	configPath string
	remote     bool
}

func newSolveCmd(opts *rootOptions) *cobra.Command {
	so := &solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve <raw>",
		Short: "Resolve a raw position against a layout",
		Long: `Resolve a raw cluster position into a valid one. Without --remote the
solver runs locally against the given widths; with --remote the daemon solves
against its live layout unless widths are given explicitly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid raw position %q", args[0])
			}
			var result client.SolveResult
			if so.remote {
				result, err = solveRemote(cmd, opts, so, raw)
			} else {
				result, err = solveLocal(so, raw)
			}
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return printSolve(cmd.OutOrStdout(), result)
		},
	}
	f := cmd.Flags()
	f.StringVar(&so.mode, "mode", "continuous", "solver mode (continuous|corrective)")
	f.StringVar(&so.variant, "variant", "", "layout variant (bounded|timeline|free|freeMove); defaults to the configured one")
	f.Float64Var(&so.container, "container", 1000, "container width in px")
	f.Float64Var(&so.cluster, "cluster", 200, "cluster width in px")
	f.Float64Var(&so.reserved, "reserved", 200, "reserved zone width in px")
	f.StringVar(&so.configPath, "config", "", "read geometry and variant from this config (local solve only)")
	f.BoolVar(&so.remote, "remote", false, "solve on the running daemon")
	return cmd
}

func solveLocal(so *solveOptions, raw float64) (client.SolveResult, error) {
	params := layout.DefaultParams()
	variant := layout.Bounded
	if so.configPath != "" {
		cfg, err := config.Load(so.configPath)
		if err != nil {
			return client.SolveResult{}, err
		}
		params = cfg.Params()
		variant = cfg.LayoutVariant()
	}
	if so.variant != "" {
		v, err := layout.ParseVariant(so.variant)
		if err != nil {
			return client.SolveResult{}, err
		}
		variant = v
	}
	mode, err := layout.ParseMode(so.mode)
	if err != nil {
		return client.SolveResult{}, err
	}
	m := layout.Metrics{ContainerWidth: so.container, ClusterWidth: so.cluster, ReservedZoneWidth: so.reserved}
	pos, ok := params.Solve(raw, m, variant, mode)
	result := client.SolveResult{
		Position: pos,
		OK:       ok,
		Variant:  variant.String(),
		Mode:     mode.String(),
		Metrics:  m,
	}
	if variant == layout.Bounded {
		zone := params.DeadZone(m)
		result.DeadZone = &zone
	}
	return result, nil
}

func solveRemote(cmd *cobra.Command, opts *rootOptions, so *solveOptions, raw float64) (client.SolveResult, error) {
	if so.configPath != "" {
		return client.SolveResult{}, fmt.Errorf("--config only applies to local solves")
	}
	cli, ctx, cancel, err := opts.dial(cmd.Context())
	if err != nil {
		return client.SolveResult{}, err
	}
	defer cancel()
	params := client.SolveParams{Raw: raw, Mode: so.mode, Variant: so.variant}
	f := cmd.Flags()
	if f.Changed("container") || f.Changed("cluster") || f.Changed("reserved") {
		params.Metrics = &layout.Metrics{ContainerWidth: so.container, ClusterWidth: so.cluster, ReservedZoneWidth: so.reserved}
	}
	return cli.Solve(ctx, params)
}

func printSolve(w io.Writer, result client.SolveResult) error {
	if !result.OK {
		return fmt.Errorf("no finite position for this input (%s, %s)", result.Variant, result.Mode)
	}
	if _, err := fmt.Fprintf(w, "Position: %.1f\n", result.Position); err != nil {
		return err
	}
	if result.DeadZone != nil {
		_, err := fmt.Fprintf(w, "Dead zone: %.1f-%.1f\n", result.DeadZone.Start, result.DeadZone.End)
		return err
	}
	return nil
}

func newCheckCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(configPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runCheck(configPath string, stdout io.Writer, stderr io.Writer) error {
	if configPath == "" {
		return fmt.Errorf("check requires --config <path>")
	}
	lintErrs, err := config.LintFile(configPath)
	if err != nil {
		return err
	}
	if len(lintErrs) == 0 {
		fmt.Fprintln(stdout, "Configuration OK")
		return nil
	}

	fmt.Fprintf(stderr, "Configuration has %d issue(s):\n", len(lintErrs))
	for _, lintErr := range lintErrs {
		fmt.Fprintf(stderr, "- %s\n", lintErr.Error())
	}
	return fmt.Errorf("configuration validation failed")
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		configPath string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>...",
		Short: "Replay recorded pointer traces and check their expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := layout.DefaultParams()
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				params = cfg.Params()
			}
			level := util.LevelWarn
			if verbose {
				level = util.LevelDebug
			}
			logger := util.NewLoggerWithWriter(level, cmd.ErrOrStderr())

			failed := 0
			for _, path := range args {
				tr, err := replay.Load(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				res, err := replay.Run(tr, params, logger)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if !res.Passed() {
					failed++
				}
				if opts.json {
					err = replay.WriteJSON(cmd.OutOrStdout(), res)
				} else {
					err = replay.PrintSummary(cmd.OutOrStdout(), res)
				}
				if err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d trace(s) failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "read geometry from this config")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log engine decisions while replaying")
	return cmd
}
