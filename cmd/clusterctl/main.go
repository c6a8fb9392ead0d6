package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyprpal/clusterdock/internal/control/client"
	"github.com/hyprpal/clusterdock/internal/ui/tui"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	socket  string
	timeout time.Duration
	json    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "clusterctl",
		Short:         "Inspect and drive the clusterdock positioning engine",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&opts.socket, "socket", "", "path to the clusterdock control socket")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "control request timeout")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")

	cmd.AddCommand(newSolveCmd(opts))
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newReplayCmd(opts))
	cmd.AddCommand(newStateCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newReconcileCmd(opts))
	cmd.AddCommand(newReloadCmd(opts))
	cmd.AddCommand(newMetricsCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	return cmd
}

// dial returns a client and a context bounded by the request timeout.
func (o *rootOptions) dial(parent context.Context) (*client.Client, context.Context, context.CancelFunc, error) {
	cli, err := client.New(o.socket)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create client: %w", err)
	}
	if parent == nil {
		parent = context.Background()
	}
	if o.timeout <= 0 {
		ctx, cancel := context.WithCancel(parent)
		return cli, ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(parent, o.timeout)
	return cli, ctx, cancel, nil
}

func newStateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the daemon's position, metrics and drag state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			st, err := cli.State(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			return printState(cmd.OutOrStdout(), st)
		},
	}
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the state together with the correction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			snapshot, err := cli.Inspect(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), snapshot)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tui.Dashboard(snapshot))
			return err
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-validate the position immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			result, err := cli.Reconcile(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			if result.Changed {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Position corrected to %.1f\n", result.Position)
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Position %.1f already valid\n", result.Position)
			}
			return err
		},
	}
}

func newReloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Trigger a live config reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			if err := cli.Reload(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Reload requested")
			return err
		},
	}
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show per-path solver counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			snapshot, err := cli.Metrics(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), snapshot)
			}
			return printMetrics(cmd.OutOrStdout(), snapshot)
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously render the daemon state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := client.New(opts.socket)
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			renderer := tui.New(cli, cmd.OutOrStdout())
			renderer.Refresh = refresh
			if err := renderer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 500*time.Millisecond, "poll interval")
	return cmd
}

func printState(w io.Writer, st client.State) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	valid := "valid"
	if !st.Valid {
		valid = "invalid"
	}
	fmt.Fprintf(tw, "Variant:\t%s\n", st.Variant)
	fmt.Fprintf(tw, "Position:\t%.1f (%s)\n", st.Position, valid)
	fmt.Fprintf(tw, "Metrics:\tcontainer %.0f, cluster %.0f, reserved %.0f\n", st.Metrics.ContainerWidth, st.Metrics.ClusterWidth, st.Metrics.ReservedZoneWidth)
	if st.DeadZone != nil {
		fmt.Fprintf(tw, "Dead zone:\t%.1f-%.1f\n", st.DeadZone.Start, st.DeadZone.End)
	}
	fmt.Fprintf(tw, "Dragging:\t%t\n", st.Dragging)
	fmt.Fprintf(tw, "Reflow pending:\t%t\n", st.ReflowPending)
	return tw.Flush()
}

func printMetrics(w io.Writer, snapshot client.MetricsSnapshot) error {
	if !snapshot.Enabled {
		_, err := fmt.Fprintln(w, "Telemetry disabled (set telemetry.enabled in the config)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Path\tVariant\tSolved\tCorrected\tRejected")
	for _, p := range snapshot.Paths {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", p.Path, p.Variant, p.Solved, p.Corrected, p.Rejected)
	}
	fmt.Fprintf(tw, "total\t\t%d\t%d\t%d\n", snapshot.Totals.Solved, snapshot.Totals.Corrected, snapshot.Totals.Rejected)
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
