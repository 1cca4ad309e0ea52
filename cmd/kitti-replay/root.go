package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/kitti.replay/internal/kitti"
	"github.com/banshee-data/kitti.replay/internal/version"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kitti-replay",
		Short: "Replay KITTI raw recordings in timestamp order",
		Long: `Replay the stereo cameras, lidar and GPS/IMU of a KITTI raw dataset
as one time-ordered stream, optionally cataloguing every message in sqlite and
plotting a timeline of the run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "replay config file (json, yaml or toml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every message")

	cmd.AddCommand(newInfoCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newInfoCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <root>",
		Short: "Show which sensors and calibration files a dataset has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := kitti.Open(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, p.Config().Summary())
			fmt.Fprintf(out, "Sequences: %d\n", len(p.Sequences()))
			for _, s := range p.Sequences() {
				fmt.Fprintf(out, "\t%s\n", s)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kitti-replay %s\n", version.String())
		},
	}
}
