package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"patchwarp/internal/logging"
	"patchwarp/pkg/config"
)

// app carries state shared by the subcommands
type app struct {
	cfg     *config.Config
	logFile io.Closer
}

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "patchwarp",
		Short: "extract randomly warped training patches from volumes",
		Long:  "patchwarp cuts rotated, flipped, swapped and perspective-warped sub-volumes out of large (C, D, H, W) volumes together with aligned label patches.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath != "" {
				cfg, err := config.LoadConfig(cfgPath)
				if err != nil {
					return err
				}
				a.cfg = cfg
			}

			logLevel := a.cfg.Logging.Level
			if cmd.Flags().Changed("log-level") {
				logLevel, _ = cmd.Flags().GetString("log-level")
			}
			level, ok := logging.ParseLevel(logLevel)
			w, closer := logging.Output(os.Stdout, a.cfg.Logging.File, a.cfg.Logging.MaxSizeMB, a.cfg.Logging.MaxBackups)
			a.logFile = closer
			slog.SetDefault(logging.Logger(w, a.cfg.Logging.JSON, level))
			if !ok {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", logLevel)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logFile != nil {
				a.logFile.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewSampleCmd(ctx, a),
		NewInspectCmd(ctx, a),
		NewSynthCmd(ctx),
		NewConfigCmd(ctx, a),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.StringP("config", "c", "", "YAML config file")
	return cmd
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
	return cmd
}

// NewConfigCmd groups config file helpers
func NewConfigCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config file helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			slog.InfoContext(ctx, "wrote default config", "path", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(cmd.OutOrStdout(), a.cfg)
		},
	})
	return cmd
}
