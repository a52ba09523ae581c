package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"modelsync/internal/config"
)

// buildRootCmd constructs the command tree. Flags override values from the
// config file; unset values fall back to config.Defaults.
func buildRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "modelsyncd",
		Short:         "Serve a shared model tree and push consistent updates to subscribers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	d := config.Defaults()
	defaultAddr := d.Addr
	if v := os.Getenv("MODELSYNC_ADDR"); v != "" {
		defaultAddr = v
	}
	f := root.PersistentFlags()
	f.StringVar(&cfgPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	f.String("addr", defaultAddr, "HTTP listen address, e.g. :8080 (defaults MODELSYNC_ADDR)")
	f.String("seed-dir", "", "Directory of *.json/*.yaml model documents applied at startup")
	f.String("log-level", d.LogLevel, "Log level: debug|info|warn|error")
	f.String("log-format", d.LogFormat, "Log format: console|json")
	f.Bool("debug", false, "Fail loudly on internal invariant violations")
	f.Int64("max-body-bytes", d.MaxBodyBytes, "Maximum request body size in bytes")
	f.Bool("mem-watch", false, "Raise low-memory signals from host memory pressure")
	f.String("mem-watch-interval", d.MemWatchInterval, "Memory sampling interval")
	f.Float64("mem-min-available", d.MemMinAvailablePercent, "Available memory percentage below which a low-memory signal fires")
	f.String("cors-origins", "", "Comma-separated allowed CORS origins; enables CORS when set")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	return root
}

// resolveConfig merges the config file, changed flags and defaults, in that
// order of precedence: flags over file over defaults.
func resolveConfig(cmd *cobra.Command, path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr, _ = f.GetString("addr") })
	set("seed-dir", func() { cfg.SeedDir, _ = f.GetString("seed-dir") })
	set("log-level", func() { cfg.LogLevel, _ = f.GetString("log-level") })
	set("log-format", func() { cfg.LogFormat, _ = f.GetString("log-format") })
	set("debug", func() { cfg.Debug, _ = f.GetBool("debug") })
	set("max-body-bytes", func() { cfg.MaxBodyBytes, _ = f.GetInt64("max-body-bytes") })
	set("mem-watch", func() { cfg.MemWatchEnabled, _ = f.GetBool("mem-watch") })
	set("mem-watch-interval", func() { cfg.MemWatchInterval, _ = f.GetString("mem-watch-interval") })
	set("mem-min-available", func() { cfg.MemMinAvailablePercent, _ = f.GetFloat64("mem-min-available") })
	set("cors-origins", func() {
		v, _ := f.GetString("cors-origins")
		cfg.CORSOrigins = splitCSV(v)
		cfg.CORSEnabled = len(cfg.CORSOrigins) > 0
	})
	// The env-derived addr default applies when neither file nor flag set one.
	if cfg.Addr == "" {
		cfg.Addr, _ = f.GetString("addr")
	}
	cfg = config.ApplyDefaults(cfg)
	if _, err := cfg.MemWatchEvery(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// splitCSV splits a comma-separated list, trimming blanks and empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
