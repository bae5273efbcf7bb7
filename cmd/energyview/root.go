package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/nicktill/energyview/pkg/cache"
	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/server"
)

type options struct {
	configPath string
	noCache    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "energyview",
		Short:        "Decode energy system optimization results into tables",
		SilenceUsage: true,
		Long: `energyview reads an optimization result archive (HDF5, or a YAML
fixture ending in .yaml/.yml), re-expands clustered periods to full
resolution and exposes the result tables for export, queries and an HTTP API.`,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $"+config.EnvConfig+")")
	root.PersistentFlags().BoolVar(&opts.noCache, "no-cache", false, "do not read or write the table cache")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log load stages to stderr")

	root.AddCommand(
		newInspectCmd(opts),
		newExportCmd(opts),
		newQueryCmd(opts),
		newPGExportCmd(opts),
		newServeCmd(opts),
		newSessionsCmd(opts),
	)
	return root
}

func (o *options) config() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.noCache {
		cfg.CacheDisabled = true
	}
	return cfg, nil
}

// loadBundle decodes the archive at path. A cache that cannot be opened,
// typically because a server holds it, is skipped with a warning.
func (o *options) loadBundle(ctx context.Context, cmd *cobra.Command, path string) (*results.Bundle, config.Config, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, cfg, err
	}
	src, err := server.OpenSource(path)
	if err != nil {
		return nil, cfg, err
	}

	var store cache.Store = cache.Disabled{}
	if !cfg.CacheDisabled {
		if s, err := server.InitializeCache(cfg, nil); err != nil {
			printWarn(cmd.ErrOrStderr(), fmt.Sprintf("table cache unavailable, decoding without it: %v", err))
		} else {
			store = s
		}
	}
	defer store.Close()

	var logger *log.Logger
	if o.verbose {
		logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}
	loader := results.NewLoader(
		results.WithCache(store),
		results.WithLogger(logger),
		results.WithRequiredGroups(cfg.RequiredGroups...),
	)
	b, err := loader.Load(ctx, src)
	return b, cfg, err
}
