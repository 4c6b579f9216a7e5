// Command dtgrepl runs the replication engine for a single mapping (spec §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dtg-replicator/internal/config"
	"dtg-replicator/internal/engine"
	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/plugin"
	"dtg-replicator/internal/store"
	"dtg-replicator/internal/validator"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dtgrepl", flag.ContinueOnError)
	showVersion := fs.Bool("V", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: dtgrepl <mapping-id> [<root-dir>]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showVersion {
		fmt.Println("dtgrepl " + version)
		return 0
	}

	rest := fs.Args()
	if len(rest) < 1 {
		fs.Usage()
		return 1
	}
	mappingID := rest[0]
	root := os.Getenv("DTG_ROOT")
	if len(rest) >= 2 {
		root = rest[1]
	}
	if root == "" {
		fmt.Fprintln(os.Stderr, "dtgrepl: no root directory given and DTG_ROOT is unset")
		return 1
	}

	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dtgrepl: %v\n", err)
		return 1
	}

	m, settings, err := store.LoadMappingSettings(cfg.ConfigDir(), mappingID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dtgrepl: %v\n", err)
		return 1
	}

	log, err := logging.Open(logPath(cfg, mappingID), logging.Level(m.LogLevel()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dtgrepl: %v\n", err)
		return 1
	}
	defer log.Close()

	adapters, err := plugin.LoadDir(cfg.PluginDir(), func(file string, err error) {
		log.Warnf("plugin: skipping %s: %v", file, err)
	})
	if err != nil {
		log.Errorf("plugin load: %v", err)
		return 1
	}

	scmAdapter, err := findAdapter(adapters, m.SCMSource.Plugin)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	dtsAdapter, err := findAdapter(adapters, m.DTSSource.Plugin)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	reg, err := store.LoadAll(cfg.ConfigDir())
	if err != nil {
		log.Errorf("load registry: %v", err)
		return 1
	}
	result := validator.Validate(m, reg)
	for _, w := range result.Warnings {
		log.Warnf("validate: %s", w)
	}
	if result.Outcome == validator.Invalid {
		for _, f := range result.Fatals {
			log.Errorf("validate: %s", f)
		}
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	eng := engine.New(m, settings, cfg, log, scmAdapter, dtsAdapter)
	if err := eng.Run(ctx); err != nil {
		log.Errorf("engine: %v", err)
		return 1
	}
	return 0
}

func logPath(cfg *config.Config, mapping string) string {
	return cfg.ReplDir() + "/log-" + mapping + ".log"
}

func findAdapter(adapters []plugin.Adapter, pluginName string) (plugin.Adapter, error) {
	for _, a := range adapters {
		if a.Name() == pluginName {
			return a, nil
		}
	}
	return nil, fmt.Errorf("plugin %q not found among loaded plugins", pluginName)
}
