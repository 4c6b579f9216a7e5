// Command dtgsvc installs or removes a mapping's Windows service
// registration (spec §6).
package main

import (
	"flag"
	"fmt"
	"os"

	"dtg-replicator/internal/config"
	"dtg-replicator/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dtgsvc", flag.ContinueOnError)
	install := fs.String("install", "", "install the service for <mapping>")
	remove := fs.String("remove", "", "remove the service for <mapping>")
	removeAll := fs.Bool("remove_all", false, "remove every installed service")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: dtgsvc [-install <mapping>] [-remove <mapping>] [-remove_all]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	root := os.Getenv("DTG_ROOT")
	if root == "" {
		fmt.Fprintln(os.Stderr, "dtgsvc: DTG_ROOT is unset")
		return 1
	}
	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dtgsvc: %v\n", err)
		return 1
	}
	paths := service.Paths{ConfigDir: cfg.ConfigDir(), ReplDir: cfg.ReplDir()}

	switch {
	case *install != "":
		if err := service.Install(paths, *install); err != nil {
			fmt.Fprintf(os.Stderr, "dtgsvc: %v\n", err)
			return 1
		}
	case *remove != "":
		if err := service.Remove(paths, *remove); err != nil {
			fmt.Fprintf(os.Stderr, "dtgsvc: %v\n", err)
			return 1
		}
	case *removeAll:
		if err := service.RemoveAll(paths); err != nil {
			fmt.Fprintf(os.Stderr, "dtgsvc: %v\n", err)
			return 1
		}
	default:
		fs.Usage()
		return 1
	}
	return 0
}
