package main

import (
	"fmt"
	"os"

	"github.com/manish-shre/KKMS/internal/config"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "kkmsctl",
		Short:         "KKMS administration: migrations, admin accounts, catalog mirror",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file path (e.g. etc/config-dev.yaml)")

	load := func() *config.Config {
		cfg := config.Load(configFile)
		logger.Init(cfg.Log)
		return cfg
	}
	root.AddCommand(newMigrateCmd(load))
	root.AddCommand(newCreateAdminCmd(load))
	root.AddCommand(newCatalogCmd(load))
	return root
}
