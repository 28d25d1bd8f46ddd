package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/jobflow/internal/logging"
)

// app is the state shared by every command: the layered config and the
// process logger, both ready once PersistentPreRunE has run.
type app struct {
	configPath string
	flags      Config
	cfg        Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "jobflow",
		Short:         "Jobflow designs job flows as graphs of typed nodes",
		Long:          `Jobflow hosts a graph designer for job flows: a node type catalog, nested group nodes, port-checked connections, and stored flows served over HTTP and MCP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.SetVersionTemplate("jobflow {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", settingsPath(), "settings file")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.DBPath, "db-path", "", "database path")
	pf.StringSliceVar(&a.flags.CatalogFiles, "catalog", nil, "extra catalog files (YAML or JSON)")

	root.AddCommand(
		a.serveCommand(),
		a.mcpCommand(),
		a.installCommand(),
		a.validateCommand(),
		a.compileCommand(),
		a.diagramCommand(),
		a.catalogCommand(),
		versionCommand(),
	)
	return root
}

// init loads the config and applies flags set on the command line.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if flags.Changed("db-path") {
		cfg.DBPath = a.flags.DBPath
	}
	if flags.Changed("catalog") {
		cfg.CatalogFiles = a.flags.CatalogFiles
	}
	if flags.Changed("listen-addr") {
		cfg.ListenAddr = a.flags.ListenAddr
	}
	a.cfg = cfg
	a.logger = logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(a.logger)
	return nil
}
