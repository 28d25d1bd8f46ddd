package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func (a *app) installCommand() *cobra.Command {
	var eventHub, redisURL string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write the settings file and reload a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("event-hub") {
				cfg.EventHub = eventHub
			}
			if cmd.Flags().Changed("redis-url") {
				cfg.RedisURL = redisURL
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			if err := writeConfig(a.configPath, cfg); err != nil {
				return fmt.Errorf("write %s: %w", a.configPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", a.configPath)

			if pid, ok := signalRunningServer(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Signaled running server (PID %d) to reload configuration\n", pid)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&a.flags.ListenAddr, "listen-addr", "", "TCP listen address")
	cmd.Flags().StringVar(&eventHub, "event-hub", "", "event hub: memory or redis")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis URL for the redis event hub")
	return cmd
}

// signalRunningServer sends SIGHUP to a running jobflow server (via pidfile).
func signalRunningServer() (int, bool) {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	// Check if process is alive.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return 0, false
	}
	return pid, true
}
