package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/Strob0t/opsboard/internal/adapter/postgres"
	"github.com/Strob0t/opsboard/internal/config"
)

const adminTimeout = 30 * time.Second

// runAdmin dispatches admin subcommands (status, start, refresh, migrate).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "status":
		return runAdminStatus(args[1:])
	case "start":
		return runAdminStart(args[1:])
	case "refresh":
		return runAdminRefresh(args[1:])
	case "migrate":
		return runAdminMigrate(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: opsboard admin <command> [options]

Commands:
  status    Print the aggregated integrations report
  start     Begin an OAuth flow and print the authorize URL
  refresh   Refresh a provider's stored tokens
  migrate   Apply pending database migrations
  help      Show this help message

Every command accepts --config <path> (default %s).

Examples:
  opsboard admin status
  opsboard admin start --provider slack
  opsboard admin refresh --provider linear
`, config.DefaultConfigFile)
}

// adminFlags parses the flags shared by every subcommand plus any extras
// registered by setup.
func adminFlags(name string, args []string, setup func(fs *flag.FlagSet)) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfgPath := fs.String("config", config.DefaultConfigFile, "path to the YAML config file")
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *cfgPath, nil
}

func loadAdminApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(ctx, cfgPath, cfg)
}

func runAdminStatus(args []string) error {
	cfgPath, err := adminFlags("status", args, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()
	a, err := loadAdminApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.status.Report(ctx)
	names := make([]string, 0, len(report.Providers))
	for name := range report.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INTEGRATION\tSTATUS\tCONFIGURED\tCONNECTED\tEXPIRES\tDETAIL")
	for _, name := range names {
		st := report.Providers[name]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\t%s\n",
			name, st.Status, st.Configured, st.Connected, dash(st.ExpiresAt), dash(st.Detail))
	}
	return w.Flush()
}

func runAdminStart(args []string) error {
	var provider *string
	cfgPath, err := adminFlags("start", args, func(fs *flag.FlagSet) {
		provider = fs.String("provider", "", "provider name (required)")
	})
	if err != nil {
		return err
	}
	if *provider == "" {
		return fmt.Errorf("--provider is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()
	a, err := loadAdminApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.broker.Start(ctx, *provider)
	if err != nil {
		return fmt.Errorf("start %s: %w", *provider, err)
	}
	fmt.Fprintf(os.Stderr, "Open this URL to authorize %s (expires %s):\n", res.Provider, res.ExpiresAt)
	fmt.Println(res.AuthorizeURL)
	return nil
}

func runAdminRefresh(args []string) error {
	var provider *string
	cfgPath, err := adminFlags("refresh", args, func(fs *flag.FlagSet) {
		provider = fs.String("provider", "", "provider name (required)")
	})
	if err != nil {
		return err
	}
	if *provider == "" {
		return fmt.Errorf("--provider is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()
	a, err := loadAdminApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.broker.Refresh(ctx, *provider)
	if !res.Refreshed {
		return fmt.Errorf("refresh %s: %s", res.Provider, res.Reason)
	}
	fmt.Fprintf(os.Stderr, "Refreshed %s (account=%s, expires=%s)\n", res.Provider, dash(res.AccountRef), dash(res.ExpiresAt))
	return nil
}

func runAdminMigrate(args []string) error {
	cfgPath, err := adminFlags("migrate", args, nil)
	if err != nil {
		return err
	}
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()
	version, err := postgres.RunMigrations(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Schema at version %d\n", version)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
