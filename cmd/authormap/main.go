// Command authormap generates a deduplicated author mapping file from the
// organizational directory of a collaboration platform, for consumption by a
// history-migration tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"authormap/internal/authormap"
	"authormap/internal/config"
	"authormap/internal/directory"
	"authormap/internal/logging"
	"authormap/internal/scan"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// scanOptions carries the flag values of the root command.
type scanOptions struct {
	configPath string
	urls       []string
	baseDN     string
	domain     string
	username   string
	password   string
	realm      string
	output     string
	logLevel   string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	opts := &scanOptions{}

	rootCmd := &cobra.Command{
		Use:   "authormap",
		Short: "Generate an author mapping file from the organizational directory",
		Long: "authormap walks the server's project collections, projects and " +
			"application security groups, resolves every reachable user identity, " +
			"and writes a deduplicated 'DOMAIN\\account = Name <email>' mapping file.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd.Flags(), cfg, opts)

			if err := cfg.Validate(); err != nil {
				return err
			}

			logging.InitLogger(cfg.Logging.Level, "authormap")
			log := logging.GetLogger().With(zap.String("scan_id", uuid.NewString()))
			defer log.Sync()

			return runScan(cmd.Context(), cfg, log, opts.dryRun)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "authormap.yaml", "path to the configuration file")
	flags.StringSliceVar(&opts.urls, "url", nil, "directory URL (repeatable; overrides config)")
	flags.StringVar(&opts.baseDN, "base-dn", "", "root of the organizational hierarchy")
	flags.StringVar(&opts.domain, "domain", "", "domain label for output lines")
	flags.StringVarP(&opts.username, "username", "u", "", "bind username")
	flags.StringVarP(&opts.password, "password", "p", "", "bind password")
	flags.StringVar(&opts.realm, "kerberos-realm", "", "Kerberos realm for GSSAPI authentication")
	flags.StringVarP(&opts.output, "output", "o", "", "output file path")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the mapping to stdout, write nothing")

	return rootCmd
}

// applyFlagOverrides applies explicitly set flags on top of the loaded
// configuration; precedence is flag > environment > file.
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config, opts *scanOptions) {
	if flags.Changed("url") {
		cfg.Directory.URLs = opts.urls
	}
	if flags.Changed("base-dn") {
		cfg.Directory.BaseDN = opts.baseDN
	}
	if flags.Changed("domain") {
		cfg.Directory.Domain = opts.domain
	}
	if flags.Changed("username") {
		cfg.Directory.Username = opts.username
	}
	if flags.Changed("password") {
		cfg.Directory.Password = opts.password
	}
	if flags.Changed("kerberos-realm") {
		cfg.Directory.KerberosRealm = opts.realm
	}
	if flags.Changed("output") {
		cfg.Output.Path = opts.output
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
}

// runScan executes one full scan and writes the mapping artifact. A fatal
// directory error aborts before anything is written.
func runScan(ctx context.Context, cfg *config.Config, log *logging.Logger, dryRun bool) error {
	client, err := directory.NewLDAPDirectory(cfg.ConnectionConfig())
	if err != nil {
		return err
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to directory: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	walker := scan.NewWalker(client, log)
	result, err := walker.Scan(ctx)
	if err != nil {
		return err
	}

	entries := authormap.Build(result.Identities)
	log.Info("scan complete: %d collections, %d projects (%d skipped), %d identities, %d unique entries",
		result.Collections, result.Projects, len(result.Failures),
		len(result.Identities), len(entries))

	if dryRun {
		return authormap.Write(os.Stdout, entries)
	}

	if err := authormap.WriteFile(cfg.Output.Path, entries); err != nil {
		return err
	}

	log.Info("author mapping written to %s (%d entries)", cfg.Output.Path, len(entries))
	return nil
}
