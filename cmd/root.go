package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/circdesk/internal/api"
	"github.com/lehigh-university-libraries/circdesk/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	apiURL     string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "circdesk",
		Short: "Library circulation desk terminal",
		Long: `Circdesk runs a library circulation desk against the circulation API.

Staff scan a book's QR label (or type its code) to check it out to a member,
return it, or look up where it is. Books and members can be registered and
listed, and every request the desk makes is kept in a local journal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return setupLogging(opts.logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CIRCDESK_CONFIG"), "Path to the station YAML config")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Circulation API base URL (overrides config and CIRCDESK_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newDeskCmd(opts))
	cmd.AddCommand(newTrackCmd(opts))
	cmd.AddCommand(newBooksCmd(opts))
	cmd.AddCommand(newMembersCmd(opts))
	cmd.AddCommand(newJournalCmd(opts))

	return cmd
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}

// load reads the station config and applies the persistent flags
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (o *globalOptions) client() (*api.Client, *config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	return api.NewClient(cfg.APIURL, cfg.Timeout), cfg, nil
}
