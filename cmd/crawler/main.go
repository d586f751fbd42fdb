package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"listing-crawler/internal/config"
	"listing-crawler/internal/db"
	"listing-crawler/internal/logging"
)

var (
	cfgFile string
	verbose bool
	noProxy bool

	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "Crawl a paginated torrent listing into a database",
	Long: `crawler walks the listing pages of a torrent index, stores every new row
and skips ahead over stretches of pages that were already stored, sweeping
back over the skipped pages once new rows appear again.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	flags.Int("start-page", config.DefaultStartPage, "First page to crawl")
	flags.Int("end-page", config.DefaultEndPage, "Last page to crawl")
	flags.String("url", config.DefaultBaseURL, "Base URL of the listing site")
	flags.String("layout", config.DefaultLayout, "Row layout of the site (table or forum)")
	flags.String("proxy", "", "HTTP or SOCKS5 proxy URL")
	flags.BoolVar(&noProxy, "no-proxy", false, "Ignore any configured proxy")
	flags.String("db-driver", config.DefaultDriver, "Database driver (sqlite3 or mysql)")
	flags.String("dsn", config.DefaultDSN, "Database DSN or SQLite file path")

	// Bind flags to viper
	_ = viper.BindPFlag("crawl.start_page", flags.Lookup("start-page"))
	_ = viper.BindPFlag("crawl.end_page", flags.Lookup("end-page"))
	_ = viper.BindPFlag("site.base_url", flags.Lookup("url"))
	_ = viper.BindPFlag("site.layout", flags.Lookup("layout"))
	_ = viper.BindPFlag("http.proxy_url", flags.Lookup("proxy"))
	_ = viper.BindPFlag("database.driver", flags.Lookup("db-driver"))
	_ = viper.BindPFlag("database.dsn", flags.Lookup("dsn"))

	rootCmd.AddCommand(runCmd, scheduleCmd, exportCmd, queryCmd, historyCmd, probeCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads the configuration and the logger before any subcommand runs
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if noProxy {
		cfg.HTTP.ProxyURL = ""
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logging.Setup(logging.Config{Level: level, Pretty: cfg.Logging.Pretty})
	log = logging.NewLogger("cli")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openStore(ctx context.Context) (*db.DBService, error) {
	store, err := db.NewDBService(ctx, db.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}
