// Package cli implements cardctl, the operator tool for the card service.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dbConn  string
	verbose bool

	cfg *config.Config
	log *logrus.Logger
}

// NewRootCmd builds the cardctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "cardctl",
		Short:         "Operate the card service: migrations, EMI quotes and reminder runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dbConn, "db", "", "PostgreSQL connection string (overrides DB_CONN)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newCalcCmd(opts),
		newRemindersCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		cmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

// load reads the environment configuration once per invocation
func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.cfg != nil {
		return nil
	}
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if o.dbConn != "" {
		cfg.DBConn = o.dbConn
	}

	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if o.verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	o.cfg, o.log = cfg, log
	return nil
}
