package cli

import (
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/events"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/Dan9191/card-service/internal/utils/email"
	"github.com/spf13/cobra"
)

func newRemindersCmd(opts *rootOptions) *cobra.Command {
	var skipAutoPay bool

	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Run auto-pay and the due-date reminders once",
		Long: "Runs the scheduled EMI jobs a single time against the PostgreSQL store, " +
			"the same work the API server does on REMINDER_CRON.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := repository.Open(ctx, opts.cfg.DBConn)
			if err != nil {
				return err
			}
			defer db.Close()

			var publisher service.Publisher = events.Nop{}
			if opts.cfg.AMQPURL != "" {
				p, err := events.NewPublisher(opts.cfg.AMQPURL, opts.cfg.AMQPExchange, opts.log)
				if err != nil {
					opts.log.Warnf("Failed to connect to AMQP, events disabled: %v", err)
				} else {
					defer p.Close()
					publisher = p
				}
			}

			svc := service.NewService(repository.NewRepository(db), opts.log, opts.cfg,
				service.WithMailer(email.NewSender(opts.cfg, opts.log)),
				service.WithPublisher(publisher),
			)

			now := time.Now()
			out := cmd.OutOrStdout()
			if !skipAutoPay {
				paid, err := svc.ProcessAutoPay(ctx, now)
				fmt.Fprintf(out, "auto-pay: %d payments\n", paid)
				if err != nil {
					return fmt.Errorf("auto-pay: %w", err)
				}
			}
			sent, err := svc.SendDueReminders(ctx, now)
			fmt.Fprintf(out, "reminders: %d sent\n", sent)
			if err != nil {
				return fmt.Errorf("reminders: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipAutoPay, "skip-autopay", false, "Only send reminders")
	return cmd
}
