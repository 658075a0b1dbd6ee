package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Dan9191/card-service/internal/emi"
	"github.com/Dan9191/card-service/internal/integrations/cbr"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/spf13/cobra"
)

const rateLookupTimeout = 15 * time.Second

type calcOptions struct {
	principal float64
	rate      float64
	months    int
	schedule  bool
	keyRate   bool
	start     string
}

func newCalcCmd(opts *rootOptions) *cobra.Command {
	c := &calcOptions{}

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Quote an installment plan",
		Long: "Quote the monthly installment, total and interest of a plan. " +
			"With --key-rate the annual rate is the central bank key rate plus RATE_MARGIN.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalc(cmd, opts, c)
		},
	}

	cmd.Flags().Float64Var(&c.principal, "principal", 0, "Principal amount")
	cmd.Flags().Float64Var(&c.rate, "rate", 0, "Annual interest rate, percent")
	cmd.Flags().IntVar(&c.months, "months", 12, "Tenure in months")
	cmd.Flags().BoolVar(&c.schedule, "schedule", false, "Print the amortization schedule")
	cmd.Flags().BoolVar(&c.keyRate, "key-rate", false, "Derive the rate from the central bank key rate")
	cmd.Flags().StringVar(&c.start, "start", "", "Plan start date, YYYY-MM-DD (default today)")
	cmd.MarkFlagsMutuallyExclusive("rate", "key-rate")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func runCalc(cmd *cobra.Command, opts *rootOptions, c *calcOptions) error {
	start := time.Now().UTC().Truncate(24 * time.Hour)
	if c.start != "" {
		t, err := time.Parse(time.DateOnly, c.start)
		if err != nil {
			return fmt.Errorf("%w: start must be YYYY-MM-DD", models.ErrValidation)
		}
		start = t
	}

	rate := c.rate
	if c.keyRate {
		if err := opts.load(cmd); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), rateLookupTimeout)
		defer cancel()
		suggested, err := cbr.NewClient(opts.cfg, opts.log).SuggestedRate(ctx)
		if err != nil {
			return fmt.Errorf("key rate lookup: %w", err)
		}
		rate = suggested
	}

	if err := emi.Validate(c.principal, rate, c.months); err != nil {
		return err
	}
	q := emi.Quote(c.principal, rate, c.months, start)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Principal:       %.2f\n", q.PrincipalAmount)
	fmt.Fprintf(out, "Annual rate:     %.2f%%\n", q.InterestRate)
	fmt.Fprintf(out, "Tenure:          %d months\n", q.TenureMonths)
	fmt.Fprintf(out, "Installment:     %.2f\n", q.EMIAmount)
	fmt.Fprintf(out, "Total payable:   %.2f\n", q.TotalAmount)
	fmt.Fprintf(out, "Total interest:  %.2f\n", q.TotalInterest)

	if !c.schedule {
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDue\tPayment\tInterest\tPrincipal\tBalance\t")
	for _, row := range q.Schedule {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			row.Installment, row.DueDate.Format(time.DateOnly), row.Payment, row.Interest, row.Principal, row.Balance)
	}
	return tw.Flush()
}
