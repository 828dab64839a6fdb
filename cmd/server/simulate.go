package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"

	"github.com/warp/payment-ledger/factory"
	"github.com/warp/payment-ledger/generic"
	"github.com/warp/payment-ledger/payment"
	"github.com/warp/payment-ledger/payment/store"
)

const simulatedCase payment.CaseID = "simulation"

type simulateOptions struct {
	schedule  string
	today     string
	pause     bool
	resume    string
	terminate string
	asJSON    bool
}

func simulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Print the timeline a schedule and optional changes would produce",
		Long: `Grants the schedule on an empty in-memory case, then applies the
requested changes in order (pause, resume, terminate) and prints the
reconstructed timeline. Nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "Schedule file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.today, "today", "", "Date treated as today (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.pause, "pause", false, "Pause from the first of next month")
	cmd.Flags().StringVar(&opts.resume, "resume", "", `Resume from a date ("default" for the first paused day)`)
	cmd.Flags().StringVar(&opts.terminate, "terminate", "", "Terminate at a month-boundary date")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("schedule")

	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, opts simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := factory.NewScheduleFactory().ParseFile(opts.schedule)
	if err != nil {
		return err
	}

	var clock generic.Clock = generic.SystemClock{}
	if opts.today != "" {
		today, err := generic.ParseTimePoint(opts.today)
		if err != nil {
			return err
		}
		clock = generic.FixedClock{At: today.Time.Add(12 * time.Hour)}
	}

	node, err := snowflake.NewNode(0)
	if err != nil {
		return err
	}
	svc := payment.NewService(payment.ServiceParams{
		Store: store.NewMemory(),
		GenID: node,
		Clock: clock,
	})

	strategies := []payment.Strategy{payment.Grant{Schedule: entries}}
	if opts.pause {
		strategies = append(strategies, payment.Pause{})
	}
	if opts.resume != "" {
		resume := payment.Resume{}
		if opts.resume != "default" {
			from, err := generic.ParseTimePoint(opts.resume)
			if err != nil {
				return err
			}
			resume.From = &from
		}
		strategies = append(strategies, resume)
	}
	if opts.terminate != "" {
		date, err := generic.ParseTimePoint(opts.terminate)
		if err != nil {
			return err
		}
		strategies = append(strategies, payment.Terminate{Date: date})
	}

	for _, s := range strategies {
		if _, err := svc.Apply(ctx, simulatedCase, "cli", s); err != nil {
			return err
		}
	}

	timeline, err := svc.Timeline(ctx, simulatedCase)
	if err != nil {
		return err
	}
	return printTimeline(out, timeline, opts.asJSON)
}

func printTimeline(out io.Writer, timeline payment.Timeline, asJSON bool) error {
	if asJSON {
		type row struct {
			From   string `json:"from"`
			To     string `json:"to"`
			Amount string `json:"amount"`
			Kind   string `json:"kind"`
		}
		rows := make([]row, 0, len(timeline.Segments))
		for _, s := range timeline.Segments {
			rows = append(rows, row{s.Period.Start.String(), s.Period.End.String(), s.Amount.String(), string(s.Kind)})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tAMOUNT\tKIND")
	for _, s := range timeline.Segments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Period.Start, s.Period.End, s.Amount, s.Kind)
	}
	return tw.Flush()
}
