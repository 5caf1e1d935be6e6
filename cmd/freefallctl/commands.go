// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	rpc "github.com/luxfi/freefall-rpc"
	"github.com/luxfi/freefall-rpc/freefall"
)

const timeLayout = "2006-01-02 15:04"

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func (a *app) airportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "airports",
		Short: "List known airports",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, _ []string) error {
			res, err := c.ListAirports(ctx).Wait(ctx)
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tIATA\tNAME")
			for _, ap := range res.Airports {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", ap.ID, ap.IATACode, ap.Name)
			}
			return tw.Flush()
		}),
	}
}

type searchFlags struct {
	from, to         string
	currency, sortBy string
	dateFrom, dateTo string
	priceTo          float64
	limit            int
}

func (sf *searchFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&sf.from, "from", "", "departure airport name")
	f.StringVar(&sf.to, "to", "", "arrival airport name")
	f.StringVar(&sf.currency, "currency", "EUR", "BGN, EUR or USD")
	f.StringVar(&sf.sortBy, "sort", "price", "price or duration")
	f.StringVar(&sf.dateFrom, "date-from", "", "earliest departure date (YYYY-MM-DD)")
	f.StringVar(&sf.dateTo, "date-to", "", "latest arrival date (YYYY-MM-DD)")
	f.Float64Var(&sf.priceTo, "price-to", 0, "maximum price")
	f.IntVar(&sf.limit, "limit", 0, "maximum number of routes")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

// params resolves the airport names against the peer's airport list.
func (sf *searchFlags) params(ctx context.Context, c *freefall.Client) (freefall.SearchParams, error) {
	airports, err := c.ListAirports(ctx).Wait(ctx)
	if err != nil {
		return freefall.SearchParams{}, err
	}
	from, err := c.AirportID(airports.Airports, sf.from)
	if err != nil {
		return freefall.SearchParams{}, err
	}
	to, err := c.AirportID(airports.Airports, sf.to)
	if err != nil {
		return freefall.SearchParams{}, err
	}
	return freefall.SearchParams{
		FlyFrom:  from,
		FlyTo:    to,
		Currency: sf.currency,
		Sort:     sf.sortBy,
		DateFrom: sf.dateFrom,
		DateTo:   sf.dateTo,
		PriceTo:  sf.priceTo,
		Limit:    sf.limit,
	}, nil
}

func printRoutes(w io.Writer, res freefall.SearchResult) error {
	if res.Notice != "" {
		fmt.Fprintln(w, res.Notice)
	}
	tw := table(w)
	fmt.Fprintln(tw, "DEPART\tARRIVE\tPRICE\tLEGS")
	for _, r := range res.Routes {
		hops := make([]string, 0, len(r.Legs)+1)
		for i, leg := range r.Legs {
			if i == 0 {
				hops = append(hops, leg.AirportFrom)
			}
			hops = append(hops, leg.AirportTo)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.DTime.Format(timeLayout), r.ATime.Format(timeLayout), r.PriceLabel, strings.Join(hops, " > "))
	}
	return tw.Flush()
}

func (a *app) searchCmd() *cobra.Command {
	sf := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search routes between two airports",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, _ []string) error {
			p, err := sf.params(ctx, c)
			if err != nil {
				return err
			}
			res, err := c.Search(ctx, p).Wait(ctx)
			if err != nil {
				return err
			}
			return printRoutes(cmd.OutOrStdout(), res)
		}),
	}
	sf.register(cmd)
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	sf := &searchFlags{}
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Repeat a search until interrupted",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, _ []string) error {
			p, err := sf.params(ctx, c)
			if err != nil {
				return err
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				res, err := c.Search(ctx, p).Wait(ctx)
				switch {
				case ctx.Err() != nil:
					return nil
				case rpc.IsUser(err):
					fmt.Fprintln(cmd.ErrOrStderr(), rpc.UserMessage(err))
				case err != nil:
					return err
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", time.Now().Format(timeLayout))
					if err := printRoutes(cmd.OutOrStdout(), res); err != nil {
						return err
					}
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		}),
	}
	sf.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "time between searches")
	return cmd
}

func (a *app) keyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Show the API key of the logged in user",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, _ []string) error {
			res, err := c.GetAPIKey(ctx).Wait(ctx)
			if err != nil {
				return err
			}
			if res.APIKey == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), *res.APIKey)
			return nil
		}),
	}
}

func (a *app) subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "List route subscriptions",
		Args:    cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, _ []string) error {
			res, err := c.ListSubscriptions(ctx).Wait(ctx)
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tFROM\tTO\tDATES")
			for _, s := range res.Subscriptions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s .. %s\n", s.ID, s.FlyFrom, s.FlyTo, s.DateFrom, s.DateTo)
			}
			return tw.Flush()
		}),
	}

	var p freefall.SubscribeParams
	add := &cobra.Command{
		Use:   "add",
		Short: "Subscribe to a route",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, _ []string) error {
			res, err := c.Subscribe(ctx, p).Wait(ctx)
			if err != nil {
				return err
			}
			if res.SubscriptionID != nil {
				fmt.Fprintln(cmd.OutOrStdout(), *res.SubscriptionID)
			}
			return nil
		}),
	}
	add.Flags().StringVar(&p.FlyFrom, "from", "", "departure airport id")
	add.Flags().StringVar(&p.FlyTo, "to", "", "arrival airport id")
	add.Flags().StringVar(&p.DateFrom, "date-from", "", "earliest departure date (YYYY-MM-DD)")
	add.Flags().StringVar(&p.DateTo, "date-to", "", "latest arrival date (YYYY-MM-DD)")

	remove := &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, _ *cobra.Command, c *freefall.Client, args []string) error {
			_, err := c.Unsubscribe(ctx, freefall.UnsubscribeParams{UserSubscriptionID: args[0]}).Wait(ctx)
			return err
		}),
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var deposits bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show credit or deposit history",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, _ []string) error {
			tw := table(cmd.OutOrStdout())
			if deposits {
				res, err := c.DepositHistory(ctx, freefall.DepositHistoryParams{}).Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ID\tAMOUNT\tAT")
				for _, d := range res.DepositHistory {
					fmt.Fprintf(tw, "%s\t%g\t%s\n", d.ID, d.Amount, d.TransferredAt)
				}
				return tw.Flush()
			}
			res, err := c.CreditHistory(ctx, freefall.CreditHistoryParams{}).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "ID\tAMOUNT\tREASON\tAT")
			for _, e := range res.CreditHistory {
				fmt.Fprintf(tw, "%s\t%g\t%s\t%s\n", e.ID, e.TransferAmount, e.Reason, e.TransferredAt)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVar(&deposits, "deposits", false, "show deposits instead of credit movements")
	return cmd
}

func (a *app) callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call METHOD [PARAMS_JSON]",
		Short: "Invoke any method with raw JSON params",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, args []string) error {
			params := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("parse params: %w", err)
				}
			}
			s := c.Session()
			res, err := s.Call(ctx, c.Protocol(), args[0], params).Wait(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}),
	}
}
