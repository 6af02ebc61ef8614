package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-studio-orderdesk/internal/aws"
	"github.com/imrishuroy/go-studio-orderdesk/internal/config"
	"github.com/imrishuroy/go-studio-orderdesk/internal/customers"
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/search"
	"github.com/imrishuroy/go-studio-orderdesk/internal/triage"
)

type rootOptions struct {
	configFile string
	file       string
	asOf       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "orderdesk",
		Short:         "Search and triage studio orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.file, "file", "", "read orders from a JSON export instead of DynamoDB")
	root.PersistentFlags().StringVar(&opts.asOf, "as-of", "", "classify priorities at this RFC3339 time instead of now")

	root.AddCommand(newSearchCmd(opts), newSummaryCmd(opts))
	return root
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var query, filter string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print the admin order list for a query and tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := triage.ParseFilter(filter)
			if err != nil {
				return err
			}
			cfg, list, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			clock, err := opts.clock()
			if err != nil {
				return err
			}
			p := triage.NewPipeline(search.NewScorer(cfg.Timezone), triage.NewClassifier(clock))
			return printEntries(cmd.OutOrStdout(), p.Run(list, query, f), cfg.Timezone)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "order id, M/D/YYYY date fragment or customer name")
	cmd.Flags().StringVar(&filter, "filter", "ALL", "tab: ALL, PICKUP, PRIORITY, PENDING, DELIVERY, FULFILLED, SHIPPED, DELIVERED")
	return cmd
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count orders per triage bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, list, err := load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			clock, err := opts.clock()
			if err != nil {
				return err
			}
			counts := triage.NewClassifier(clock).Summarize(list)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BUCKET\tORDERS")
			for _, p := range triage.Priorities {
				fmt.Fprintf(w, "%s\t%d\n", p, counts[p])
			}
			fmt.Fprintf(w, "TOTAL\t%d\n", len(list))
			return w.Flush()
		},
	}
}

func (o *rootOptions) clock() (func() time.Time, error) {
	if o.asOf == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, o.asOf)
	if err != nil {
		return nil, fmt.Errorf("--as-of: %w", err)
	}
	return func() time.Time { return t }, nil
}

// load returns the config and the order snapshot, customer names attached.
func load(ctx context.Context, opts *rootOptions) (config.Config, []orders.Order, error) {
	cfg, err := config.LoadFile(opts.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.file != "" {
		list, err := readOrders(opts.file)
		return cfg, list, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.EndpointOverride)
	if err != nil {
		return cfg, nil, err
	}
	list, err := orders.NewStore(clients.DynamoDB, cfg.OrdersTable).List(ctx)
	if err != nil {
		return cfg, nil, err
	}
	list, err = customers.Attach(ctx, customers.NewStore(clients.DynamoDB, cfg.CustomersTable), list, cfg.CustomerFetchConcurrency)
	return cfg, list, err
}

func readOrders(path string) ([]orders.Order, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var list []orders.Order
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return list, nil
}

func printEntries(out io.Writer, entries []triage.Entry, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER_ID\tPRIORITY\tSTATUS\tDATE\tCUSTOMER\tSCORE")
	for _, e := range entries {
		name := ""
		if c := e.Order.Customer; c != nil {
			name = strings.TrimSpace(c.FirstName + " " + c.LastName)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f\n",
			e.Order.OrderID, e.Priority, e.Order.Status,
			e.Order.OrderDate.In(loc).Format("1/2/2006"), name, e.Score)
	}
	return w.Flush()
}
