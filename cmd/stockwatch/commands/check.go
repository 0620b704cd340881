package commands

import (
	"fmt"
	"time"

	"stock-watch/internal/detect"
	"stock-watch/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var checkDecide *bool

func init() {
	checkDecide = checkCmd.Flags().Bool("decide", false, "Also show what the detector would decide against the stored state.")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check [url...] [--decide]",
	Short: "Runs one extraction for the given or configured products and prints the observations. Never notifies or saves state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		products := cfg.Products
		if len(args) > 0 {
			products = nil
			for _, u := range args {
				products = append(products, model.Product{Key: u, URL: u})
			}
		}
		if len(products) == 0 {
			return fmt.Errorf("no product to check: pass a URL or set PRODUCT_URL")
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		t := newTable()
		header := table.Row{"Product", "Quantity", "In stock", "Source"}
		if *checkDecide {
			header = append(header, "Decision", "Notify")
		}
		t.AppendHeader(header)

		for _, p := range products {
			obs := a.observer.Observe(cmd.Context(), p.URL)
			row := table.Row{p.DisplayName(), model.FormatQuantity(obs.Quantity), model.FormatBool(obs.InStock), obs.Source}
			if *checkDecide {
				d := detect.Decide(obs, a.store.Load(cmd.Context(), p.Key), cfg.Policy(), time.Now())
				kind := string(d.Kind)
				if kind == "" {
					kind = "-"
				}
				row = append(row, kind, d.Notify)
			}
			t.AppendRow(row)
		}
		t.Render()
		return nil
	},
}
