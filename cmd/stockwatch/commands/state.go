package commands

import (
	"time"

	"stock-watch/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var stateHistory *int

func init() {
	stateHistory = stateCmd.Flags().Int("history", 0, "Also print the newest N notifications.")
	rootCmd.AddCommand(stateCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state [--history N]",
	Short: "Prints the stored monitor state of every product.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		keys, err := a.store.Keys(ctx)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Product", "Seen qty", "Seen in stock", "Notified qty", "Notified in stock", "Last notification", "At"})
		for _, k := range keys {
			st := a.store.Load(ctx, k)
			lastKey, at := "-", "-"
			if st.LastNotificationKey != nil {
				lastKey = *st.LastNotificationKey
			}
			if st.LastNotificationTime != nil {
				at = st.LastNotificationTime.Local().Format(time.DateTime)
			}
			t.AppendRow(table.Row{
				k,
				model.FormatQuantity(st.LastSeenQuantity),
				model.FormatBool(st.LastSeenInStock),
				model.FormatQuantity(st.LastNotifiedQuantity),
				model.FormatBool(st.LastNotifiedInStock),
				lastKey,
				at,
			})
		}
		t.Render()

		if *stateHistory <= 0 {
			return nil
		}

		history, err := a.store.ListNotifications(ctx, "", *stateHistory)
		if err != nil {
			return err
		}
		h := newTable()
		h.AppendHeader(table.Row{"At", "Product", "Kind", "Quantity", "Channels"})
		for _, rec := range history {
			channels := ""
			for i, d := range rec.Deliveries {
				if i > 0 {
					channels += ", "
				}
				channels += d.Channel + ":" + d.Status
			}
			h.AppendRow(table.Row{
				rec.CreatedAt.Local().Format(time.DateTime),
				rec.ProductKey,
				rec.Kind,
				model.FormatQuantity(rec.PreviousQuantity) + " → " + model.FormatQuantity(rec.NewQuantity),
				channels,
			})
		}
		h.Render()
		return nil
	},
}
