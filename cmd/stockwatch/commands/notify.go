package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var notifyMessage *string

func init() {
	notifyMessage = notifyTestCmd.Flags().String("message", "This is a test message from stock-watch.", "The message body to send.")
	rootCmd.AddCommand(notifyTestCmd)
}

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test [--message <text>]",
	Short: "Sends a test message on every configured channel and prints the outcome.",
	RunE: func(cmd *cobra.Command, args []string) error {
		deliveries := newDispatcher(cfg).Send(cmd.Context(), "[stock-watch] Test notification", *notifyMessage)

		t := newTable()
		t.AppendHeader(table.Row{"Channel", "Status", "Error"})
		for _, d := range deliveries {
			t.AppendRow(table.Row{d.Channel, d.Status, d.Error})
		}
		t.Render()
		return nil
	},
}
