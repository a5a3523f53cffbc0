package main

import (
	"github.com/spf13/cobra"
)

func remindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send today's recurring expense reminders once and exit",
		Long: `remind runs the daily recurring check immediately. Confirmations are kept
in memory, so answers only work while a serve process with the same state is
running; use it to test delivery.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			return a.bot.SendRecurringReminders(cmd.Context())
		},
	}
}
