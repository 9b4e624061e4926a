package main

import (
	"fmt"
	"time"

	"costtrack-backend/services"

	"github.com/spf13/cobra"
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Inspect and reset document number counters",
}

var counterNextCmd = &cobra.Command{
	Use:   "next PREFIX",
	Short: "Preview the next number for PREFIX without reserving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		next, err := services.NewSequenceService(db).Next(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(next)
		return nil
	},
}

var counterResetCmd = &cobra.Command{
	Use:   "reset PREFIX",
	Short: "Reset the counter for PREFIX to zero",
	Long: `Reset the counter for PREFIX and the given year to zero.

Numbers already issued in that year will be issued again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		_, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		if err := services.NewSequenceService(db).Reset(cmd.Context(), services.SystemContext(), args[0], year); err != nil {
			return err
		}
		fmt.Printf("counter %s/%d reset\n", args[0], year)
		return nil
	},
}

var counterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		counters, err := services.NewSequenceService(db).List(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range counters {
			fmt.Printf("%-10s %d %6d\n", c.Prefix, c.Year, c.CurrentNumber)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(counterCmd)
	counterCmd.AddCommand(counterNextCmd, counterResetCmd, counterListCmd)

	counterResetCmd.Flags().Int("year", time.Now().Year(), "Counter year")
}
