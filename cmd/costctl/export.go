package main

import (
	"fmt"
	"os"

	"costtrack-backend/exports"
	"costtrack-backend/services"
	"costtrack-backend/sheets"
	"costtrack-backend/utils"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export PROJECT_ID",
	Short: "Write a project's bill of quantities to an xlsx file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = fmt.Sprintf("project-%d.xlsx", id)
		}

		_, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		auth := services.SystemContext()
		summary, items, err := services.GetProjectSummary(cmd.Context(), db, auth, id)
		if err != nil {
			return err
		}
		names, err := services.ContractorNames(cmd.Context(), db)
		if err != nil {
			return err
		}
		buf, err := exports.ExportProject(summary, items, names)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d items)\n", out, len(items))
		return nil
	},
}

var syncSheetsCmd = &cobra.Command{
	Use:   "sync-sheets PROJECT_ID",
	Short: "Push a project's items to the configured Google Sheet",
	Long: `Replace the project's worksheet with its current item records.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := utils.ParseID(args[0])
		if err != nil {
			return err
		}
		cfg, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		if !cfg.SheetsEnabled() {
			return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required")
		}
		svc, err := sheets.NewSheetsService(cmd.Context(), cfg.GoogleSheetURL)
		if err != nil {
			return err
		}
		auth := services.SystemContext()
		project, err := services.GetProject(cmd.Context(), db, auth, id)
		if err != nil {
			return err
		}
		records, err := services.ProjectItemRecords(cmd.Context(), db, auth, id)
		if err != nil {
			return err
		}
		if err := svc.Sync(cmd.Context(), *project, records); err != nil {
			return err
		}
		fmt.Printf("synced %d items to sheet %q\n", len(records), sheets.SheetName(*project))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, syncSheetsCmd)

	exportCmd.Flags().StringP("out", "o", "", "Output file (default project-<id>.xlsx)")
}
