package database

import (
	"fmt"

	"costtrack-backend/models"

	"gorm.io/gorm"
)

// Migrate creates or updates all tables. On PostgreSQL it also adds the
// CHECK constraints and the composite indexes AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(models.AllModels()...); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}
		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_invoice_items_item_direct ON invoice_items (item_id) WHERE cost_detail_id IS NULL`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_project_status ON invoices (project_id, status)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []struct{ table, name, expr string }{
			{"items", "chk_items_contract_nonneg", "contract_quantity >= 0 AND contract_unit_cost >= 0"},
			{"items", "chk_items_actual_nonneg", "(actual_quantity IS NULL OR actual_quantity >= 0) AND (actual_unit_cost IS NULL OR actual_unit_cost >= 0)"},
			{"cost_details", "chk_cost_details_nonneg", "quantity >= 0 AND unit_cost >= 0 AND vat_percent >= 0"},
			{"invoice_items", "chk_invoice_items_quantity_pos", "quantity > 0"},
			{"payments", "chk_payments_amount_nonneg", "amount >= 0"},
			{"payment_distributions", "chk_payment_distributions_amount_pos", "amount > 0"},
			{"sequence_counters", "chk_sequence_counters_nonneg", "current_number >= 0"},
		}
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%s'::regclass
		  AND conname  = '%s'
	) THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.table, c.name, c.table, c.name, c.expr)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint %s failed: %w", c.name, err)
			}
		}
		return nil
	})
}
