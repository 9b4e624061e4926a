package services

import (
	"context"
	"fmt"

	"costtrack-backend/models"
	"costtrack-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemInput struct {
	ContractorID     *uint               `json:"contractor_id"`
	Code             string              `json:"code" validate:"max=50"`
	Description      string              `json:"description" validate:"required"`
	Unit             string              `json:"unit" validate:"max=20"`
	ContractQuantity decimal.Decimal     `json:"contract_quantity"`
	ContractUnitCost decimal.Decimal     `json:"contract_unit_cost"`
	ActualQuantity   decimal.NullDecimal `json:"actual_quantity"`
	ActualUnitCost   decimal.NullDecimal `json:"actual_unit_cost"`
}

func (in ItemInput) check(op string) error {
	if in.Description == "" {
		return invalid(op, "item description is required")
	}
	if in.ContractQuantity.IsNegative() || in.ContractUnitCost.IsNegative() {
		return invalid(op, "contract quantity and unit cost must not be negative")
	}
	if (in.ActualQuantity.Valid && in.ActualQuantity.Decimal.IsNegative()) ||
		(in.ActualUnitCost.Valid && in.ActualUnitCost.Decimal.IsNegative()) {
		return invalid(op, "actual quantity and unit cost must not be negative")
	}
	return nil
}

func (in ItemInput) apply(item *models.Item) {
	item.ContractorID = in.ContractorID
	item.Code = in.Code
	item.Description = in.Description
	item.Unit = in.Unit
	item.ContractQuantity = in.ContractQuantity
	item.ContractUnitCost = in.ContractUnitCost
	item.ActualQuantity = in.ActualQuantity
	item.ActualUnitCost = in.ActualUnitCost
}

func CreateItem(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint, in ItemInput) (*models.Item, error) {
	const op = "CreateItem"
	utils.NormalizeDTO(&in)
	if err := in.check(op); err != nil {
		return nil, err
	}
	if _, err := loadProject(ctx, db, projectID); err != nil {
		return nil, err
	}
	if err := requireProject(ctx, db, auth, projectID); err != nil {
		return nil, err
	}
	if err := checkContractorRef(ctx, db, op, in.ContractorID); err != nil {
		return nil, err
	}
	item := models.Item{ProjectID: projectID}
	in.apply(&item)
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return &item, nil
}

// UpdateItem replaces the item's editable fields. The actual quantity may not
// drop below what has already been invoiced directly against the item.
func UpdateItem(ctx context.Context, db *gorm.DB, auth AuthContext, id uint, in ItemInput) (*models.Item, error) {
	const op = "UpdateItem"
	utils.NormalizeDTO(&in)
	if err := in.check(op); err != nil {
		return nil, err
	}
	var item models.Item
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&item, id).Error; err != nil {
			return lookup(err, "item", id)
		}
		if err := requireProject(ctx, tx, auth, item.ProjectID); err != nil {
			return err
		}
		if err := checkContractorRef(ctx, tx, op, in.ContractorID); err != nil {
			return err
		}
		invoiced, err := ItemInvoicedQuantity(tx, id, 0)
		if err != nil {
			return err
		}
		if invoiced.IsPositive() {
			newQty := decimal.Zero
			if in.ActualQuantity.Valid {
				newQty = in.ActualQuantity.Decimal
			}
			if newQty.LessThan(invoiced) {
				return invalid(op, "actual quantity %s is below the already invoiced quantity %s", newQty, invoiced)
			}
		}
		in.apply(&item)
		return tx.Select("ContractorID", "Code", "Description", "Unit", "ContractQuantity",
			"ContractUnitCost", "ActualQuantity", "ActualUnitCost").Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes the item and its cost details unless any invoice line
// refers to either.
func DeleteItem(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) error {
	const op = "DeleteItem"
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := forUpdate(tx).First(&item, id).Error; err != nil {
			return lookup(err, "item", id)
		}
		if err := requireProject(ctx, tx, auth, item.ProjectID); err != nil {
			return err
		}
		var lines int64
		if err := tx.Model(&models.InvoiceItem{}).Where("item_id = ?", id).Count(&lines).Error; err != nil {
			return err
		}
		if lines > 0 {
			return conflict(op, "item is billed on %d invoice line(s)", lines)
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.CostDetail{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
}

// GetItemSummary loads one item with its cost details and aggregates.
func GetItemSummary(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) (*models.ItemSummary, error) {
	var item models.Item
	if err := db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, lookup(err, "item", id)
	}
	if err := requireProject(ctx, db, auth, item.ProjectID); err != nil {
		return nil, err
	}
	var details []models.CostDetail
	if err := db.WithContext(ctx).Where("item_id = ?", id).Order("id").Find(&details).Error; err != nil {
		return nil, err
	}
	paid, err := ItemPaidAmount(db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	invoiced, err := ItemInvoicedQuantity(db.WithContext(ctx), id, 0)
	if err != nil {
		return nil, err
	}
	s := models.NewItemSummary(item, details, paid, invoiced)
	return &s, nil
}

// ListItemSummaries returns every item of the project with aggregates,
// loaded with one grouped query per figure.
func ListItemSummaries(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint) ([]models.ItemSummary, error) {
	if err := requireProject(ctx, db, auth, projectID); err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)
	var items []models.Item
	if err := db.Where("project_id = ?", projectID).Order("code, id").Find(&items).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	details := map[uint][]models.CostDetail{}
	if len(ids) > 0 {
		var all []models.CostDetail
		if err := db.Where("item_id IN ?", ids).Order("id").Find(&all).Error; err != nil {
			return nil, err
		}
		for _, d := range all {
			details[d.ItemID] = append(details[d.ItemID], d)
		}
	}
	paid, err := itemPaidAmounts(db, ids)
	if err != nil {
		return nil, err
	}
	invoiced, err := itemInvoicedQuantities(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.ItemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, models.NewItemSummary(it, details[it.ID], paid[it.ID], invoiced[it.ID]))
	}
	return out, nil
}

// ProjectItemRecords flattens the project's items for exporters.
func ProjectItemRecords(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint) ([]models.ItemRecord, error) {
	items, err := ListItemSummaries(ctx, db, auth, projectID)
	if err != nil {
		return nil, err
	}
	names, err := ContractorNames(ctx, db)
	if err != nil {
		return nil, err
	}
	records := make([]models.ItemRecord, len(items))
	for i, it := range items {
		var contractor string
		if it.ContractorID != nil {
			contractor = names[*it.ContractorID]
		}
		records[i] = it.Record(contractor)
	}
	return records, nil
}

// ImportItems creates the given drafts under the project in one savepoint;
// any invalid row rejects the whole batch.
func ImportItems(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint, drafts []ItemInput) ([]models.Item, error) {
	const op = "ImportItems"
	if len(drafts) == 0 {
		return nil, invalid(op, "no items to import")
	}
	var created []models.Item
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, d := range drafts {
			item, err := CreateItem(ctx, tx, auth, projectID, d)
			if err != nil {
				if IsValidation(err) {
					return invalid(op, "row %d: %v", i+1, err)
				}
				return err
			}
			created = append(created, *item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func checkContractorRef(ctx context.Context, db *gorm.DB, op string, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&models.Contractor{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return invalid(op, "contractor %d does not exist", *id)
	}
	return nil
}

type CostDetailInput struct {
	ContractorID *uint           `json:"contractor_id"`
	Description  string          `json:"description" validate:"required"`
	Unit         string          `json:"unit" validate:"max=20"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	VatPercent   decimal.Decimal `json:"vat_percent" validate:"gte=0,lte=100"`
}

func (in CostDetailInput) check(op string) error {
	if in.Description == "" {
		return invalid(op, "cost detail description is required")
	}
	if in.Quantity.IsNegative() || in.UnitCost.IsNegative() {
		return invalid(op, "quantity and unit cost must not be negative")
	}
	if in.VatPercent.IsNegative() || in.VatPercent.GreaterThan(decimal.NewFromInt(100)) {
		return invalid(op, "vat_percent must be between 0 and 100")
	}
	return nil
}

func (in CostDetailInput) apply(d *models.CostDetail) {
	d.ContractorID = in.ContractorID
	d.Description = in.Description
	d.Unit = in.Unit
	d.Quantity = in.Quantity
	d.UnitCost = in.UnitCost
	d.VatPercent = in.VatPercent
}

func CreateCostDetail(ctx context.Context, db *gorm.DB, auth AuthContext, itemID uint, in CostDetailInput) (*models.CostDetail, error) {
	const op = "CreateCostDetail"
	utils.NormalizeDTO(&in)
	if err := in.check(op); err != nil {
		return nil, err
	}
	var item models.Item
	if err := db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, lookup(err, "item", itemID)
	}
	if err := requireProject(ctx, db, auth, item.ProjectID); err != nil {
		return nil, err
	}
	if err := checkContractorRef(ctx, db, op, in.ContractorID); err != nil {
		return nil, err
	}
	detail := models.CostDetail{ItemID: itemID}
	in.apply(&detail)
	if err := db.WithContext(ctx).Create(&detail).Error; err != nil {
		return nil, fmt.Errorf("create cost detail: %w", err)
	}
	return &detail, nil
}

func UpdateCostDetail(ctx context.Context, db *gorm.DB, auth AuthContext, id uint, in CostDetailInput) (*models.CostDetail, error) {
	const op = "UpdateCostDetail"
	utils.NormalizeDTO(&in)
	if err := in.check(op); err != nil {
		return nil, err
	}
	var detail models.CostDetail
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&detail, id).Error; err != nil {
			return lookup(err, "cost detail", id)
		}
		if err := requireItemProject(ctx, tx, auth, detail.ItemID); err != nil {
			return err
		}
		if err := checkContractorRef(ctx, tx, op, in.ContractorID); err != nil {
			return err
		}
		invoiced, err := CostDetailInvoicedQuantity(tx, id, 0)
		if err != nil {
			return err
		}
		if in.Quantity.LessThan(invoiced) {
			return invalid(op, "quantity %s is below the already invoiced quantity %s", in.Quantity, invoiced)
		}
		in.apply(&detail)
		return tx.Select("ContractorID", "Description", "Unit", "Quantity", "UnitCost", "VatPercent").Save(&detail).Error
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func DeleteCostDetail(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) error {
	const op = "DeleteCostDetail"
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var detail models.CostDetail
		if err := forUpdate(tx).First(&detail, id).Error; err != nil {
			return lookup(err, "cost detail", id)
		}
		if err := requireItemProject(ctx, tx, auth, detail.ItemID); err != nil {
			return err
		}
		var lines int64
		if err := tx.Model(&models.InvoiceItem{}).Where("cost_detail_id = ?", id).Count(&lines).Error; err != nil {
			return err
		}
		if lines > 0 {
			return conflict(op, "cost detail is billed on %d invoice line(s)", lines)
		}
		return tx.Delete(&detail).Error
	})
}

// ListCostDetails returns the item's cost details with derived figures.
func ListCostDetails(ctx context.Context, db *gorm.DB, auth AuthContext, itemID uint) ([]models.CostDetailView, error) {
	if err := requireItemProject(ctx, db, auth, itemID); err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)
	var details []models.CostDetail
	if err := db.Where("item_id = ?", itemID).Order("id").Find(&details).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, len(details))
	for i := range details {
		ids[i] = details[i].ID
	}
	invoiced, err := costDetailInvoicedQuantities(db, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.CostDetailView, len(details))
	for i, d := range details {
		views[i] = models.NewCostDetailView(d, invoiced[d.ID])
	}
	return views, nil
}

func requireItemProject(ctx context.Context, db *gorm.DB, auth AuthContext, itemID uint) error {
	var item models.Item
	if err := db.WithContext(ctx).Select("id", "project_id").First(&item, itemID).Error; err != nil {
		return lookup(err, "item", itemID)
	}
	return requireProject(ctx, db, auth, item.ProjectID)
}
