package services

import (
	"context"
	"fmt"

	"costtrack-backend/models"
	"costtrack-backend/utils"

	"gorm.io/gorm"
)

type ContractorInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" validate:"omitempty,email"`
	PhoneNumber   string `json:"phone_number"`
	TaxNumber     string `json:"tax_number"`
	Address       string `json:"address"`
	Active        *bool  `json:"active"`
}

type ContractorPatch struct {
	Name          *string `json:"name" validate:"omitempty,max=200"`
	ContactPerson *string `json:"contact_person"`
	Email         *string `json:"email" validate:"omitempty,email"`
	PhoneNumber   *string `json:"phone_number"`
	TaxNumber     *string `json:"tax_number"`
	Address       *string `json:"address"`
	Active        *bool   `json:"active"`
}

func CreateContractor(ctx context.Context, db *gorm.DB, auth AuthContext, in ContractorInput) (*models.Contractor, error) {
	const op = "CreateContractor"
	if err := auth.require(PermManageContractors); err != nil {
		return nil, err
	}
	utils.NormalizeDTO(&in)
	if in.Name == "" {
		return nil, invalid(op, "contractor name is required")
	}
	var taken int64
	if err := db.WithContext(ctx).Model(&models.Contractor{}).Where("name = ?", in.Name).Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, invalid(op, "a contractor named %q already exists", in.Name)
	}
	contractor := models.Contractor{
		Name:          in.Name,
		ContactPerson: in.ContactPerson,
		Email:         in.Email,
		PhoneNumber:   in.PhoneNumber,
		TaxNumber:     in.TaxNumber,
		Address:       in.Address,
		Active:        in.Active == nil || *in.Active,
	}
	if err := db.WithContext(ctx).Create(&contractor).Error; err != nil {
		return nil, fmt.Errorf("create contractor: %w", err)
	}
	return &contractor, nil
}

func UpdateContractor(ctx context.Context, db *gorm.DB, auth AuthContext, id uint, patch ContractorPatch) (*models.Contractor, error) {
	const op = "UpdateContractor"
	if err := auth.require(PermManageContractors); err != nil {
		return nil, err
	}
	contractor, err := loadContractor(ctx, db, id)
	if err != nil {
		return nil, err
	}
	utils.NormalizeDTO(&patch)
	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, invalid(op, "contractor name is required")
		}
		var taken int64
		if err := db.WithContext(ctx).Model(&models.Contractor{}).
			Where("name = ? AND id <> ?", *patch.Name, id).Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken > 0 {
			return nil, invalid(op, "a contractor named %q already exists", *patch.Name)
		}
	}
	updates := utils.PatchColumns(&patch)
	if len(updates) == 0 {
		return contractor, nil
	}
	if err := db.WithContext(ctx).Model(contractor).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update contractor %d: %w", id, err)
	}
	return loadContractor(ctx, db, id)
}

// DeleteContractor is refused while invoices, items or cost details still
// point at the contractor.
func DeleteContractor(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) error {
	const op = "DeleteContractor"
	if err := auth.require(PermDeleteContractors); err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadContractor(ctx, tx, id); err != nil {
			return err
		}
		refs := []struct {
			model any
			what  string
		}{
			{&models.Invoice{}, "invoice"},
			{&models.Item{}, "item"},
			{&models.CostDetail{}, "cost detail"},
		}
		for _, ref := range refs {
			var n int64
			if err := tx.Model(ref.model).Where("contractor_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return conflict(op, "contractor is still linked to %d %s(s)", n, ref.what)
			}
		}
		return tx.Delete(&models.Contractor{}, id).Error
	})
}

func GetContractor(ctx context.Context, db *gorm.DB, id uint) (*models.Contractor, error) {
	return loadContractor(ctx, db, id)
}

// ListContractors returns contractors by name; activeOnly hides retired ones.
func ListContractors(ctx context.Context, db *gorm.DB, activeOnly bool) ([]models.Contractor, error) {
	q := db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var contractors []models.Contractor
	err := q.Find(&contractors).Error
	return contractors, err
}

func loadContractor(ctx context.Context, db *gorm.DB, id uint) (*models.Contractor, error) {
	var c models.Contractor
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, lookup(err, "contractor", id)
	}
	return &c, nil
}

// ContractorNames maps ids to names for export rows.
func ContractorNames(ctx context.Context, db *gorm.DB) (map[uint]string, error) {
	var contractors []models.Contractor
	if err := db.WithContext(ctx).Select("id", "name").Find(&contractors).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(contractors))
	for _, c := range contractors {
		names[c.ID] = c.Name
	}
	return names, nil
}
