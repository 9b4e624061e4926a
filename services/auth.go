package services

import (
	"context"
	"fmt"

	"costtrack-backend/models"

	"gorm.io/gorm"
)

// AuthContext identifies the caller of a service operation. It is passed
// explicitly; services never look at request state.
type AuthContext struct {
	UserID string
	Role   models.Role
}

// SystemContext is used by the admin CLI.
func SystemContext() AuthContext {
	return AuthContext{UserID: "system", Role: models.RoleAdmin}
}

type Permission int

const (
	PermManageUsers Permission = iota
	PermResetCounters
	PermDeleteProjects
	PermManageProjects
	PermManageMembers
	PermManageContractors
	PermDeleteContractors
	PermDeleteInvoices
)

var permissionNames = map[Permission]string{
	PermManageUsers:       "manage users",
	PermResetCounters:     "reset counters",
	PermDeleteProjects:    "delete projects",
	PermManageProjects:    "manage projects",
	PermManageMembers:     "manage project members",
	PermManageContractors: "manage contractors",
	PermDeleteContractors: "delete contractors",
	PermDeleteInvoices:    "delete invoices",
}

func (a AuthContext) Can(p Permission) bool {
	switch p {
	case PermManageUsers, PermResetCounters, PermDeleteProjects:
		return a.Role == models.RoleAdmin
	default:
		return a.Role.Elevated()
	}
}

func (a AuthContext) require(p Permission) error {
	if !a.Can(p) {
		return fmt.Errorf("%s: %w", permissionNames[p], ErrForbidden)
	}
	return nil
}

// CanAccessProject reports whether the caller may act on the project.
func CanAccessProject(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint) (bool, error) {
	if auth.Role.Elevated() {
		return true, nil
	}
	if auth.UserID == "" {
		return false, nil
	}
	var count int64
	err := db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, auth.UserID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func requireProject(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint) error {
	ok, err := CanAccessProject(ctx, db, auth, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("project %d: %w", projectID, ErrForbidden)
	}
	return nil
}
