package services

import (
	"context"
	"fmt"

	"costtrack-backend/models"
	"costtrack-backend/utils"

	"gorm.io/gorm"
)

type ProjectInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"max=50"`
	Location    string `json:"location"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
}

// ProjectPatch updates only the fields that are set.
type ProjectPatch struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Code        *string `json:"code" validate:"omitempty,max=50"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Status      *string `json:"status"`
}

func CreateProject(ctx context.Context, db *gorm.DB, auth AuthContext, in ProjectInput) (*models.Project, error) {
	const op = "CreateProject"
	if err := auth.require(PermManageProjects); err != nil {
		return nil, err
	}
	utils.NormalizeDTO(&in)
	project := models.Project{
		Name:        in.Name,
		Code:        in.Code,
		Location:    in.Location,
		Description: in.Description,
		Status:      models.ProjectActive,
	}
	if in.Name == "" {
		return nil, invalid(op, "project name is required")
	}
	if in.Status != "" {
		project.Status = models.ProjectStatus(in.Status)
		if !project.Status.Valid() {
			return nil, invalid(op, "invalid project status %q", in.Status)
		}
	}
	var err error
	if project.StartDate, err = utils.ParseOptionalDate(in.StartDate); err != nil {
		return nil, invalid(op, "start_date: %v", err)
	}
	if project.EndDate, err = utils.ParseOptionalDate(in.EndDate); err != nil {
		return nil, invalid(op, "end_date: %v", err)
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		return nil, invalid(op, "end_date is before start_date")
	}

	var taken int64
	if err := db.WithContext(ctx).Model(&models.Project{}).Where("name = ?", project.Name).Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, invalid(op, "a project named %q already exists", project.Name)
	}
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &project, nil
}

func UpdateProject(ctx context.Context, db *gorm.DB, auth AuthContext, id uint, patch ProjectPatch) (*models.Project, error) {
	const op = "UpdateProject"
	if err := auth.require(PermManageProjects); err != nil {
		return nil, err
	}
	project, err := loadProject(ctx, db, id)
	if err != nil {
		return nil, err
	}
	utils.NormalizeDTO(&patch)
	updates := utils.PatchColumns(&patch)
	if patch.Name != nil && *patch.Name == "" {
		return nil, invalid(op, "project name is required")
	}
	if patch.Status != nil && !models.ProjectStatus(*patch.Status).Valid() {
		return nil, invalid(op, "invalid project status %q", *patch.Status)
	}
	for _, key := range []string{"start_date", "end_date"} {
		raw, ok := updates[key].(string)
		if !ok {
			continue
		}
		date, err := utils.ParseOptionalDate(raw)
		if err != nil {
			return nil, invalid(op, "%s: %v", key, err)
		}
		updates[key] = date
	}
	if len(updates) == 0 {
		return project, nil
	}
	if err := db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update project %d: %w", id, err)
	}
	return loadProject(ctx, db, id)
}

// DeleteProject removes a project together with its items and cost details.
// Projects that already carry invoices cannot be deleted.
func DeleteProject(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) error {
	const op = "DeleteProject"
	if err := auth.require(PermDeleteProjects); err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadProject(ctx, tx, id); err != nil {
			return err
		}
		var invoices int64
		if err := tx.Model(&models.Invoice{}).Where("project_id = ?", id).Count(&invoices).Error; err != nil {
			return err
		}
		if invoices > 0 {
			return conflict(op, "project has %d invoice(s); delete them first", invoices)
		}
		itemIDs := tx.Model(&models.Item{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("item_id IN (?)", itemIDs).Delete(&models.CostDetail{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Item{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}

func GetProject(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) (*models.Project, error) {
	project, err := loadProject(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := requireProject(ctx, db, auth, id); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns the projects visible to the caller.
func ListProjects(ctx context.Context, db *gorm.DB, auth AuthContext) ([]models.Project, error) {
	q := db.WithContext(ctx).Model(&models.Project{}).Order("name")
	if !auth.Role.Elevated() {
		q = q.Where("id IN (?)", db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", auth.UserID))
	}
	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProjectSummary returns the project with its item roll-up.
func GetProjectSummary(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) (models.ProjectSummary, []models.ItemSummary, error) {
	project, err := GetProject(ctx, db, auth, id)
	if err != nil {
		return models.ProjectSummary{}, nil, err
	}
	items, err := ListItemSummaries(ctx, db, auth, id)
	if err != nil {
		return models.ProjectSummary{}, nil, err
	}
	return models.NewProjectSummary(*project, items), items, nil
}

func AddProjectMember(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint, userID string) (*models.ProjectMember, error) {
	const op = "AddProjectMember"
	if err := auth.require(PermManageMembers); err != nil {
		return nil, err
	}
	if _, err := loadProject(ctx, db, projectID); err != nil {
		return nil, err
	}
	var user models.User
	if err := db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, lookup(err, "user", userID)
	}
	member := models.ProjectMember{ProjectID: projectID, UserID: user.Id}
	var exists int64
	if err := db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, user.Id).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, invalid(op, "user %s is already a member of project %d", user.Id, projectID)
	}
	if err := db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, fmt.Errorf("add project member: %w", err)
	}
	return &member, nil
}

func RemoveProjectMember(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint, userID string) error {
	if err := auth.require(PermManageMembers); err != nil {
		return err
	}
	res := db.WithContext(ctx).Where("project_id = ? AND user_id = ?", projectID, userID).Delete(&models.ProjectMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member %s of project %d: %w", userID, projectID, ErrNotFound)
	}
	return nil
}

func ListProjectMembers(ctx context.Context, db *gorm.DB, auth AuthContext, projectID uint) ([]models.User, error) {
	if err := requireProject(ctx, db, auth, projectID); err != nil {
		return nil, err
	}
	var users []models.User
	err := db.WithContext(ctx).
		Where("id IN (?)", db.Model(&models.ProjectMember{}).Select("user_id").Where("project_id = ?", projectID)).
		Order("last_name, first_name").
		Find(&users).Error
	return users, err
}

func loadProject(ctx context.Context, db *gorm.DB, id uint) (*models.Project, error) {
	var project models.Project
	if err := db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, lookup(err, "project", id)
	}
	return &project, nil
}
