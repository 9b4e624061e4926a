package controllers

import (
	"fmt"

	"costtrack-backend/exports"
	"costtrack-backend/middlewares"
	"costtrack-backend/services"

	"github.com/gofiber/fiber/v2"
)

type ProjectMemberDTO struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// POST /api/projects
func CreateProject(c *fiber.Ctx) error {
	var in services.ProjectInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	project, err := services.CreateProject(c.UserContext(), db, auth, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// GET /api/projects
func GetProjects(c *fiber.Ctx) error {
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	projects, err := services.ListProjects(c.UserContext(), db, auth)
	if err != nil {
		return err
	}
	return c.JSON(projects)
}

// GET /api/projects/:id
// Returns the project with its cost roll-up and items.
func GetProject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	summary, items, err := services.GetProjectSummary(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"project": summary,
		"items":   items,
	})
}

// PUT /api/projects/:id
func UpdateProject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.ProjectPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	project, err := services.UpdateProject(c.UserContext(), db, auth, id, in)
	if err != nil {
		return err
	}
	return c.JSON(project)
}

// DELETE /api/projects/:id
func DeleteProject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteProject(c.UserContext(), db, auth, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/projects/:id/members
func GetProjectMembers(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	users, err := services.ListProjectMembers(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// POST /api/projects/:id/members
func AddProjectMember(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in ProjectMemberDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	member, err := services.AddProjectMember(c.UserContext(), db, auth, id, in.UserID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(member)
}

// DELETE /api/projects/:id/members/:userId
func RemoveProjectMember(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.RemoveProjectMember(c.UserContext(), db, auth, id, c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/projects/:id/export
func ExportProject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	summary, items, err := services.GetProjectSummary(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	names, err := services.ContractorNames(c.UserContext(), db)
	if err != nil {
		return err
	}
	buf, err := exports.ExportProject(summary, items, names)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, exports.ContentTypeXLSX)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="project-%d.xlsx"`, id))
	return c.Send(buf.Bytes())
}

// POST /api/projects/:id/sheets-sync
func SyncProjectSheet(c *fiber.Ctx) error {
	if deps.Sheets == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Google Sheets sync is not configured")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	project, err := services.GetProject(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	records, err := services.ProjectItemRecords(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	if err := deps.Sheets.Sync(c.UserContext(), *project, records); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "synced",
		"rows":    len(records),
	})
}
