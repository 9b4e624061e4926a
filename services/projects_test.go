package services

import (
	"testing"

	"costtrack-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectAccessForPlainUsers(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()
	other := f.project("Harbour")
	u := f.user("site.manager@example.com", models.RoleUser)
	user := AuthContext{UserID: u.Id, Role: models.RoleUser}

	_, err := GetInvoiceSummary(f.ctx, f.db, user, s.invoice.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = AddPayment(f.ctx, f.db, user, s.invoice.ID, PaymentInput{
		PaymentDate: "2026-03-15",
		Amounts:     map[uint]decimal.Decimal{s.line.ID: dec("10")},
	}, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = AddProjectMember(f.ctx, f.db, user, s.project.ID, u.Id)
	assert.ErrorIs(t, err, ErrForbidden, "users cannot add themselves")

	_, err = AddProjectMember(f.ctx, f.db, subAdmin, s.project.ID, u.Id)
	require.NoError(t, err)
	_, err = AddProjectMember(f.ctx, f.db, subAdmin, s.project.ID, u.Id)
	assert.True(t, IsValidation(err))

	_, err = GetInvoiceSummary(f.ctx, f.db, user, s.invoice.ID)
	require.NoError(t, err)
	_, err = AddPayment(f.ctx, f.db, user, s.invoice.ID, PaymentInput{
		PaymentDate: "2026-03-15",
		Amounts:     map[uint]decimal.Decimal{s.line.ID: dec("10")},
	}, nil)
	require.NoError(t, err)

	projects, err := ListProjects(f.ctx, f.db, user)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, s.project.ID, projects[0].ID)

	_, err = GetProject(f.ctx, f.db, user, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	members, err := ListProjectMembers(f.ctx, f.db, user, s.project.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, u.Email, members[0].Email)

	require.NoError(t, RemoveProjectMember(f.ctx, f.db, admin, s.project.ID, u.Id))
	assert.ErrorIs(t, RemoveProjectMember(f.ctx, f.db, admin, s.project.ID, u.Id), ErrNotFound)
	_, err = GetInvoiceSummary(f.ctx, f.db, user, s.invoice.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRolePermissions(t *testing.T) {
	user := AuthContext{UserID: "u", Role: models.RoleUser}
	cases := []struct {
		perm                  Permission
		admin, subAdmin, user bool
	}{
		{PermManageUsers, true, false, false},
		{PermResetCounters, true, false, false},
		{PermDeleteProjects, true, false, false},
		{PermManageProjects, true, true, false},
		{PermManageMembers, true, true, false},
		{PermManageContractors, true, true, false},
		{PermDeleteContractors, true, true, false},
		{PermDeleteInvoices, true, true, false},
	}
	for _, tc := range cases {
		t.Run(permissionNames[tc.perm], func(t *testing.T) {
			assert.Equal(t, tc.admin, admin.Can(tc.perm))
			assert.Equal(t, tc.subAdmin, subAdmin.Can(tc.perm))
			assert.Equal(t, tc.user, user.Can(tc.perm))
		})
	}
}

func TestProjectCRUD(t *testing.T) {
	f := newFixture(t)

	_, err := CreateProject(f.ctx, f.db, AuthContext{UserID: "u", Role: models.RoleUser}, ProjectInput{Name: "Depot"})
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := CreateProject(f.ctx, f.db, subAdmin, ProjectInput{
		Name:      " Depot ",
		StartDate: "2026-01-10",
		EndDate:   "2026-12-20",
	})
	require.NoError(t, err)
	assert.Equal(t, "Depot", p.Name)
	assert.Equal(t, models.ProjectActive, p.Status)
	require.NotNil(t, p.StartDate)

	_, err = CreateProject(f.ctx, f.db, admin, ProjectInput{Name: "Depot"})
	assert.True(t, IsValidation(err), "names are unique")
	_, err = CreateProject(f.ctx, f.db, admin, ProjectInput{Name: "Backwards", StartDate: "2026-05-01", EndDate: "2026-04-01"})
	assert.True(t, IsValidation(err))

	status := "on_hold"
	code := "DEP"
	updated, err := UpdateProject(f.ctx, f.db, admin, p.ID, ProjectPatch{Status: &status, Code: &code})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectOnHold, updated.Status)
	assert.Equal(t, "DEP", updated.Code)

	bad := "paused"
	_, err = UpdateProject(f.ctx, f.db, admin, p.ID, ProjectPatch{Status: &bad})
	assert.True(t, IsValidation(err))
}

func TestDeleteProject(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()

	assert.ErrorIs(t, DeleteProject(f.ctx, f.db, subAdmin, s.project.ID), ErrForbidden)

	err := DeleteProject(f.ctx, f.db, admin, s.project.ID)
	require.Error(t, err)
	assert.True(t, IsIntegrity(err))

	require.NoError(t, DeleteInvoice(f.ctx, f.db, admin, s.invoice.ID))
	require.NoError(t, DeleteProject(f.ctx, f.db, admin, s.project.ID))

	var n int64
	require.NoError(t, f.db.Model(&models.Item{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestProjectSummary(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()
	f.item(s.project.ID, "2", "50")
	_, err := f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("400")})
	require.NoError(t, err)

	summary, items, err := GetProjectSummary(f.ctx, f.db, admin, s.project.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, summary.ItemCount)
	assert.True(t, summary.ActualTotalCost.Equal(dec("1100")))
	assert.True(t, summary.PaidAmount.Equal(dec("400")))
	assert.True(t, summary.RemainingAmount.Equal(dec("700")))
}
