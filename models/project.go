package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	Name        string        `json:"name" gorm:"size:200;not null;uniqueIndex"`
	Code        string        `json:"code" gorm:"size:50;index"`
	Location    string        `json:"location"`
	Description string        `json:"description"`
	StartDate   *time.Time    `json:"start_date"`
	EndDate     *time.Time    `json:"end_date"`
	Status      ProjectStatus `json:"status" gorm:"size:20;not null"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectMember grants a plain user access to one project.
type ProjectMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"not null;uniqueIndex:idx_project_members_project_user,priority:1"`
	UserID    string    `json:"user_id" gorm:"size:36;not null;uniqueIndex:idx_project_members_project_user,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectSummary rolls item figures up to the project.
type ProjectSummary struct {
	Project
	ItemCount         int             `json:"item_count"`
	ContractTotalCost decimal.Decimal `json:"contract_total_cost"`
	ActualTotalCost   decimal.Decimal `json:"actual_total_cost"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	CostVariance      decimal.Decimal `json:"cost_variance"`
}

func NewProjectSummary(project Project, items []ItemSummary) ProjectSummary {
	s := ProjectSummary{Project: project, ItemCount: len(items)}
	for _, it := range items {
		s.ContractTotalCost = s.ContractTotalCost.Add(it.ContractTotalCost)
		s.ActualTotalCost = s.ActualTotalCost.Add(it.ActualTotalCost)
		s.PaidAmount = s.PaidAmount.Add(it.PaidAmount)
	}
	s.RemainingAmount = s.ActualTotalCost.Sub(s.PaidAmount)
	s.CostVariance = s.ContractTotalCost.Sub(s.ActualTotalCost)
	return s
}
