package appraisal

import (
	"time"

	"employeehub/internal/domain/compliance"
)

type Milestone struct {
	ID              string                   `json:"id"`
	EmployeeID      string                   `json:"employeeId"`
	EmployeeName    string                   `json:"employeeName,omitempty"`
	MilestoneType   compliance.MilestoneType `json:"milestoneType"`
	Label           string                   `json:"label"`
	ReviewNumber    int                      `json:"reviewNumber"`
	DueDate         time.Time                `json:"dueDate"`
	CompletedDate   *time.Time               `json:"completedDate"`
	ConductedByID   *string                  `json:"conductedById"`
	ConductedByName *string                  `json:"conductedByName"`
	Notes           string                   `json:"notes,omitempty"`
	Status          compliance.Status        `json:"status"`
	DaysUntilDue    *int                     `json:"daysUntilDue"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// MilestonePatch is a partial update. Unset fields are left alone and an
// explicit null clears the column.
type MilestonePatch struct {
	DueDate       compliance.Optional[time.Time]
	CompletedDate compliance.Optional[time.Time]
	ConductedByID compliance.Optional[string]
	Notes         compliance.Optional[string]
}

func (p MilestonePatch) Empty() bool {
	return !p.DueDate.IsSet() && !p.CompletedDate.IsSet() && !p.ConductedByID.IsSet() && !p.Notes.IsSet()
}

// normalized clears the conductor along with the completion date unless the
// caller set one explicitly.
func (p MilestonePatch) normalized() MilestonePatch {
	if p.CompletedDate.IsNull() && !p.ConductedByID.IsSet() {
		p.ConductedByID = compliance.Null[string]()
	}
	return p
}

// apply returns m with the patch merged in.
func (p MilestonePatch) apply(m Milestone) Milestone {
	if v, ok := p.DueDate.Get(); ok {
		m.DueDate = compliance.Date(v)
	}
	if p.CompletedDate.IsSet() {
		m.CompletedDate = p.CompletedDate.Ptr()
		if m.CompletedDate != nil {
			d := compliance.Date(*m.CompletedDate)
			m.CompletedDate = &d
		}
	}
	if p.ConductedByID.IsSet() {
		m.ConductedByID = p.ConductedByID.Ptr()
	}
	if p.Notes.IsSet() {
		v, _ := p.Notes.Get()
		m.Notes = v
	}
	return m
}

type MatrixRow struct {
	EmployeeID   string       `json:"employeeId"`
	EmployeeName string       `json:"employeeName"`
	Role         string       `json:"role"`
	Department   string       `json:"department"`
	StartDate    time.Time    `json:"startDate"`
	Reviews      []*Milestone `json:"reviews"`
}

// NewMilestone is a manually recorded milestone. MilestoneType must be one of
// the scheduled review types.
type NewMilestone struct {
	EmployeeID    string
	MilestoneType compliance.MilestoneType
	DueDate       time.Time
	CompletedDate *time.Time
	ConductedByID *string
	Notes         string
}

// Summary counts in-scope milestones by status.
type Summary struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	Overdue              int `json:"overdue"`
	DueSoon              int `json:"dueSoon"`
	NotYetDue            int `json:"notYetDue"`
	EmployeesWithOverdue int `json:"employeesWithOverdue"`
}
