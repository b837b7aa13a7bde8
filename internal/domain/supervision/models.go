package supervision

import (
	"time"

	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
)

type Record struct {
	ID              string            `json:"id"`
	EmployeeID      string            `json:"employeeId"`
	EmployeeName    string            `json:"employeeName,omitempty"`
	ConductedByID   string            `json:"conductedById"`
	ConductedByName string            `json:"conductedByName,omitempty"`
	SupervisionDate time.Time         `json:"supervisionDate"`
	Period          compliance.Period `json:"period"`
	Notes           string            `json:"notes,omitempty"`
	IsCompleted     bool              `json:"isCompleted"`
	RequiredCount   int               `json:"requiredCount"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type RecordInput struct {
	EmployeeID      string
	ConductedByID   string
	SupervisionDate time.Time
	// Period defaults to the month of SupervisionDate when zero.
	Period      compliance.Period
	Notes       string
	IsCompleted *bool
}

type RecordFilter struct {
	Employees     scope.EmployeeFilter
	ConductedByID string
	From          compliance.Period
	To            compliance.Period
}

// RequirementVersion sets how many supervisions per month an employee needs
// from EffectiveFrom until the next version.
type RequirementVersion struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employeeId"`
	EffectiveFrom time.Time `json:"effectiveFrom"`
	RequiredCount int       `json:"requiredCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ExceptionType string

const (
	ExceptionNotRequired ExceptionType = "not_required"
	ExceptionAnnualLeave ExceptionType = "annual_leave"
	ExceptionSickLeave   ExceptionType = "sick_leave"
)

func (t ExceptionType) Valid() bool {
	switch t {
	case ExceptionNotRequired, ExceptionAnnualLeave, ExceptionSickLeave:
		return true
	}
	return false
}

type Exception struct {
	ID            string            `json:"id"`
	EmployeeID    string            `json:"employeeId"`
	EmployeeName  string            `json:"employeeName,omitempty"`
	Period        compliance.Period `json:"period"`
	ExceptionType ExceptionType     `json:"exceptionType"`
	Notes         string            `json:"notes,omitempty"`
	CreatedBy     *string           `json:"createdBy"`
	CreatedAt     time.Time         `json:"createdAt"`
}

type CreateExceptionInput struct {
	EmployeeID    string
	Period        string
	ExceptionType string
	Notes         string
}

// ExceptionFilter narrows an exception listing. Zero fields add no
// predicate; a non-nil empty EmployeeIDs matches nothing.
type ExceptionFilter struct {
	EmployeeID  string
	EmployeeIDs []string
	FromPeriod  compliance.Period
	ToPeriod    compliance.Period
}

type ExceptionQuery struct {
	EmployeeID string
	FromPeriod string
	ToPeriod   string
}

type StatusRow struct {
	EmployeeID          string                       `json:"employeeId"`
	EmployeeName        string                       `json:"employeeName"`
	Email               string                       `json:"email"`
	Role                string                       `json:"role"`
	Department          string                       `json:"department"`
	ReportsTo           *string                      `json:"reportsTo"`
	FrequencyMonths     int                          `json:"supervisionFrequency"`
	LastSupervisionDate *time.Time                   `json:"lastSupervisionDate"`
	Status              compliance.SupervisionStatus `json:"status"`
	DaysSinceLast       *int                         `json:"daysSinceLastSupervision"`
	DaysUntilDue        *int                         `json:"daysUntilDue"`
	ExceptionType       *ExceptionType               `json:"exceptionType"`
}

type Summary struct {
	Total   int `json:"totalEmployees"`
	Never   int `json:"neverSupervised"`
	OK      int `json:"ok"`
	DueSoon int `json:"dueSoon"`
	Overdue int `json:"overdue"`
	Exempt  int `json:"exempt"`
}

type MatrixCell struct {
	Period        compliance.Period      `json:"period"`
	State         compliance.PeriodState `json:"state"`
	Completed     int                    `json:"completed"`
	Required      int                    `json:"required"`
	ExceptionType *ExceptionType         `json:"exceptionType"`
}

type MatrixRow struct {
	EmployeeID   string       `json:"employeeId"`
	EmployeeName string       `json:"employeeName"`
	StartDate    time.Time    `json:"startDate"`
	Cells        []MatrixCell `json:"cells"`
}

type Matrix struct {
	Periods []compliance.Period `json:"periods"`
	Rows    []MatrixRow         `json:"rows"`
}

type MatrixQuery struct {
	EmployeeID string
	From       compliance.Period
	To         compliance.Period
}
