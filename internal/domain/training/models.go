package training

import (
	"time"

	"github.com/shopspring/decimal"

	"employeehub/internal/domain/compliance"
)

type Course struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	ValidityMonths    *int      `json:"validityMonths"`
	ExpiryWarningDays *int      `json:"expiryWarningDays"`
	NotifyEmployee    bool      `json:"notifyEmployee"`
	NotifyAdmin       bool      `json:"notifyAdmin"`
	MandatoryForRoles []string  `json:"mandatoryForRoles"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// AppliesTo reports whether the course is required for an employee role. An
// empty role list means everyone.
func (c Course) AppliesTo(role string) bool {
	if len(c.MandatoryForRoles) == 0 {
		return true
	}
	for _, r := range c.MandatoryForRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Record struct {
	ID             string     `json:"id"`
	EmployeeID     string     `json:"employeeId"`
	CourseID       string     `json:"courseId"`
	CourseName     string     `json:"courseName,omitempty"`
	CompletionDate time.Time  `json:"completionDate"`
	ExpiryDate     *time.Time `json:"expiryDate"`
	CertificateURL string     `json:"certificateUrl,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// StatusRow is one employee x course cell of the training matrix.
type StatusRow struct {
	EmployeeID       string                    `json:"employeeId"`
	EmployeeName     string                    `json:"employeeName"`
	EmployeeEmail    string                    `json:"employeeEmail,omitempty"`
	Role             string                    `json:"role"`
	Department       string                    `json:"department"`
	CourseID         string                    `json:"courseId"`
	CourseName       string                    `json:"courseName"`
	Category         string                    `json:"category"`
	TrainingRecordID *string                   `json:"trainingRecordId"`
	CompletionDate   *time.Time                `json:"completionDate"`
	ExpiryDate       *time.Time                `json:"expiryDate"`
	Status           compliance.TrainingStatus `json:"status"`
	DaysUntilExpiry  *int                      `json:"daysUntilExpiry"`
	NoExpiry         bool                      `json:"noExpiry"`
	NotifyEmployee   bool                      `json:"-"`
	NotifyAdmin      bool                      `json:"-"`
}

type Summary struct {
	Total          int             `json:"total"`
	Valid          int             `json:"valid"`
	ExpiringSoon   int             `json:"expiringSoon"`
	Expired        int             `json:"expired"`
	NotCompleted   int             `json:"notCompleted"`
	Completed      int             `json:"completed"`
	ComplianceRate decimal.Decimal `json:"complianceRate"`
}

type StatusQuery struct {
	EmployeeID string
	CourseID   string
	Statuses   []compliance.TrainingStatus
}

func (q StatusQuery) matches(row StatusRow) bool {
	if q.CourseID != "" && row.CourseID != q.CourseID {
		return false
	}
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if s == row.Status {
			return true
		}
	}
	return false
}

type CourseInput struct {
	Name              string
	Category          string
	ValidityMonths    *int
	ExpiryWarningDays *int
	NotifyEmployee    bool
	NotifyAdmin       bool
	MandatoryForRoles []string
}

type RecordInput struct {
	EmployeeID     string
	CourseID       string
	CompletionDate time.Time
	CertificateURL string
	Notes          string
}
