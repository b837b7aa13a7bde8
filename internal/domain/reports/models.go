package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"employeehub/internal/domain/supervision"
	"employeehub/internal/domain/training"
)

type AppraisalSummary struct {
	Pending              int             `json:"pending"`
	Overdue              int             `json:"overdue"`
	DueSoon              int             `json:"dueSoon"`
	NotYetDue            int             `json:"notYetDue"`
	EmployeesWithOverdue int             `json:"employeesWithOverdue"`
	OnTrackRate          decimal.Decimal `json:"onTrackRate"`
}

// Compliance is the scoped organisation snapshot behind both the JSON and
// PDF report.
type Compliance struct {
	GeneratedAt      time.Time               `json:"generatedAt"`
	Training         training.Summary        `json:"training"`
	Supervision      supervision.Summary     `json:"supervision"`
	Appraisals       AppraisalSummary        `json:"appraisals"`
	TrainingRows     []training.StatusRow    `json:"-"`
	SupervisionRows  []supervision.StatusRow `json:"-"`
	AttentionCourses []CourseAttention       `json:"attentionCourses"`
}

// CourseAttention counts the expired and not completed rows per course.
type CourseAttention struct {
	CourseID     string `json:"courseId"`
	CourseName   string `json:"courseName"`
	Expired      int    `json:"expired"`
	ExpiringSoon int    `json:"expiringSoon"`
	NotCompleted int    `json:"notCompleted"`
}
