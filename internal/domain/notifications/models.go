package notifications

import (
	"time"

	"employeehub/internal/domain/compliance"
)

// PendingItem is a training record that warrants a notification.
type PendingItem struct {
	TrainingRecordID string                    `json:"trainingRecordId"`
	EmployeeID       string                    `json:"employeeId"`
	EmployeeName     string                    `json:"employeeName"`
	EmployeeEmail    string                    `json:"employeeEmail"`
	CourseID         string                    `json:"courseId"`
	CourseName       string                    `json:"courseName"`
	Status           compliance.TrainingStatus `json:"status"`
	ExpiryDate       *time.Time                `json:"expiryDate"`
	DaysUntilExpiry  *int                      `json:"daysUntilExpiry"`
	NotifyEmployee   bool                      `json:"notifyEmployee"`
	NotifyAdmin      bool                      `json:"notifyAdmin"`
}

// NotificationType maps the training status to the log's type.
func (p PendingItem) NotificationType() string {
	if p.Status == compliance.TrainingExpired {
		return TypeExpired
	}
	return TypeExpiryWarning
}

type LogEntry struct {
	ID               string    `json:"id"`
	TrainingRecordID string    `json:"trainingRecordId"`
	EmployeeID       string    `json:"employeeId"`
	EmployeeName     string    `json:"employeeName,omitempty"`
	CourseID         string    `json:"courseId"`
	CourseName       string    `json:"courseName,omitempty"`
	RecipientEmail   string    `json:"recipientEmail"`
	RecipientType    string    `json:"recipientType"`
	NotificationType string    `json:"notificationType"`
	SentAt           time.Time `json:"sentAt"`
	DaysUntilExpiry  *int      `json:"daysUntilExpiry"`
}

type LogFilter struct {
	EmployeeID string
	Type       string
	Limit      int
	Offset     int
}

// Result summarises one dispatch run. Errors holds per-recipient failures;
// they never abort the run.
type Result struct {
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}
