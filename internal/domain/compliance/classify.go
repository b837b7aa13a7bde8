package compliance

import "time"

type Status string

const (
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusDueSoon   Status = "due_soon"
	StatusNotYetDue Status = "not_yet_due"
)

// DueSoonDays is the fixed window used for appraisal milestones.
const DueSoonDays = 30

type Classification struct {
	Status       Status `json:"status"`
	DaysUntilDue *int   `json:"daysUntilDue"`
}

// Classify is the shared due-date rule. A completion date wins outright and
// DaysUntilDue is nil once completed.
func Classify(dueDate time.Time, completedDate *time.Time, today time.Time) Classification {
	if completedDate != nil {
		return Classification{Status: StatusCompleted}
	}
	days := DaysBetween(today, dueDate)
	status := StatusNotYetDue
	switch {
	case days < 0:
		status = StatusOverdue
	case days <= DueSoonDays:
		status = StatusDueSoon
	}
	return Classification{Status: status, DaysUntilDue: &days}
}

type TrainingStatus string

const (
	TrainingValid        TrainingStatus = "Valid"
	TrainingExpiringSoon TrainingStatus = "Expiring Soon"
	TrainingExpired      TrainingStatus = "Expired"
	TrainingNotCompleted TrainingStatus = "Not Completed"
	TrainingCompleted    TrainingStatus = "Completed"
)

type TrainingClassification struct {
	Status          TrainingStatus `json:"status"`
	DaysUntilExpiry *int           `json:"daysUntilExpiry"`
}

// NoExpiry reports whether the record is complete and never expires.
func (c TrainingClassification) NoExpiry() bool {
	return c.Status == TrainingCompleted
}

// NeedsNotification is true for the states the dispatcher acts on.
func (s TrainingStatus) NeedsNotification() bool {
	return s == TrainingExpiringSoon || s == TrainingExpired
}

func ClassifyTraining(completion, expiry *time.Time, today time.Time, warningDays int) TrainingClassification {
	if completion == nil {
		return TrainingClassification{Status: TrainingNotCompleted}
	}
	if expiry == nil {
		return TrainingClassification{Status: TrainingCompleted}
	}
	days := DaysBetween(today, *expiry)
	status := TrainingValid
	switch {
	case days < 0:
		status = TrainingExpired
	case days <= warningDays:
		status = TrainingExpiringSoon
	}
	return TrainingClassification{Status: status, DaysUntilExpiry: &days}
}

type SupervisionStatus string

const (
	SupervisionNever   SupervisionStatus = "Never"
	SupervisionOK      SupervisionStatus = "OK"
	SupervisionDueSoon SupervisionStatus = "Due Soon"
	SupervisionOverdue SupervisionStatus = "Overdue"
	SupervisionExempt  SupervisionStatus = "Exempt"
)

// SupervisionRule converts a frequency in months into a day threshold of
// FrequencyMonths*30.
type SupervisionRule struct {
	FrequencyMonths int
	DueSoonDays     int
}

func (r SupervisionRule) ThresholdDays() int {
	months := r.FrequencyMonths
	if months < 1 {
		months = 1
	}
	return months * 30
}

type SupervisionClassification struct {
	Status        SupervisionStatus `json:"status"`
	DaysSinceLast *int              `json:"daysSinceLastSupervision"`
	DaysUntilDue  *int              `json:"daysUntilDue"`
}

// ClassifySupervision derives the per-employee status from the most recent
// supervision. exempt means an exception covers the current period; it is
// checked before anything is flagged as due soon or overdue.
func ClassifySupervision(last *time.Time, rule SupervisionRule, today time.Time, exempt bool) SupervisionClassification {
	if last == nil {
		return SupervisionClassification{Status: SupervisionNever}
	}
	since := DaysBetween(*last, today)
	until := rule.ThresholdDays() - since
	out := SupervisionClassification{DaysSinceLast: &since, DaysUntilDue: &until}
	switch {
	case until >= 0 && until > rule.DueSoonDays:
		out.Status = SupervisionOK
	case exempt:
		out.Status = SupervisionExempt
	case until < 0:
		out.Status = SupervisionOverdue
	default:
		out.Status = SupervisionDueSoon
	}
	return out
}

type PeriodState string

const (
	PeriodException     PeriodState = "exception"
	PeriodNotApplicable PeriodState = "not_applicable"
	PeriodFuture        PeriodState = "future"
	PeriodComplete      PeriodState = "complete"
	PeriodPartial       PeriodState = "partial"
	PeriodMissing       PeriodState = "missing"
)

type PeriodInput struct {
	Period    Period
	Current   Period
	StartDate time.Time
	Completed int
	Required  int
	Exempt    bool
}

// ClassifyPeriod grades one month of supervision for one employee.
func ClassifyPeriod(in PeriodInput) PeriodState {
	required := in.Required
	if required < 1 {
		required = 1
	}
	switch {
	case in.Exempt:
		return PeriodException
	case !in.StartDate.IsZero() && in.Period.Before(PeriodOf(in.StartDate)):
		return PeriodNotApplicable
	case in.Period.After(in.Current):
		return PeriodFuture
	case in.Completed >= required:
		return PeriodComplete
	case in.Completed > 0:
		return PeriodPartial
	default:
		return PeriodMissing
	}
}
