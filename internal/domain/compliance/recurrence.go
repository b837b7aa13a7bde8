package compliance

import "time"

// Date returns the calendar date of t as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the signed number of whole calendar days from from to to.
func DaysBetween(from, to time.Time) int {
	return int(Date(to).Sub(Date(from)) / (24 * time.Hour))
}

// AddMonths adds calendar months and clamps the day to the end of the target
// month, so Jan 31 + 1 month is the last day of February. time.AddDate would
// normalise into March instead.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	y += floorDiv(total, 12)
	month := time.Month(total-floorDiv(total, 12)*12 + 1)
	if last := daysIn(y, month); d > last {
		d = last
	}
	return time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

type MilestoneType string

type Milestone struct {
	Type         MilestoneType `json:"type"`
	Label        string        `json:"label"`
	OffsetMonths int           `json:"offsetMonths"`
}

// AppraisalSchedule is the fixed milestone policy, ordered by offset.
var AppraisalSchedule = []Milestone{
	{Type: "3_month", Label: "3 Month Review", OffsetMonths: 3},
	{Type: "6_month", Label: "6 Month Review", OffsetMonths: 6},
	{Type: "9_month", Label: "9 Month Review", OffsetMonths: 9},
	{Type: "12_month", Label: "12 Month Review", OffsetMonths: 12},
	{Type: "15_month", Label: "15 Month Review", OffsetMonths: 15},
	{Type: "18_month", Label: "18 Month Review", OffsetMonths: 18},
	{Type: "21_month", Label: "21 Month Review", OffsetMonths: 21},
	{Type: "24_month", Label: "24 Month Review", OffsetMonths: 24},
	{Type: "27_month", Label: "27 Month Review", OffsetMonths: 27},
	{Type: "30_month", Label: "30 Month Review", OffsetMonths: 30},
	{Type: "33_month", Label: "33 Month Review", OffsetMonths: 33},
	{Type: "36_month", Label: "36 Month Review", OffsetMonths: 36},
}

func LookupMilestone(t MilestoneType) (Milestone, bool) {
	for _, m := range AppraisalSchedule {
		if m.Type == t {
			return m, true
		}
	}
	return Milestone{}, false
}

func DueDatesForAppraisal(startDate time.Time) map[MilestoneType]time.Time {
	out := make(map[MilestoneType]time.Time, len(AppraisalSchedule))
	for _, m := range AppraisalSchedule {
		out[m.Type] = AddMonths(startDate, m.OffsetMonths)
	}
	return out
}

// TrainingExpiry returns nil when the course never expires.
func TrainingExpiry(completion time.Time, validityMonths *int) *time.Time {
	if validityMonths == nil {
		return nil
	}
	expiry := AddMonths(completion, *validityMonths)
	return &expiry
}
