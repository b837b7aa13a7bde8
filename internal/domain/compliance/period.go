package compliance

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"employeehub/internal/platform/sentinel"
)

var periodPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Period is a calendar month. Its canonical form is "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

func ParsePeriod(raw string) (Period, error) {
	if !periodPattern.MatchString(raw) {
		return Period{}, sentinel.NewValidation("period", "must be in YYYY-MM format")
	}
	year, _ := strconv.Atoi(raw[:4])
	month, _ := strconv.Atoi(raw[5:])
	if month < 1 || month > 12 {
		return Period{}, sentinel.NewValidation("period", "month must be between 01 and 12")
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

func MustParsePeriod(raw string) Period {
	p, err := ParsePeriod(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start is the first day of the month at midnight UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month at midnight UTC.
func (p Period) End() time.Time {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

func (p Period) AddMonths(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

func (p Period) index() int {
	return p.Year*12 + int(p.Month) - 1
}

// MonthsBetween counts whole months from p to q. It is negative when q is
// before p.
func MonthsBetween(p, q Period) int { return q.index() - p.index() }

func (p Period) Before(q Period) bool { return p.index() < q.index() }

func (p Period) After(q Period) bool { return p.index() > q.index() }

// PeriodRange lists every month from..to inclusive. It returns nil when to is
// before from.
func PeriodRange(from, to Period) []Period {
	if to.Before(from) {
		return nil
	}
	out := make([]Period, 0, to.index()-from.index()+1)
	for p := from; !p.After(to); p = p.AddMonths(1) {
		out = append(out, p)
	}
	return out
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Period) Value() (driver.Value, error) {
	return p.String(), nil
}

func (p *Period) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	case nil:
		*p = Period{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Period", src)
	}
}
