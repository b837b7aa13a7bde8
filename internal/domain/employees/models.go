package employees

import "time"

type Employee struct {
	ID                         string    `json:"id"`
	FirstName                  string    `json:"firstName"`
	LastName                   string    `json:"lastName"`
	Email                      string    `json:"email"`
	Role                       string    `json:"role"`
	Department                 string    `json:"department"`
	StartDate                  time.Time `json:"startDate"`
	Active                     bool      `json:"active"`
	ReportsTo                  *string   `json:"reportsTo"`
	Status                     string    `json:"status"`
	SupervisionFrequencyMonths int       `json:"supervisionFrequencyMonths"`
}

func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}
