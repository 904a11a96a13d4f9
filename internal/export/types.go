// Package export renders the studio capacity report and converts it to PDF.
package export

import (
	"errors"
	"time"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

// ReportData holds everything the capacity report shows.
type ReportData struct {
	GeneratedAt time.Time
	Members     []ReportMember
	Projects    []ReportProject
}

// ReportMember is one row of the team capacity table.
type ReportMember struct {
	Name          string
	Role          string
	Capacity      float64
	AssignedHours float64
	Projects      []string
}

// Utilization is AssignedHours over Capacity as a percentage, capped so a
// zero-capacity member renders as fully booked rather than dividing by zero.
func (m ReportMember) Utilization() int {
	if m.Capacity <= 0 {
		if m.AssignedHours > 0 {
			return 100
		}
		return 0
	}
	pct := m.AssignedHours / m.Capacity * 100
	if pct > 999 {
		pct = 999
	}
	return int(pct)
}

// ReportProject is one row of the active projects table.
type ReportProject struct {
	Name         string
	ClientName   string
	Status       string
	Type         string
	StartDate    string
	EndDate      string
	HoursPerWeek float64
	BudgetTotal  float64
	Currency     string
	PhaseCount   int
	TeamSize     int
}
