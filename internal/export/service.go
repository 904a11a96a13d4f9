package export

import (
	"fmt"
	"time"
)

// Service turns report data into a downloadable PDF.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// CapacityReportPDF renders the capacity report and prints it to PDF.
func (s *Service) CapacityReportPDF(data ReportData) (*Result, error) {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	title := "capacity-report-" + data.GeneratedAt.Format("2006-01-02")
	return printToPDF(html, title)
}
