package reports

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"employeehub/internal/domain/compliance"
)

const pdfDate = "02/01/2006"

// WritePDF renders the report as an A4 document.
func WritePDF(w io.Writer, rep Compliance) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Compliance report", true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Compliance report")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Generated "+rep.GeneratedAt.Format("02/01/2006 15:04"))
	pdf.Ln(10)

	heading(pdf, "Training")
	t := rep.Training
	line(pdf, fmt.Sprintf("Compliance rate: %s%%", t.ComplianceRate.StringFixed(1)))
	line(pdf, fmt.Sprintf("Valid %d  |  Expiring soon %d  |  Expired %d  |  Not completed %d  |  No expiry %d  |  Total %d",
		t.Valid, t.ExpiringSoon, t.Expired, t.NotCompleted, t.Completed, t.Total))
	pdf.Ln(2)

	heading(pdf, "Supervision")
	s := rep.Supervision
	line(pdf, fmt.Sprintf("OK %d  |  Due soon %d  |  Overdue %d  |  Never %d  |  Exempt %d  |  Employees %d",
		s.OK, s.DueSoon, s.Overdue, s.Never, s.Exempt, s.Total))
	pdf.Ln(2)

	heading(pdf, "Appraisals")
	a := rep.Appraisals
	line(pdf, fmt.Sprintf("Pending %d  |  Overdue %d  |  Due soon %d  |  Employees with overdue reviews %d  |  On track %s%%",
		a.Pending, a.Overdue, a.DueSoon, a.EmployeesWithOverdue, a.OnTrackRate.StringFixed(1)))
	pdf.Ln(4)

	heading(pdf, "Training needing attention")
	widths := []float64{55, 65, 35, 35}
	header(pdf, widths, "Employee", "Course", "Status", "Expiry")
	for _, row := range rep.TrainingRows {
		if !row.Status.NeedsNotification() && row.Status != compliance.TrainingNotCompleted {
			continue
		}
		expiry := "-"
		if row.ExpiryDate != nil {
			expiry = row.ExpiryDate.Format(pdfDate)
		}
		cells(pdf, widths, tr(row.EmployeeName), tr(row.CourseName), string(row.Status), expiry)
	}
	pdf.Ln(4)

	heading(pdf, "Supervision status")
	widths = []float64{70, 40, 40, 40}
	header(pdf, widths, "Employee", "Last supervision", "Days since", "Status")
	for _, row := range rep.SupervisionRows {
		last, since := "Never", "-"
		if row.LastSupervisionDate != nil {
			last = row.LastSupervisionDate.Format(pdfDate)
		}
		if row.DaysSinceLast != nil {
			since = strconv.Itoa(*row.DaysSinceLast)
		}
		cells(pdf, widths, tr(row.EmployeeName), last, since, string(row.Status))
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func heading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, text)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
}

func line(pdf *gofpdf.Fpdf, text string) {
	pdf.Cell(0, 6, text)
	pdf.Ln(6)
}

func header(pdf *gofpdf.Fpdf, widths []float64, titles ...string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, title := range titles {
		pdf.CellFormat(widths[i], 7, title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

func cells(pdf *gofpdf.Fpdf, widths []float64, values ...string) {
	for i, v := range values {
		pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}
