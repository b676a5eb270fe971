package export

import (
	"io"

	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/pkg/errs"

	"github.com/go-pdf/fpdf"
)

// pdfOptions exists for tests that need to search the content stream.
type pdfOptions struct {
	compress bool
}

type PDFOption func(*pdfOptions)

func WithoutCompression() PDFOption {
	return func(o *pdfOptions) { o.compress = false }
}

// WritePDF renders the report with Title Case labels.
func WritePDF(w io.Writer, r report.PerformanceReport, opts ...PDFOption) error {
	o := pdfOptions{compress: true}
	for _, opt := range opts {
		opt(&o)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(o.compress)
	pdf.SetTitle("Performance Report "+r.HospitalID, false)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Performance Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Hospital: "+r.HospitalID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated At: "+r.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(80, 8, "Metric", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, "Current Month", "1", 0, "R", false, 0, "")
	pdf.CellFormat(50, 8, "Year To Date", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	year := r.YearToDate.Fields()
	for i, field := range r.CurrentMonth.Fields() {
		pdf.CellFormat(80, 7, field.Label(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, field.Value.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, year[i].Value.String(), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(80, 8, "Improvement", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, "Delta", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, field := range r.Improvements.Fields() {
		pdf.CellFormat(80, 7, field.Label(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, field.Value.String(), "1", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return errs.Wrap(err, "write pdf")
	}
	return nil
}
