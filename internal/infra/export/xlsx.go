package export

import (
	"io"

	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/pkg/errs"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Performance"

// WriteXLSX lays the report out as a metric table with one column per window,
// followed by the improvement deltas.
func WriteXLSX(w io.Writer, r report.PerformanceReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return errs.Wrap(err, "rename sheet")
	}

	rows := [][]any{
		{"Hospital", r.HospitalID},
		{"Generated At", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{},
		{"Metric", "Current Month", "Year To Date"},
	}
	month := r.CurrentMonth.Fields()
	year := r.YearToDate.Fields()
	for i, field := range month {
		m, _ := field.Value.Float64()
		y, _ := year[i].Value.Float64()
		rows = append(rows, []any{field.Label(), m, y})
	}
	rows = append(rows, []any{}, []any{"Improvement", "Delta"})
	for _, field := range r.Improvements.Fields() {
		v, _ := field.Value.Float64()
		rows = append(rows, []any{field.Label(), v})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errs.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return errs.Wrapf(err, "write row %d", i+1)
		}
	}
	if err := f.SetColWidth(xlsxSheet, "A", "A", 28); err != nil {
		return errs.Wrap(err, "set column width")
	}

	return errs.Wrap(f.Write(w), "write xlsx")
}
