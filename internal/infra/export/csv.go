// Package export renders a PerformanceReport. Every format is produced from
// the same report value; nothing is recomputed here.
package export

import (
	"encoding/csv"
	"io"

	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/pkg/errs"
)

// WriteCSV writes a header row and one data row holding the flattened
// current-month stats.
func WriteCSV(w io.Writer, r report.PerformanceReport) error {
	fields := r.CurrentMonth.Fields()
	header := make([]string, len(fields))
	row := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Key
		row[i] = f.Value.String()
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errs.Wrap(err, "write csv header")
	}
	if err := cw.Write(row); err != nil {
		return errs.Wrap(err, "write csv row")
	}
	cw.Flush()
	return errs.Wrap(cw.Error(), "flush csv")
}

// ReadCSV parses the output of WriteCSV back into stats.
func ReadCSV(r io.Reader) (report.HospitalStats, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return report.HospitalStats{}, errs.Mark(errs.Wrap(err, "read report csv"), errs.ErrValidation)
	}
	if len(records) != 2 {
		return report.HospitalStats{}, errs.Markf(errs.ErrValidation, "report csv must have a header and exactly one data row, got %d rows", len(records))
	}
	header, row := records[0], records[1]
	if len(header) != len(row) {
		return report.HospitalStats{}, errs.Markf(errs.ErrValidation, "report csv row has %d columns, header has %d", len(row), len(header))
	}
	values := make(map[string]string, len(header))
	for i, key := range header {
		values[key] = row[i]
	}
	return report.StatsFromFields(values)
}
