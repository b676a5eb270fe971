package export

import (
	"bytes"
	"context"
	"io"
	"path"

	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/infra/blob"
	"bloodbank-ops/internal/pkg/errs"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var Formats = []Format{FormatCSV, FormatXLSX, FormatPDF}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Render writes r in the given format.
func Render(w io.Writer, f Format, r report.PerformanceReport) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	case FormatPDF:
		return WritePDF(w, r)
	default:
		return errs.Markf(errs.ErrValidation, "unknown export format %q", f)
	}
}

// LatestKey is where the most recent report of a hospital is kept.
func LatestKey(hospitalID string, f Format) string {
	return path.Join("reports", hospitalID, "latest."+string(f))
}

// Publisher stores the latest report per hospital in every format,
// overwriting the previous copy.
type Publisher struct {
	store blob.Store
}

func NewPublisher(store blob.Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Publish(ctx context.Context, r report.PerformanceReport) ([]blob.Info, error) {
	out := make([]blob.Info, 0, len(Formats))
	for _, f := range Formats {
		var buf bytes.Buffer
		if err := Render(&buf, f, r); err != nil {
			return out, errs.Wrapf(err, "render %s report for %s", f, r.HospitalID)
		}
		info, err := p.store.Put(ctx, LatestKey(r.HospitalID, f), &buf, f.ContentType())
		if err != nil {
			return out, errs.Wrapf(err, "store %s report for %s", f, r.HospitalID)
		}
		out = append(out, info)
	}
	return out, nil
}
