package audit

import (
	"context"
	"time"

	"github.com/vitalguard/careboard/internal/platform/export"
)

const exportPageSize = 500

var exportHeaders = []string{
	"Timestamp", "Actor", "Role", "Action", "Target", "Verification", "Fingerprint",
}

// ExportXLSX renders the whole trail, newest first, as a workbook.
func (t *Trail) ExportXLSX(ctx context.Context) ([]byte, error) {
	var rows [][]interface{}
	for offset := 0; ; offset += exportPageSize {
		items, total, err := t.repo.List(ctx, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, e := range items {
			rows = append(rows, []interface{}{
				e.Timestamp.UTC().Format(time.RFC3339), e.ActorName, e.ActorRole,
				e.Action, e.Target, string(e.VerificationStatus), e.Fingerprint,
			})
		}
		if offset+exportPageSize >= total || len(items) == 0 {
			break
		}
	}

	return export.XLSX(export.Table{
		Sheet:   "Audit Log",
		Headers: exportHeaders,
		Rows:    rows,
		Widths:  []float64{22, 20, 10, 34, 34, 12, 70},
	})
}
