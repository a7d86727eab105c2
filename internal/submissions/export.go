package submissions

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
)

const exportTimeLayout = "2006-01-02T15:04:05.000Z"

// Export writes the non-test submissions of a form as CSV, most recent
// first. The header row is unquoted and holds the field labels; every
// data cell is quoted. Lines are separated by "\n" with no trailing newline.
func (s *Service) Export(ctx context.Context, formID string, w io.Writer) (err error) {
	ctx, span := startSpan(ctx, "export", formID)
	defer func() {
		s.metrics.RecordExport(err)
		endSpan(span, err)
	}()

	form, err := s.forms.Get(ctx, formID)
	if err != nil {
		return err
	}
	h, err := s.namespaces.Resolve(ctx, form.ID, form.Version, form.Schema.Fields)
	if err != nil {
		return fmt.Errorf("failed to resolve namespace: %w", err)
	}

	fields := schema.DataFields(form.Schema.Fields)
	bw := bufio.NewWriter(w)

	header := make([]string, 0, len(fields)+3)
	header = append(header, "ID")
	for _, f := range fields {
		header = append(header, f.Label)
	}
	header = append(header, "Statut", "Date de soumission")
	if _, err := bw.WriteString(strings.Join(header, ",")); err != nil {
		return err
	}

	rows := 0
	err = h.Scan(ctx, func(rec *namespace.Record) error {
		if rec.IsTest {
			return nil
		}
		rows++
		return writeRow(bw, rec, fields)
	})
	if err != nil {
		return fmt.Errorf("failed to export submissions: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return err
	}

	s.log.Info().Str("form_id", formID).Int("rows", rows).Msg("Submissions exported")
	return nil
}

// ExportCSV returns the export of a form as bytes
func (s *Service) ExportCSV(ctx context.Context, formID string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Export(ctx, formID, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(w *bufio.Writer, rec *namespace.Record, fields []schema.Field) error {
	cells := make([]string, 0, len(fields)+3)
	cells = append(cells, rec.ID)
	for _, f := range fields {
		cells = append(cells, cellText(rec.Data[f.Name]))
	}
	submittedAt := ""
	if !rec.Metadata.SubmittedAt.IsZero() {
		submittedAt = rec.Metadata.SubmittedAt.UTC().Format(exportTimeLayout)
	}
	cells = append(cells, string(rec.Status), submittedAt)

	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	for i, cell := range cells {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(cell)); err != nil {
			return err
		}
	}
	return nil
}

func quote(cell string) string {
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// cellText renders a stored value: arrays as their elements joined by ","
// and objects as JSON
func cellText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = cellText(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return fmt.Sprint(value)
}
