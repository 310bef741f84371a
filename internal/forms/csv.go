package forms

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// writeCSV renders submissions as CSV. The first columns identify the
// response; the remaining columns follow the form's field order. Answers for
// fields that no longer exist are dropped.
func writeCSV(w io.Writer, form *Form, subs []*Submission) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(form.Fields)+2)
	header = append(header, "Response ID", "Submitted At")
	for _, f := range form.Fields {
		header = append(header, f.Label)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, sub := range subs {
		values := make(map[string]string, len(sub.Answers))
		for _, a := range sub.Answers {
			values[a.FieldID.String()] = a.Value
		}

		row := make([]string, 0, len(header))
		row = append(row, sub.ID.String(), sub.SubmittedAt.UTC().Format(time.RFC3339))
		for _, f := range form.Fields {
			row = append(row, values[f.ID.String()])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
