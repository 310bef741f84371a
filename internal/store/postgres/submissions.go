package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sa1dev/regeester/internal/forms"
)

func (s *FormStore) CreateSubmission(ctx context.Context, sub *forms.Submission) error {
	return withTx(ctx, s.conn, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submissions (id, form_id, submitted_at, submitter_ip, user_agent)
			 VALUES ($1, $2, $3, $4, $5)`,
			sub.ID, sub.FormID, sub.SubmittedAt, sub.SubmitterIP, sub.UserAgent); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		for _, a := range sub.Answers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO answers (id, submission_id, field_id, value) VALUES ($1, $2, $3, $4)`,
				a.ID, sub.ID, a.FieldID, a.Value); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}
		return nil
	})
}

func (s *FormStore) SubmissionsByForm(ctx context.Context, formID uuid.UUID) ([]*forms.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, form_id, submitted_at, submitter_ip, user_agent FROM submissions
		 WHERE form_id = $1 ORDER BY submitted_at`,
		formID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var (
		out  []*forms.Submission
		byID = map[uuid.UUID]*forms.Submission{}
	)
	for rows.Next() {
		sub := &forms.Submission{}
		if err := rows.Scan(&sub.ID, &sub.FormID, &sub.SubmittedAt, &sub.SubmitterIP, &sub.UserAgent); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
		byID[sub.ID] = sub
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	answerRows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.submission_id, a.field_id, a.value
		 FROM answers a
		 JOIN submissions s ON s.id = a.submission_id
		 WHERE s.form_id = $1`,
		formID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var a forms.Answer
		if err := answerRows.Scan(&a.ID, &a.SubmissionID, &a.FieldID, &a.Value); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if sub, ok := byID[a.SubmissionID]; ok {
			sub.Answers = append(sub.Answers, a)
		}
	}
	if err := answerRows.Err(); err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	return out, nil
}

func (s *FormStore) CountSubmissions(ctx context.Context, formID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM submissions WHERE form_id = $1`, formID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}
