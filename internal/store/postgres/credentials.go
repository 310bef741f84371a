package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sa1dev/regeester/pkg/passkey"
)

const credentialColumns = `id, user_id, public_key, attestation_type, transports, aaguid, sign_count, backup_eligible, backup_state, created_at, last_used_at`

func (s *PasskeyStore) CredentialsByUser(ctx context.Context, userID uuid.UUID) ([]*passkey.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var creds []*passkey.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	return creds, nil
}

func (s *PasskeyStore) FindCredentialByID(ctx context.Context, credentialID []byte) (*passkey.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, credentialID)
	if err != nil {
		return nil, fmt.Errorf("query credential: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query credential: %w", err)
		}
		return nil, passkey.ErrCredentialNotFound
	}
	return scanCredential(rows)
}

func (s *PasskeyStore) CreateCredential(ctx context.Context, cred *passkey.Credential) error {
	transports, err := json.Marshal(cred.Transports)
	if err != nil {
		return fmt.Errorf("encode transports: %w", err)
	}

	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, user_id, public_key, attestation_type, transports, aaguid, sign_count, backup_eligible, backup_state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		cred.ID, cred.UserID, cred.PublicKey, cred.AttestationType, transports,
		cred.AAGUID, int64(cred.SignCount), cred.BackupEligible, cred.BackupState, createdAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return requireRow(res, passkey.ErrDuplicateCredential)
}

func (s *PasskeyStore) UpdateCredentialCounter(ctx context.Context, credentialID []byte, signCount uint32) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET sign_count = $2, last_used_at = now() WHERE id = $1`,
		credentialID, int64(signCount))
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}
	return requireRow(res, passkey.ErrCredentialNotFound)
}

func scanCredential(rows *sql.Rows) (*passkey.Credential, error) {
	var (
		cred       passkey.Credential
		transports []byte
		signCount  int64
		lastUsed   sql.NullTime
	)
	err := rows.Scan(&cred.ID, &cred.UserID, &cred.PublicKey, &cred.AttestationType,
		&transports, &cred.AAGUID, &signCount, &cred.BackupEligible, &cred.BackupState,
		&cred.CreatedAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passkey.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	if len(transports) > 0 {
		if err := json.Unmarshal(transports, &cred.Transports); err != nil {
			return nil, fmt.Errorf("decode transports: %w", err)
		}
	}
	cred.SignCount = uint32(signCount)
	if lastUsed.Valid {
		cred.LastUsedAt = lastUsed.Time
	}
	return &cred, nil
}
