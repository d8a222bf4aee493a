package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

type SocialAccountRepository interface {
	GetByUserAndPlatform(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error)
	SetToken(ctx context.Context, accountID int64, tokens models.TokenSet) error
	SetStatus(ctx context.Context, accountID int64, status string) error
}

type socialAccountRepository struct {
	db     *sql.DB
	cipher *utils.TokenCipher
}

func NewSocialAccountRepository(db *sql.DB, cipher *utils.TokenCipher) SocialAccountRepository {
	return &socialAccountRepository{db: db, cipher: cipher}
}

const socialAccountColumns = `id, user_id, platform, account_id, account_name, account_username,
	access_token, refresh_token, token_expires_at, account_status, created_at, updated_at`

func (r *socialAccountRepository) scan(row rowScanner) (*models.SocialAccount, error) {
	var (
		sa        models.SocialAccount
		platform  string
		username  sql.NullString
		access    string
		refresh   sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&sa.ID, &sa.UserID, &platform, &sa.AccountID, &sa.AccountName, &username,
		&access, &refresh, &expiresAt, &sa.AccountStatus, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if sa.Platform, err = models.ParsePlatform(platform); err != nil {
		return nil, err
	}
	sa.AccountUsername = username.String
	sa.TokenExpiresAt = expiresAt.Time

	if sa.AccessToken, err = r.cipher.Decrypt(access); err != nil {
		return nil, err
	}
	if sa.RefreshToken, err = r.cipher.Decrypt(refresh.String); err != nil {
		return nil, err
	}
	return &sa, nil
}

// GetByUserAndPlatform returns the most recently updated account of a user
// on one platform, or nil when none exists.
func (r *socialAccountRepository) GetByUserAndPlatform(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE user_id = $1 AND platform = $2
		ORDER BY updated_at DESC
		LIMIT 1`

	sa, err := r.scan(r.db.QueryRowContext(ctx, query, userID, platform.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

// ListExpiring returns active accounts whose access token expires before the
// given instant, already expired ones included.
func (r *socialAccountRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE account_status = $1
		AND (token_expires_at IS NULL OR token_expires_at < $2)`
	return r.list(ctx, query, models.AccountStatusActive, before)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := r.scan(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

// SetToken writes the whole token tuple in one statement. Concurrent
// refreshes of the same account are last-write-wins; each write is a
// complete, valid set.
func (r *socialAccountRepository) SetToken(ctx context.Context, accountID int64, tokens models.TokenSet) error {
	access, err := r.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.cipher.Encrypt(tokens.RefreshToken)
	if err != nil {
		return err
	}

	query := `
		UPDATE social_accounts
		SET access_token = $1,
			refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
			token_expires_at = $3,
			account_status = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query, access, refresh, tokens.ExpiresAt, models.AccountStatusActive, accountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; account may not exist", "account_id", accountID)
		return ErrNoRowsUpdated
	}
	return nil
}

func (r *socialAccountRepository) SetStatus(ctx context.Context, accountID int64, status string) error {
	query := `UPDATE social_accounts SET account_status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, status, accountID); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
