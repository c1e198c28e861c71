package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"supportconsole/internal/store"
)

func (s *Store) GetPromoByCode(ctx context.Context, code string) (*store.Promo, error) {
	var (
		p              store.Promo
		unlimited, glb sql.NullBool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT BIN_TO_UUID(promo_uuid), code, percent_promo, is_unlimited, `+"`global`"+`, phase, expires_at
		FROM promo WHERE code = ?`, code).
		Scan(&p.ID, &p.Code, &p.PercentPromo, &unlimited, &glb, &p.Phase, &p.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get promo %q: %w", code, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo %q: %w", code, err)
	}
	p.Unlimited, p.Global = unlimited.Bool, glb.Bool
	return &p, nil
}

// CreatePromo inserts a valid promo code.
func (s *Store) CreatePromo(ctx context.Context, tx store.DBTransaction, p *store.Promo) error {
	query := `
		INSERT INTO promo (
			promo_uuid, code, percent_promo, is_valid, is_unlimited, ` + "`global`" + `,
			phase, expires_at, stripe_ID, user_uuid, challenge_uuid,
			descriptionFr, descriptionEn, descriptionEs, descriptionDe, descriptionIt
		) VALUES (
			UUID_TO_BIN(?), ?, ?, 1, ?, ?,
			?, ?, ?, UUID_TO_BIN(?), UUID_TO_BIN(?),
			?, ?, ?, ?, ?
		)`
	args := []any{
		p.ID.String(), p.Code, p.PercentPromo, p.Unlimited, p.Global,
		int(p.Phase), p.ExpiresAt, p.StripeID, nullUUIDArg(p.UserID), nullUUIDArg(p.ChallengeID),
	}
	for _, lang := range store.PromoLanguages {
		args = append(args, nullString(p.Descriptions[lang]))
	}
	if _, err := s.getExecutor(tx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create promo %q: %w", p.Code, err)
	}
	return nil
}
