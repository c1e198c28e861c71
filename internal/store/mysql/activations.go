package mysql

import (
	"context"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

func (s *Store) GetPendingFundedActivation(ctx context.Context, tradingAccountID uuid.UUID) (*store.FundedActivation, error) {
	query := `
		SELECT BIN_TO_UUID(activation_uuid) AS activation_uuid,
			BIN_TO_UUID(user_uuid) AS user_uuid,
			BIN_TO_UUID(trading_account_uuid) AS trading_account_uuid,
			amount, currency, status, payment_link, created_at, expires_at
		FROM funded_activation
		WHERE trading_account_uuid = UUID_TO_BIN(?) AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	var fa store.FundedActivation
	if err := s.get(ctx, &fa, query, tradingAccountID.String()); err != nil {
		return nil, fmt.Errorf("failed to get pending funded activation of %s: %w", tradingAccountID, err)
	}
	return &fa, nil
}
