package mysql

import (
	"context"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

const payoutColumns = `BIN_TO_UUID(pr.payout_request_uuid) AS payout_request_uuid,
	BIN_TO_UUID(pr.user_uuid) AS user_uuid,
	BIN_TO_UUID(pr.trading_account_uuid) AS trading_account_uuid,
	pr.payout_method, pr.iban, pr.wallet_address, pr.wallet_protocol,
	pr.balance_before_request, pr.total_profit, pr.payout_amount,
	pr.profit_split, pr.status, pr.created_at,
	u.email, ta.ctrader_trading_account`

const payoutFrom = ` FROM payout_request pr
	JOIN user u ON pr.user_uuid = u.user_uuid
	LEFT JOIN trading_account ta ON pr.trading_account_uuid = ta.trading_account_uuid`

// payoutListLimit caps the requests listed for review.
const payoutListLimit = 50

func (s *Store) GetPayoutsByStatus(ctx context.Context, status store.PayoutStatus) ([]store.Payout, error) {
	query := "SELECT " + payoutColumns + payoutFrom
	var args []any
	if status != "" {
		query += " WHERE pr.status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY pr.created_at DESC LIMIT ?"
	args = append(args, payoutListLimit)

	var payouts []store.Payout
	if err := s.db.SelectContext(ctx, &payouts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list payouts (status %q): %w", status, err)
	}
	return payouts, nil
}

func (s *Store) GetPayoutsByUser(ctx context.Context, userID uuid.UUID) ([]store.Payout, error) {
	var payouts []store.Payout
	err := s.db.SelectContext(ctx, &payouts,
		"SELECT "+payoutColumns+payoutFrom+`
		WHERE pr.user_uuid = UUID_TO_BIN(?)
		ORDER BY pr.created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts of user %s: %w", userID, err)
	}
	return payouts, nil
}

func (s *Store) GetPayoutByUUID(ctx context.Context, id uuid.UUID) (*store.Payout, error) {
	var p store.Payout
	err := s.get(ctx, &p, "SELECT "+payoutColumns+payoutFrom+" WHERE pr.payout_request_uuid = UUID_TO_BIN(?)", id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payout %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) UpdatePayoutStatus(ctx context.Context, tx store.DBTransaction, id uuid.UUID, status store.PayoutStatus) error {
	query := `UPDATE payout_request SET status = ?, updated_at = NOW() WHERE payout_request_uuid = UUID_TO_BIN(?)`
	if err := s.execOne(ctx, tx, query, string(status), id.String()); err != nil {
		return fmt.Errorf("failed to set payout %s to %s: %w", id, status, err)
	}
	return nil
}
