package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

const tradingAccountColumns = `BIN_TO_UUID(ta.trading_account_uuid) AS trading_account_uuid,
	BIN_TO_UUID(ta.order_uuid) AS order_uuid,
	BIN_TO_UUID(ta.challenge_uuid) AS challenge_uuid,
	ta.ctrader_trading_account, ta.ctrader_server,
	ta.challenge_phase, ta.challenge_phase_begin, ta.challenge_phase_end,
	ta.current_profit_target_percent, ta.success, ta.reason`

func (s *Store) GetTradingAccountByUUID(ctx context.Context, id uuid.UUID) (*store.TradingAccount, error) {
	var ta store.TradingAccount
	err := s.get(ctx, &ta,
		"SELECT "+tradingAccountColumns+" FROM trading_account ta WHERE ta.trading_account_uuid = UUID_TO_BIN(?)",
		id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get trading account %s: %w", id, err)
	}
	return &ta, nil
}

func (s *Store) GetTradingAccountByCtrader(ctx context.Context, ctraderID int64) (*store.TradingAccount, error) {
	var ta store.TradingAccount
	err := s.get(ctx, &ta,
		"SELECT "+tradingAccountColumns+" FROM trading_account ta WHERE ta.ctrader_trading_account = ?",
		ctraderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trading account with cTrader ID %d: %w", ctraderID, err)
	}
	return &ta, nil
}

// GetTradingAccountsByOrder lists the accounts of an order, lowest phase first.
func (s *Store) GetTradingAccountsByOrder(ctx context.Context, orderID uuid.UUID) ([]store.TradingAccount, error) {
	var accounts []store.TradingAccount
	err := s.db.SelectContext(ctx, &accounts,
		"SELECT "+tradingAccountColumns+` FROM trading_account ta
		WHERE ta.order_uuid = UUID_TO_BIN(?)
		ORDER BY ta.challenge_phase ASC`, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list trading accounts of order %s: %w", orderID, err)
	}
	return accounts, nil
}

// GetTradingAccountsByUser lists every account of a user, newest phase first.
func (s *Store) GetTradingAccountsByUser(ctx context.Context, userID uuid.UUID) ([]store.TradingAccount, error) {
	var accounts []store.TradingAccount
	err := s.db.SelectContext(ctx, &accounts,
		"SELECT "+tradingAccountColumns+` FROM trading_account ta
		JOIN orders o ON ta.order_uuid = o.order_uuid
		WHERE o.user_uuid = UUID_TO_BIN(?)
		ORDER BY ta.challenge_phase_begin DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list trading accounts of user %s: %w", userID, err)
	}
	return accounts, nil
}

func (s *Store) MarkAccountSucceeded(ctx context.Context, tx store.DBTransaction, id uuid.UUID, reason store.Reason) error {
	query := `UPDATE trading_account SET success = 1, reason = ? WHERE trading_account_uuid = UUID_TO_BIN(?)`
	if err := s.execOne(ctx, tx, query, string(reason), id.String()); err != nil {
		return fmt.Errorf("failed to mark trading account %s succeeded: %w", id, err)
	}
	return nil
}

func (s *Store) DeactivateAccount(ctx context.Context, tx store.DBTransaction, id uuid.UUID, reason store.Reason) error {
	query := `UPDATE trading_account SET success = 0, reason = ? WHERE trading_account_uuid = UUID_TO_BIN(?)`
	if err := s.execOne(ctx, tx, query, string(reason), id.String()); err != nil {
		return fmt.Errorf("failed to deactivate trading account %s: %w", id, err)
	}
	return nil
}

func (s *Store) ReactivateAccount(ctx context.Context, tx store.DBTransaction, id uuid.UUID, reason store.Reason, profitTarget *float64) error {
	var err error
	if profitTarget != nil {
		err = s.execOne(ctx, tx, `
			UPDATE trading_account
			SET success = NULL, reason = ?, current_profit_target_percent = ?
			WHERE trading_account_uuid = UUID_TO_BIN(?)`,
			string(reason), *profitTarget, id.String())
	} else {
		err = s.execOne(ctx, tx, `
			UPDATE trading_account
			SET success = NULL, reason = ?
			WHERE trading_account_uuid = UUID_TO_BIN(?)`,
			string(reason), id.String())
	}
	if err != nil {
		return fmt.Errorf("failed to reactivate trading account %s: %w", id, err)
	}
	return nil
}

func (s *Store) UpdateProfitTarget(ctx context.Context, tx store.DBTransaction, id uuid.UUID, target float64, reason store.Reason) error {
	query := `
		UPDATE trading_account
		SET current_profit_target_percent = ?, reason = ?
		WHERE trading_account_uuid = UUID_TO_BIN(?)`
	if err := s.execOne(ctx, tx, query, target, string(reason), id.String()); err != nil {
		return fmt.Errorf("failed to update profit target of %s: %w", id, err)
	}
	return nil
}

func (s *Store) UpdateCtraderAccount(ctx context.Context, tx store.DBTransaction, id uuid.UUID, ctraderID int64) error {
	query := `UPDATE trading_account SET ctrader_trading_account = ? WHERE trading_account_uuid = UUID_TO_BIN(?)`
	if err := s.execOne(ctx, tx, query, ctraderID, id.String()); err != nil {
		return fmt.Errorf("failed to update cTrader ID of %s: %w", id, err)
	}
	return nil
}

func (s *Store) RestoreAccountActive(ctx context.Context, tx store.DBTransaction, id uuid.UUID, reason sql.NullString) error {
	query := `UPDATE trading_account SET success = NULL, reason = ? WHERE trading_account_uuid = UUID_TO_BIN(?)`
	if err := s.execOne(ctx, tx, query, reason, id.String()); err != nil {
		return fmt.Errorf("failed to restore trading account %s: %w", id, err)
	}
	return nil
}

func (s *Store) GetTradingAccountOptions(ctx context.Context, id uuid.UUID) ([]store.Option, error) {
	var options []store.Option
	err := s.db.SelectContext(ctx, &options, `
		SELECT BIN_TO_UUID(o.option_uuid) AS option_uuid, o.name, o.majoration_percent
		FROM trading_account_options tao
		JOIN options o ON tao.option_uuid = o.option_uuid
		WHERE tao.trading_account_uuid = UUID_TO_BIN(?)
		ORDER BY o.name`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list options of trading account %s: %w", id, err)
	}
	return options, nil
}

func (s *Store) AddTradingAccountOption(ctx context.Context, tx store.DBTransaction, id, optionID uuid.UUID) error {
	query := `INSERT INTO trading_account_options (trading_account_uuid, option_uuid) VALUES (UUID_TO_BIN(?), UUID_TO_BIN(?))`
	if _, err := s.getExecutor(tx).ExecContext(ctx, query, id.String(), optionID.String()); err != nil {
		return fmt.Errorf("failed to add option %s to trading account %s: %w", optionID, id, err)
	}
	return nil
}

func (s *Store) RemoveTradingAccountOption(ctx context.Context, tx store.DBTransaction, id, optionID uuid.UUID) error {
	query := `DELETE FROM trading_account_options WHERE trading_account_uuid = UUID_TO_BIN(?) AND option_uuid = UUID_TO_BIN(?)`
	if err := s.execOne(ctx, tx, query, id.String(), optionID.String()); err != nil {
		return fmt.Errorf("failed to remove option %s from trading account %s: %w", optionID, id, err)
	}
	return nil
}
