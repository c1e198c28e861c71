package mysql

import (
	"context"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CreatePayment(ctx context.Context, tx store.DBTransaction, p *store.Payment) error {
	query := `
		INSERT INTO payment (payment_uuid, proof, payment_date, method, price, currency)
		VALUES (UUID_TO_BIN(?), ?, NOW(), ?, ?, ?)
	`
	_, err := s.getExecutor(tx).ExecContext(ctx, query, p.ID.String(), p.Proof, p.Method, p.Price, p.Currency)
	if err != nil {
		return fmt.Errorf("failed to create payment %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, tx store.DBTransaction, o *store.Order) error {
	query := `
		INSERT INTO orders (order_uuid, challenge_uuid, user_uuid, payment_uuid, order_challenge_configuration)
		VALUES (UUID_TO_BIN(?), UUID_TO_BIN(?), UUID_TO_BIN(?), UUID_TO_BIN(?), ?)
	`
	_, err := s.getExecutor(tx).ExecContext(ctx, query,
		o.ID.String(), o.ChallengeID.String(), o.UserID.String(), o.PaymentID.String(), o.ChallengeConfiguration)
	if err != nil {
		return fmt.Errorf("failed to create order %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) CreateOrderOption(ctx context.Context, tx store.DBTransaction, orderID, optionID uuid.UUID) error {
	query := `INSERT INTO order_options (order_uuid, option_uuid) VALUES (UUID_TO_BIN(?), UUID_TO_BIN(?))`
	if _, err := s.getExecutor(tx).ExecContext(ctx, query, orderID.String(), optionID.String()); err != nil {
		return fmt.Errorf("failed to attach option %s to order %s: %w", optionID, orderID, err)
	}
	return nil
}

// DeleteOrderOptions removes every option row of an order. Zero rows is not an error.
func (s *Store) DeleteOrderOptions(ctx context.Context, tx store.DBTransaction, orderID uuid.UUID) error {
	query := `DELETE FROM order_options WHERE order_uuid = UUID_TO_BIN(?)`
	if _, err := s.getExecutor(tx).ExecContext(ctx, query, orderID.String()); err != nil {
		return fmt.Errorf("failed to delete options of order %s: %w", orderID, err)
	}
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, tx store.DBTransaction, orderID uuid.UUID) error {
	if err := s.execOne(ctx, tx, `DELETE FROM orders WHERE order_uuid = UUID_TO_BIN(?)`, orderID.String()); err != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderID, err)
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, tx store.DBTransaction, paymentID uuid.UUID) error {
	if err := s.execOne(ctx, tx, `DELETE FROM payment WHERE payment_uuid = UUID_TO_BIN(?)`, paymentID.String()); err != nil {
		return fmt.Errorf("failed to delete payment %s: %w", paymentID, err)
	}
	return nil
}

func (s *Store) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]store.OrderSummary, error) {
	var orders []store.OrderSummary
	err := s.db.SelectContext(ctx, &orders, `
		SELECT BIN_TO_UUID(o.order_uuid) AS order_uuid,
			c.name AS challenge_name, c.type AS challenge_type,
			p.method AS payment_method, p.price AS payment_price,
			p.currency AS payment_currency, p.payment_date
		FROM orders o
		LEFT JOIN payment p ON o.payment_uuid = p.payment_uuid
		LEFT JOIN challenge c ON o.challenge_uuid = c.challenge_uuid
		WHERE o.user_uuid = UUID_TO_BIN(?)
		ORDER BY p.payment_date DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of user %s: %w", userID, err)
	}
	return orders, nil
}
