package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// Transactor starts local transactions.
type Transactor interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// UserStore looks up platform users.
type UserStore interface {
	GetUserByUUID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByCTID(ctx context.Context, ctid int64) (*User, error)

	// SearchUsers matches pattern against email, first name and last name (max 20 rows).
	SearchUsers(ctx context.Context, pattern string) ([]User, error)
}

// ChallengeStore reads challenge definitions, their phase rules and options.
type ChallengeStore interface {
	GetPublishedChallenges(ctx context.Context) ([]Challenge, error)
	GetChallengeByUUID(ctx context.Context, id uuid.UUID) (*Challenge, error)
	GetChallengeRules(ctx context.Context, challengeID uuid.UUID) ([]ChallengeRule, error)
	GetAllOptions(ctx context.Context) ([]Option, error)
}

// OrderStore writes the payment/order/order_options rows created for a new
// trading account, and deletes them again when the remote step fails.
type OrderStore interface {
	CreatePayment(ctx context.Context, tx DBTransaction, p *Payment) error
	CreateOrder(ctx context.Context, tx DBTransaction, o *Order) error
	CreateOrderOption(ctx context.Context, tx DBTransaction, orderID, optionID uuid.UUID) error

	DeleteOrderOptions(ctx context.Context, tx DBTransaction, orderID uuid.UUID) error
	DeleteOrder(ctx context.Context, tx DBTransaction, orderID uuid.UUID) error
	DeletePayment(ctx context.Context, tx DBTransaction, paymentID uuid.UUID) error

	// GetOrdersByUser lists a user's orders, most recent payment first.
	GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]OrderSummary, error)
}

// TradingAccountStore reads and updates trading accounts.
type TradingAccountStore interface {
	GetTradingAccountByUUID(ctx context.Context, id uuid.UUID) (*TradingAccount, error)
	GetTradingAccountByCtrader(ctx context.Context, ctraderID int64) (*TradingAccount, error)
	GetTradingAccountsByOrder(ctx context.Context, orderID uuid.UUID) ([]TradingAccount, error)
	GetTradingAccountsByUser(ctx context.Context, userID uuid.UUID) ([]TradingAccount, error)

	MarkAccountSucceeded(ctx context.Context, tx DBTransaction, id uuid.UUID, reason Reason) error
	DeactivateAccount(ctx context.Context, tx DBTransaction, id uuid.UUID, reason Reason) error

	// ReactivateAccount clears success; profitTarget is only written when non-nil.
	ReactivateAccount(ctx context.Context, tx DBTransaction, id uuid.UUID, reason Reason, profitTarget *float64) error
	UpdateProfitTarget(ctx context.Context, tx DBTransaction, id uuid.UUID, target float64, reason Reason) error
	UpdateCtraderAccount(ctx context.Context, tx DBTransaction, id uuid.UUID, ctraderID int64) error

	// RestoreAccountActive sets success back to NULL and writes reason as given (NULL when invalid).
	RestoreAccountActive(ctx context.Context, tx DBTransaction, id uuid.UUID, reason sql.NullString) error

	GetTradingAccountOptions(ctx context.Context, id uuid.UUID) ([]Option, error)
	AddTradingAccountOption(ctx context.Context, tx DBTransaction, id, optionID uuid.UUID) error
	RemoveTradingAccountOption(ctx context.Context, tx DBTransaction, id, optionID uuid.UUID) error
}

// FundedActivationStore reads funded activation fees.
type FundedActivationStore interface {
	// GetPendingFundedActivation returns the most recent pending activation of an account.
	GetPendingFundedActivation(ctx context.Context, tradingAccountID uuid.UUID) (*FundedActivation, error)
}

// PayoutStore reads and decides payout requests.
type PayoutStore interface {
	// GetPayoutsByStatus lists the 50 most recent requests; an empty status lists all.
	GetPayoutsByStatus(ctx context.Context, status PayoutStatus) ([]Payout, error)
	GetPayoutsByUser(ctx context.Context, userID uuid.UUID) ([]Payout, error)
	GetPayoutByUUID(ctx context.Context, id uuid.UUID) (*Payout, error)
	UpdatePayoutStatus(ctx context.Context, tx DBTransaction, id uuid.UUID, status PayoutStatus) error
}

// PromoStore reads and creates promo codes.
type PromoStore interface {
	GetPromoByCode(ctx context.Context, code string) (*Promo, error)
	CreatePromo(ctx context.Context, tx DBTransaction, p *Promo) error
}

// AuditStore appends to and reads the admin audit log.
type AuditStore interface {
	InsertAuditRecord(ctx context.Context, tx DBTransaction, rec *AuditRecord) error
	GetRecentAuditRecords(ctx context.Context, limit int) ([]AuditRecord, error)
	GetAuditRecordsForTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]AuditRecord, error)
}

// Repository is the full data-access contract consumed by the workflows.
type Repository interface {
	Transactor
	UserStore
	ChallengeStore
	OrderStore
	TradingAccountStore
	FundedActivationStore
	PayoutStore
	PromoStore
	AuditStore
}
