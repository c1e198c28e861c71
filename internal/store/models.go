// Package store contains the data model and repository contracts for the
// platform database the console operates on.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is the challenge_phase column of a trading account.
type Phase int

const (
	PhaseUnlimited          Phase = 0
	PhaseStandardOne        Phase = 1
	PhaseStandardTwo        Phase = 2
	PhaseInstantFundedRules Phase = 3
	PhaseFundedStandard     Phase = 4
	PhaseFundedUnlimited    Phase = 5
)

func (p Phase) String() string {
	switch p {
	case PhaseUnlimited:
		return "Unlimited"
	case PhaseStandardOne:
		return "Phase 1"
	case PhaseStandardTwo:
		return "Phase 2"
	case PhaseInstantFundedRules:
		return "Instant Funded"
	case PhaseFundedStandard:
		return "Funded Standard"
	case PhaseFundedUnlimited:
		return "Funded Unlimited"
	default:
		return fmt.Sprintf("Phase %d", int(p))
	}
}

// IsFunded reports whether p is one of the funded phases.
func (p Phase) IsFunded() bool {
	return p == PhaseFundedStandard || p == PhaseFundedUnlimited
}

// ChallengeType is the challenge.type column.
type ChallengeType string

const (
	ChallengeStandard        ChallengeType = "standard"
	ChallengeUnlimited       ChallengeType = "unlimited"
	ChallengeInstantFunded   ChallengeType = "instant_funded"
	ChallengeFundedStandard  ChallengeType = "funded_standard"
	ChallengeFundedUnlimited ChallengeType = "funded_unlimited"
)

// Reason is the reason column written alongside status changes.
type Reason string

const (
	ReasonMaxDailyDrawdown         Reason = "MAX_DAILY_DRAW_DOWN"
	ReasonMaxDrawdown              Reason = "MAX_DRAW_DOWN"
	ReasonNewsViolation            Reason = "NEWS_VIOLATION"
	ReasonChallengeExpired         Reason = "CHALLENGE_EXPIRED"
	ReasonChallengeReview          Reason = "CHALLENGE_REVIEW"
	ReasonChallengeSucceed         Reason = "CHALLENGE_SUCCEED"
	ReasonFundedActivated          Reason = "FUNDED_ACTIVATED"
	ReasonProfitTargetRecalculated Reason = "PROFIT_TARGET_RECALCULATED"
	ReasonNoTradeHistoryZombie     Reason = "NO_TRADE_HISTORY_ZOMBIE"
	ReasonTraderNotFound           Reason = "TRADER_NOT_FOUND"
)

// DeactivationReasons are the reasons an operator may pick when deactivating an account.
var DeactivationReasons = []Reason{
	ReasonMaxDailyDrawdown,
	ReasonMaxDrawdown,
	ReasonNewsViolation,
	ReasonChallengeExpired,
	ReasonChallengeReview,
	ReasonNoTradeHistoryZombie,
	ReasonTraderNotFound,
}

// User is a platform customer.
type User struct {
	ID        uuid.UUID      `db:"user_uuid"`
	CTID      sql.NullInt64  `db:"CTID"`
	Email     string         `db:"email"`
	Firstname string         `db:"firstname"`
	Lastname  string         `db:"lastname"`
	Country   sql.NullInt64  `db:"country_id"`
	Language  sql.NullString `db:"language"`
	Valid     bool           `db:"valid"`
}

// FullName returns "Firstname Lastname".
func (u *User) FullName() string {
	return u.Firstname + " " + u.Lastname
}

// Challenge is an evaluation program definition.
type Challenge struct {
	ID             uuid.UUID      `db:"challenge_uuid"`
	Name           string         `db:"name"`
	Description    sql.NullString `db:"description"`
	Type           ChallengeType  `db:"type"`
	Price          float64        `db:"price"`
	InitialBalance float64        `db:"initial_coins_amount"`
	Published      bool           `db:"published"`
}

// ChallengeRule holds the rules of one phase of a challenge. Percentages are
// stored as whole percents (10 means 10%).
type ChallengeRule struct {
	ChallengeID             uuid.UUID       `db:"challenge_uuid"`
	Phase                   Phase           `db:"phase"`
	MaxDailyDrawdownPercent sql.NullFloat64 `db:"max_daily_drawdown_percent"`
	MaxTotalDrawdownPercent sql.NullFloat64 `db:"max_total_drawdown_percent"`
	ProfitTargetPercent     float64         `db:"profit_target_percent"`
	MinTradingDays          int             `db:"min_trading_days"`

	// PhaseDuration is a Go duration string such as "720h0m0s"; empty means unlimited.
	PhaseDuration sql.NullString `db:"phase_duration"`
}

// Option is a purchasable challenge add-on.
type Option struct {
	ID                uuid.UUID `db:"option_uuid"`
	Name              string    `db:"name"`
	MajorationPercent float64   `db:"majoration_percent"`
}

// Payment is a payment row. Orders created by the console use the
// admin_manual method with a zero price.
type Payment struct {
	ID       uuid.UUID
	Proof    string
	Method   string
	Price    float64
	Currency string
}

// Order links a user, a challenge and a payment.
type Order struct {
	ID                     uuid.UUID
	ChallengeID            uuid.UUID
	UserID                 uuid.UUID
	PaymentID              uuid.UUID
	ChallengeConfiguration string
}

// TradingAccount is an evaluation or funded account tied to one order.
type TradingAccount struct {
	ID                  uuid.UUID       `db:"trading_account_uuid"`
	OrderID             uuid.UUID       `db:"order_uuid"`
	ChallengeID         uuid.UUID       `db:"challenge_uuid"`
	CtraderAccount      sql.NullInt64   `db:"ctrader_trading_account"`
	CtraderServer       sql.NullString  `db:"ctrader_server"`
	Phase               Phase           `db:"challenge_phase"`
	PhaseBegin          sql.NullTime    `db:"challenge_phase_begin"`
	PhaseEnd            sql.NullTime    `db:"challenge_phase_end"`
	ProfitTargetPercent sql.NullFloat64 `db:"current_profit_target_percent"`
	Success             sql.NullInt64   `db:"success"`
	Reason              sql.NullString  `db:"reason"`
}

// IsActive reports whether the account is still running (success is NULL).
func (ta *TradingAccount) IsActive() bool {
	return !ta.Success.Valid
}

// Status describes the success column for operators.
func (ta *TradingAccount) Status() string {
	switch {
	case !ta.Success.Valid:
		return "active"
	case ta.Success.Int64 == 1:
		return "succeeded"
	default:
		return "failed"
	}
}

// FundedActivation is a pending or settled funded activation fee.
type FundedActivation struct {
	ID               uuid.UUID      `db:"activation_uuid"`
	UserID           uuid.UUID      `db:"user_uuid"`
	TradingAccountID uuid.UUID      `db:"trading_account_uuid"`
	Amount           float64        `db:"amount"`
	Currency         string         `db:"currency"`
	Status           string         `db:"status"`
	PaymentLink      sql.NullString `db:"payment_link"`
	CreatedAt        time.Time      `db:"created_at"`
	ExpiresAt        sql.NullTime   `db:"expires_at"`
}

// AuditRecord is one row of the append-only admin_audit_log table.
type AuditRecord struct {
	ID          int64
	ActionType  string
	TargetTable string
	TargetID    uuid.NullUUID
	Details     map[string]any
	Operator    string
	Environment string
	ExecutedAt  time.Time
}

// PayoutStatus is the status column of a payout request.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutApproved PayoutStatus = "approved"
	PayoutRejected PayoutStatus = "rejected"
	PayoutPaid     PayoutStatus = "paid"
)

// PayoutDecisions are the statuses an operator may move a payout to.
var PayoutDecisions = []PayoutStatus{PayoutApproved, PayoutRejected, PayoutPaid}

// Payout is a payout request joined with its user's email and account.
type Payout struct {
	ID                   uuid.UUID      `db:"payout_request_uuid"`
	UserID               uuid.UUID      `db:"user_uuid"`
	TradingAccountID     uuid.NullUUID  `db:"trading_account_uuid"`
	Method               string         `db:"payout_method"`
	IBAN                 sql.NullString `db:"iban"`
	WalletAddress        sql.NullString `db:"wallet_address"`
	WalletProtocol       sql.NullString `db:"wallet_protocol"`
	BalanceBeforeRequest float64        `db:"balance_before_request"`
	TotalProfit          float64        `db:"total_profit"`
	Amount               float64        `db:"payout_amount"`
	ProfitSplit          string         `db:"profit_split"`
	Status               PayoutStatus   `db:"status"`
	CreatedAt            time.Time      `db:"created_at"`
	Email                string         `db:"email"`
	CtraderAccount       sql.NullInt64  `db:"ctrader_trading_account"`
}

// Promo is a discount code. PercentPromo is a fraction (0.10 means 10%).
type Promo struct {
	ID           uuid.UUID
	Code         string
	PercentPromo float64
	Unlimited    bool
	Global       bool
	Phase        Phase
	ExpiresAt    sql.NullTime
	StripeID     sql.NullString
	UserID       uuid.NullUUID
	ChallengeID  uuid.NullUUID

	// Descriptions by language code (fr, en, es, de, it); missing means NULL.
	Descriptions map[string]string
}

// PromoLanguages are the languages promo descriptions are stored in.
var PromoLanguages = []string{"fr", "en", "es", "de", "it"}

// OrderSummary is an order joined with its payment and challenge, for reports.
type OrderSummary struct {
	ID              uuid.UUID       `db:"order_uuid"`
	ChallengeName   sql.NullString  `db:"challenge_name"`
	ChallengeType   sql.NullString  `db:"challenge_type"`
	PaymentMethod   sql.NullString  `db:"payment_method"`
	PaymentPrice    sql.NullFloat64 `db:"payment_price"`
	PaymentCurrency sql.NullString  `db:"payment_currency"`
	PaymentDate     sql.NullTime    `db:"payment_date"`
}
