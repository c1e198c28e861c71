package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"supportconsole/internal/jobrunner"
	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// Payment written for accounts created by an operator.
const (
	PaymentMethodManual = "admin_manual"
	paymentCurrency     = "EUR"
)

// CompensationError means a remote step failed after a local commit and the
// committed change could not be undone. OrderID is set when an order must be
// cleaned up by hand, AccountID when a trading account must be restored.
type CompensationError struct {
	OrderID   uuid.UUID
	PaymentID uuid.UUID
	AccountID uuid.UUID

	// Remote is the failure that triggered the compensation.
	Remote string
	Err    error
}

func (e *CompensationError) Error() string {
	if e.OrderID == uuid.Nil {
		return fmt.Sprintf("remote step failed (%s) and rollback also failed: %v; trading account %s must be restored manually",
			e.Remote, e.Err, e.AccountID)
	}
	return fmt.Sprintf("remote step failed (%s) and rollback also failed: %v; order %s must be cleaned up manually",
		e.Remote, e.Err, e.OrderID)
}

func (e *CompensationError) Unwrap() error { return e.Err }

// CreateAccountRequest names the entities an operator picked for a new account.
type CreateAccountRequest struct {
	UserID      uuid.UUID
	ChallengeID uuid.UUID
	OptionIDs   []uuid.UUID
}

// CreateTradingAccount writes a payment, an order and its options, commits,
// then asks the account manager to materialize the account from the order.
// When the remote step fails the three rows are deleted again. The returned
// Outcome is non-nil whenever the workflow got past confirmation, including
// when err is a *CompensationError.
func (o *Orchestrator) CreateTradingAccount(ctx context.Context, req CreateAccountRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionCreateTradingAccount)

	user, err := o.repo.GetUserByUUID(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rejectf("user %s not found", req.UserID)
	}
	if err != nil {
		return nil, err
	}
	challenge, err := o.loadChallenge(ctx, req.ChallengeID)
	if err != nil {
		return nil, err
	}
	rules, err := o.repo.GetChallengeRules(ctx, challenge.ID)
	if err != nil {
		return nil, err
	}
	selected, err := o.selectOptions(ctx, req.OptionIDs)
	if err != nil {
		return nil, err
	}

	plan, err := PlanCreateTradingAccount(user, challenge, rules, selected)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	payment := &store.Payment{
		ID:       o.newID(),
		Proof:    PaymentMethodManual,
		Method:   PaymentMethodManual,
		Price:    0,
		Currency: paymentCurrency,
	}
	order := &store.Order{
		ID:                     o.newID(),
		ChallengeID:            challenge.ID,
		UserID:                 user.ID,
		PaymentID:              payment.ID,
		ChallengeConfiguration: plan.Configuration,
	}

	// The account manager reads the order back by id, so it must be committed first
	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.CreatePayment(ctx, tx, payment); err != nil {
			return err
		}
		if err := o.repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		for _, opt := range plan.Options {
			if err := o.repo.CreateOrderOption(ctx, tx, order.ID, opt.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	log.Info("order committed", "order_uuid", order.ID, "payment_uuid", payment.ID)

	ep := createAccountEndpoint(o.urls(AccountManager, o.env), order.ID, int(plan.InitialPhase))
	res := o.runner.Run(ctx, o.jobSpec(prefixCreateAccount, ep))

	out := &Outcome{Action: ActionCreateTradingAccount}
	out.job("Create account via the account manager", res)

	if !res.Success {
		return o.compensateCreate(ctx, log, out, plan, order, payment, res)
	}

	// The created account is looked up only for the audit trail and recap
	var created *store.TradingAccount
	accounts, err := o.repo.GetTradingAccountsByOrder(ctx, order.ID)
	if err != nil {
		log.Warn("failed to look up created account", "order_uuid", order.ID, "error", err)
	} else if len(accounts) > 0 {
		created = &accounts[0]
	}

	details := map[string]any{
		"user_email":       user.Email,
		"user_uuid":        user.ID.String(),
		"user_ctid":        user.CTID.Int64,
		"challenge_name":   challenge.Name,
		"challenge_type":   string(challenge.Type),
		"challenge_uuid":   challenge.ID.String(),
		"order_uuid":       order.ID.String(),
		"payment_uuid":     payment.ID.String(),
		"initial_phase":    int(plan.InitialPhase),
		"initial_balance":  challenge.InitialBalance,
		"options":          plan.OptionNames(),
		"ctrader_id":       "unknown",
		"tam_job_duration": res.DurationSeconds(),
	}
	target := uuid.NullUUID{}
	accountID, ctraderID := "N/A", "N/A (verify manually)"
	if created != nil {
		target = someID(created.ID)
		accountID = created.ID.String()
		if created.CtraderAccount.Valid {
			details["ctrader_id"] = created.CtraderAccount.Int64
			ctraderID = ctrader(created)
		}
	}

	out.Success = true
	out.Summary = "Trading account created"
	out.Recap = []Field{
		{"User", fmt.Sprintf("%s (%s)", user.FullName(), user.Email)},
		{"Challenge", challengeLabel(challenge)},
		{"Phase", phaseLabel(plan.InitialPhase)},
		{"Balance", money(challenge.InitialBalance)},
		{"Order UUID", order.ID.String()},
		{"Trading account UUID", accountID},
		{"cTrader ID", ctraderID},
		{"Options", listOrNone(plan.OptionNames())},
	}

	o.record(ctx, out)
	if err := o.audit(context.WithoutCancel(ctx), nil, ActionCreateTradingAccount, tableTradingAccount, target, details); err != nil {
		return out, err
	}
	return out, nil
}

// compensateCreate deletes the rows committed for a failed account creation
// (options, then order, then payment) in one transaction and records the
// failure. A compensation failure is returned as *CompensationError.
func (o *Orchestrator) compensateCreate(ctx context.Context, log *slog.Logger, out *Outcome, plan *CreateAccountPlan,
	order *store.Order, payment *store.Payment, res jobrunner.Result) (*Outcome, error) {
	remote := failureReason(res)

	// Cleanup must run even if the operator interrupted the remote step
	cleanupCtx := context.WithoutCancel(ctx)
	compErr := store.RunInTx(cleanupCtx, o.repo, func(tx store.Tx) error {
		if err := o.repo.DeleteOrderOptions(cleanupCtx, tx, order.ID); err != nil {
			return err
		}
		if err := o.repo.DeleteOrder(cleanupCtx, tx, order.ID); err != nil {
			return err
		}
		return o.repo.DeletePayment(cleanupCtx, tx, payment.ID)
	})
	o.metrics.RecordCompensation(ctx, ActionCreateTradingAccount, compErr == nil)

	compensation := "rolled_back"
	out.Action = ActionCreateTradingAccountFailed
	out.Summary = "Account creation failed; rollback performed: order and payment deleted"
	if compErr != nil {
		log.Error("compensation failed", "order_uuid", order.ID, "payment_uuid", payment.ID, "error", compErr)
		compensation = "failed"
		out.Summary = "Account creation failed and the rollback failed too; manual cleanup required"
		out.warn("Order %s to clean up manually (payment %s)", order.ID, payment.ID)
	} else {
		log.Info("compensation succeeded", "order_uuid", order.ID)
	}
	out.Recap = []Field{
		{"User", plan.User.Email},
		{"Challenge", challengeLabel(plan.Challenge)},
		{"Order UUID", order.ID.String()},
		{"Reason", remote},
	}

	details := map[string]any{
		"user_email":       plan.User.Email,
		"user_uuid":        plan.User.ID.String(),
		"challenge_uuid":   plan.Challenge.ID.String(),
		"order_uuid":       order.ID.String(),
		"payment_uuid":     payment.ID.String(),
		"initial_phase":    int(plan.InitialPhase),
		"error":            remote,
		"compensation":     compensation,
		"tam_job_duration": res.DurationSeconds(),
	}
	if compErr != nil {
		details["compensation_error"] = compErr.Error()
	}

	o.record(ctx, out)
	auditErr := o.audit(cleanupCtx, nil, ActionCreateTradingAccountFailed, tableTradingAccount, uuid.NullUUID{}, details)

	if compErr != nil {
		return out, errors.Join(&CompensationError{OrderID: order.ID, PaymentID: payment.ID, Remote: remote, Err: compErr}, auditErr)
	}
	return out, auditErr
}

func (o *Orchestrator) selectOptions(ctx context.Context, ids []uuid.UUID) ([]store.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	all, err := o.repo.GetAllOptions(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]store.Option, len(all))
	for _, opt := range all {
		byID[opt.ID] = opt
	}
	selected := make([]store.Option, 0, len(ids))
	for _, id := range ids {
		opt, ok := byID[id]
		if !ok {
			return nil, rejectf("option %s not found", id)
		}
		selected = append(selected, opt)
	}
	return selected, nil
}
