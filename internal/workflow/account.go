package workflow

import (
	"context"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// DeactivateRequest names the account to deactivate and the reason recorded.
type DeactivateRequest struct {
	AccountID uuid.UUID
	Reason    store.Reason
}

// Deactivate marks an active account as failed.
func (o *Orchestrator) Deactivate(ctx context.Context, req DeactivateRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionDeactivateAccount)

	account, err := o.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanDeactivate(account, req.Reason)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.DeactivateAccount(ctx, tx, account.ID, plan.Reason); err != nil {
			return err
		}
		return o.audit(ctx, tx, ActionDeactivateAccount, tableTradingAccount, someID(account.ID), map[string]any{
			"ctrader_id": ctraderValue(account),
			"phase":      int(account.Phase),
			"reason":     string(plan.Reason),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate account %s: %w", account.ID, err)
	}
	log.Info("account deactivated", "trading_account_uuid", account.ID, "reason", plan.Reason)

	out := &Outcome{
		Action:  ActionDeactivateAccount,
		Success: true,
		Summary: "Account deactivated",
		Recap: []Field{
			{"cTrader ID", ctrader(account)},
			{"Status", "failed"},
			{"Reason", string(plan.Reason)},
		},
	}
	o.record(ctx, out)
	return out, nil
}

// ReactivateRequest names the account to reactivate. A non-nil ProfitTarget
// (a fraction) replaces the current profit target.
type ReactivateRequest struct {
	AccountID    uuid.UUID
	ProfitTarget *float64
}

// Reactivate clears the final status of an account that succeeded or failed.
func (o *Orchestrator) Reactivate(ctx context.Context, req ReactivateRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionReactivateAccount)

	account, err := o.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanReactivate(account, req.ProfitTarget)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	var newTarget any
	if plan.ProfitTarget != nil {
		newTarget = *plan.ProfitTarget
	}
	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.ReactivateAccount(ctx, tx, account.ID, plan.Reason, plan.ProfitTarget); err != nil {
			return err
		}
		return o.audit(ctx, tx, ActionReactivateAccount, tableTradingAccount, someID(account.ID), map[string]any{
			"ctrader_id":             ctraderValue(account),
			"previous_reason":        reasonOrDash(account),
			"previous_success":       account.Success.Int64,
			"new_profit_target":      newTarget,
			"profit_target_adjusted": plan.ProfitTarget != nil,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reactivate account %s: %w", account.ID, err)
	}
	log.Info("account reactivated", "trading_account_uuid", account.ID)

	out := &Outcome{
		Action:  ActionReactivateAccount,
		Success: true,
		Summary: "Account reactivated",
		Recap: []Field{
			{"cTrader ID", ctrader(account)},
			{"Status", "active"},
			{"Previous reason", reasonOrDash(account)},
		},
	}
	if plan.ProfitTarget != nil {
		out.Recap = append(out.Recap, Field{"New profit target", fraction(nullFloat(*plan.ProfitTarget))})
	}
	o.record(ctx, out)
	return out, nil
}

// ProfitTargetRequest sets an account's profit target to Target (a fraction).
type ProfitTargetRequest struct {
	AccountID uuid.UUID
	Target    float64
}

// FixProfitTarget overwrites the current profit target of an account.
func (o *Orchestrator) FixProfitTarget(ctx context.Context, req ProfitTargetRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionFixProfitTarget)

	account, err := o.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanFixProfitTarget(account, req.Target)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	var oldValue any
	if account.ProfitTargetPercent.Valid {
		oldValue = account.ProfitTargetPercent.Float64
	}
	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.UpdateProfitTarget(ctx, tx, account.ID, plan.Target, store.ReasonProfitTargetRecalculated); err != nil {
			return err
		}
		return o.audit(ctx, tx, ActionFixProfitTarget, tableTradingAccount, someID(account.ID), map[string]any{
			"ctrader_id": ctraderValue(account),
			"old_value":  oldValue,
			"new_value":  plan.Target,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profit target of %s: %w", account.ID, err)
	}
	log.Info("profit target updated", "trading_account_uuid", account.ID, "target", plan.Target)

	out := &Outcome{
		Action:  ActionFixProfitTarget,
		Success: true,
		Summary: "Profit target updated",
		Recap: []Field{
			{"cTrader ID", ctrader(account)},
			{"Previous profit target", fraction(account.ProfitTargetPercent)},
			{"New profit target", fraction(nullFloat(plan.Target))},
		},
	}
	o.record(ctx, out)
	return out, nil
}

// CtraderIDRequest replaces the cTrader account number linked to an account.
type CtraderIDRequest struct {
	AccountID uuid.UUID
	NewID     int64
}

// UpdateCtraderID rewrites the ctrader_trading_account column.
func (o *Orchestrator) UpdateCtraderID(ctx context.Context, req CtraderIDRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionUpdateCtraderID)

	account, err := o.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanUpdateCtraderID(account, req.NewID)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.UpdateCtraderAccount(ctx, tx, account.ID, plan.NewID); err != nil {
			return err
		}
		return o.audit(ctx, tx, ActionUpdateCtraderID, tableTradingAccount, someID(account.ID), map[string]any{
			"old_ctrader_id": ctraderValue(account),
			"new_ctrader_id": plan.NewID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update cTrader ID of %s: %w", account.ID, err)
	}
	log.Info("cTrader ID updated", "trading_account_uuid", account.ID, "ctrader_id", plan.NewID)

	out := &Outcome{
		Action:  ActionUpdateCtraderID,
		Success: true,
		Summary: "cTrader ID updated",
		Recap: []Field{
			{"Account UUID", account.ID.String()},
			{"Previous cTrader ID", ctrader(account)},
			{"New cTrader ID", fmt.Sprint(plan.NewID)},
		},
	}
	o.record(ctx, out)
	return out, nil
}
