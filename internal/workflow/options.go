package workflow

import (
	"context"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// OptionChangeRequest names an account and a catalog option.
type OptionChangeRequest struct {
	AccountID uuid.UUID
	OptionID  uuid.UUID
}

// AddAccountOption attaches a catalog option to a trading account.
func (o *Orchestrator) AddAccountOption(ctx context.Context, req OptionChangeRequest) (*Outcome, error) {
	return o.changeOption(ctx, req, true)
}

// RemoveAccountOption detaches an option from a trading account.
func (o *Orchestrator) RemoveAccountOption(ctx context.Context, req OptionChangeRequest) (*Outcome, error) {
	return o.changeOption(ctx, req, false)
}

func (o *Orchestrator) changeOption(ctx context.Context, req OptionChangeRequest, add bool) (*Outcome, error) {
	action := ActionRemoveOption
	if add {
		action = ActionAddOption
	}
	ctx, log := o.begin(ctx, action)

	account, err := o.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	current, err := o.repo.GetTradingAccountOptions(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	catalog, err := o.repo.GetAllOptions(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := PlanOptionChange(account, current, catalog, req.OptionID, add)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		var err error
		if add {
			err = o.repo.AddTradingAccountOption(ctx, tx, account.ID, plan.Option.ID)
		} else {
			err = o.repo.RemoveTradingAccountOption(ctx, tx, account.ID, plan.Option.ID)
		}
		if err != nil {
			return err
		}
		return o.audit(ctx, tx, action, tableAccountOptions, someID(account.ID), map[string]any{
			"ctrader_id":  ctraderValue(account),
			"option_name": plan.Option.Name,
			"option_uuid": plan.Option.ID.String(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to change option %s on account %s: %w", plan.Option.ID, account.ID, err)
	}
	log.Info("account option changed", "trading_account_uuid", account.ID, "option_uuid", plan.Option.ID, "added", add)

	summary := fmt.Sprintf("Option %q removed", plan.Option.Name)
	if add {
		summary = fmt.Sprintf("Option %q added", plan.Option.Name)
	}
	out := &Outcome{
		Action:  action,
		Success: true,
		Summary: summary,
		Recap: []Field{
			{"cTrader ID", ctrader(account)},
			{"Option", plan.Option.Name},
		},
	}
	o.record(ctx, out)
	return out, nil
}
