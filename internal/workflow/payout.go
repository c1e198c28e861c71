package workflow

import (
	"context"
	"errors"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// PayoutStatusRequest names a payout request and its new status.
type PayoutStatusRequest struct {
	PayoutID uuid.UUID
	Status   store.PayoutStatus
}

// ChangePayoutStatus records an operator decision on a payout request. The
// transfer itself happens outside the platform.
func (o *Orchestrator) ChangePayoutStatus(ctx context.Context, req PayoutStatusRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionPayoutStatusChange)

	payout, err := o.repo.GetPayoutByUUID(ctx, req.PayoutID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rejectf("payout request %s not found", req.PayoutID)
	}
	if err != nil {
		return nil, err
	}
	plan, err := PlanPayoutDecision(payout, req.Status)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.UpdatePayoutStatus(ctx, tx, payout.ID, plan.Status); err != nil {
			return err
		}
		return o.audit(ctx, tx, ActionPayoutStatusChange, tablePayoutRequest, someID(payout.ID), map[string]any{
			"email":      payout.Email,
			"amount":     payout.Amount,
			"old_status": string(payout.Status),
			"new_status": string(plan.Status),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update payout %s: %w", payout.ID, err)
	}
	log.Info("payout status changed", "payout_request_uuid", payout.ID, "from", payout.Status, "to", plan.Status)

	out := &Outcome{
		Action:  ActionPayoutStatusChange,
		Success: true,
		Summary: "Payout updated: " + string(plan.Status),
		Recap: []Field{
			{"Email", payout.Email},
			{"Amount", money(payout.Amount)},
			{"Previous status", string(payout.Status)},
			{"New status", string(plan.Status)},
		},
	}
	o.record(ctx, out)
	return out, nil
}
