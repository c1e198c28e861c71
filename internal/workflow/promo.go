package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"supportconsole/internal/store"
)

// CreatePromo writes a new promo code after checking the code is free.
func (o *Orchestrator) CreatePromo(ctx context.Context, req PromoRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionCreatePromo)

	existing, err := o.repo.GetPromoByCode(ctx, strings.TrimSpace(req.Code))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	plan, err := PlanCreatePromo(req, existing)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	promo := plan.Promo
	promo.ID = o.newID()
	err = store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.CreatePromo(ctx, tx, promo); err != nil {
			return err
		}
		return o.audit(ctx, tx, ActionCreatePromo, tablePromo, someID(promo.ID), map[string]any{
			"code":          promo.Code,
			"percent_promo": promo.PercentPromo,
			"is_global":     promo.Global,
			"is_unlimited":  promo.Unlimited,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create promo %q: %w", promo.Code, err)
	}
	log.Info("promo created", "promo_uuid", promo.ID, "code", promo.Code)

	out := &Outcome{
		Action:  ActionCreatePromo,
		Success: true,
		Summary: fmt.Sprintf("Promo code %q created", promo.Code),
		Recap: []Field{
			{"Promo UUID", promo.ID.String()},
			{"Code", promo.Code},
			{"Discount", percent(promo.PercentPromo * 100)},
		},
	}
	o.record(ctx, out)
	return out, nil
}
