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

// ActivateFundedRequest identifies the account to move to funded. Fee is
// only read for challenge types that require an activation fee.
type ActivateFundedRequest struct {
	AccountID uuid.UUID
	Fee       FeeChoice
}

// ActivateFunded asks the watcher to simulate the funded transition of an
// eligible account. For unlimited accounts whose fee is bypassed, the pending
// activation created by the simulation is then processed by the order
// service. No local write precedes the remote steps, so nothing is compensated.
func (o *Orchestrator) ActivateFunded(ctx context.Context, req ActivateFundedRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionActivateFunded)

	account, err := o.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	challenge, err := o.loadChallenge(ctx, account.ChallengeID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanActivateFunded(account, challenge, req.Fee)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	out := &Outcome{Action: ActionActivateFunded}

	sim := o.runner.Run(ctx, o.jobSpec(prefixSimulateFunded, simulateFundedEndpoint(o.urls(Watcher, o.env), account.ID)))
	out.job("Funded simulation (watcher)", sim)

	if !sim.Success {
		out.Action = ActionActivateFundedFailed
		out.Summary = "Funded simulation failed"
		out.Recap = []Field{{"cTrader ID", ctrader(account)}, {"Reason", failureReason(sim)}}
		o.record(ctx, out)
		return out, o.audit(context.WithoutCancel(ctx), nil, ActionActivateFundedFailed, tableTradingAccount, someID(account.ID), map[string]any{
			"ctrader_id":     ctraderValue(account),
			"challenge_type": string(challenge.Type),
			"target_phase":   int(plan.Target),
			"error":          failureReason(sim),
		})
	}

	details := map[string]any{
		"ctrader_id":       ctraderValue(account),
		"challenge_type":   string(challenge.Type),
		"target_phase":     int(plan.Target),
		"bypass_fees":      plan.Fee == FeeBypass,
		"duration_seconds": sim.DurationSeconds(),
	}

	out.Success = true
	switch {
	case plan.unlimited() && !plan.Process:
		out.Summary = "Funded activation created (awaiting payment)"
		out.Recap = awaitingPaymentRecap()
	case plan.Process:
		processed := o.processPendingActivation(ctx, log, out, account.ID)
		details["process_job_success"] = processed
		if processed {
			out.Summary = "Funded account created (fees bypassed via order service and account manager)"
		} else {
			out.Success = false
			out.Summary = "Funded simulation succeeded but the activation was not processed; manual verification required"
		}
		out.Recap = []Field{{"Original cTrader ID", ctrader(account)}}
	default:
		out.Summary = "Funded standard account created"
		out.Recap = []Field{{"Original cTrader ID", ctrader(account)}}
	}

	o.record(ctx, out)
	return out, o.audit(context.WithoutCancel(ctx), nil, ActionActivateFunded, tableTradingAccount, someID(account.ID), details)
}

// BypassActivationFees processes an account's pending funded activation
// without payment.
func (o *Orchestrator) BypassActivationFees(ctx context.Context, accountID uuid.UUID) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionBypassActivationFees)

	account, err := o.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	challenge, err := o.repo.GetChallengeByUUID(ctx, account.ChallengeID)
	if err != nil {
		log.Warn("challenge not available for display", "challenge_uuid", account.ChallengeID, "error", err)
		challenge = nil
	}
	activation, err := o.repo.GetPendingFundedActivation(ctx, account.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	plan, err := PlanBypassFees(account, challenge, activation)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	res := o.runner.Run(ctx, o.jobSpec(prefixProcessActivation, processActivationEndpoint(o.urls(OrderService, o.env), activation.ID)))

	out := &Outcome{Action: ActionBypassActivationFees, Success: res.Success}
	out.job("Process activation (order service)", res)
	if res.Success {
		out.Summary = "Fees bypassed and funded account created (via order service and account manager)"
	} else {
		out.Summary = "Processing failed; verify manually"
		out.warn("Verify the state of activation %s manually.", activation.ID)
	}
	out.Recap = []Field{
		{"Activation UUID", activation.ID.String()},
		{"Amount bypassed", moneyIn(activation.Amount, activation.Currency)},
		{"cTrader ID", ctrader(account)},
	}

	o.record(ctx, out)
	return out, o.audit(context.WithoutCancel(ctx), nil, ActionBypassActivationFees, tableFundedActivation, someID(activation.ID), map[string]any{
		"trading_account_uuid": account.ID.String(),
		"ctrader_id":           ctraderValue(account),
		"original_amount":      activation.Amount,
		"currency":             activation.Currency,
		"process_job_success":  res.Success,
	})
}

// PhaseTransitionRequest identifies the account to move to its next phase.
type PhaseTransitionRequest struct {
	AccountID uuid.UUID
	Fee       FeeChoice
}

// ForcePhaseTransition moves an account to the next phase of the transition
// table. Funded targets go through the watcher simulation; other targets mark
// the account succeeded locally and ask the account manager for the
// next-phase account, restoring the account when that job fails.
func (o *Orchestrator) ForcePhaseTransition(ctx context.Context, req PhaseTransitionRequest) (*Outcome, error) {
	ctx, log := o.begin(ctx, ActionForcePhaseTransition)

	account, err := o.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	challenge, err := o.loadChallenge(ctx, account.ChallengeID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanPhaseTransition(account, challenge, req.Fee)
	if err != nil {
		return nil, err
	}
	if err := o.confirm(ctx, plan.Preview); err != nil {
		return nil, err
	}

	if plan.Transition.Funded() {
		return o.forceFunded(ctx, log, plan)
	}
	return o.forceNextPhase(ctx, log, plan)
}

func (o *Orchestrator) forceNextPhase(ctx context.Context, log *slog.Logger, plan *PhaseTransitionPlan) (*Outcome, error) {
	account, t := plan.Account, plan.Transition

	err := store.RunInTx(ctx, o.repo, func(tx store.Tx) error {
		if err := o.repo.MarkAccountSucceeded(ctx, tx, account.ID, store.ReasonChallengeSucceed); err != nil {
			return err
		}
		return o.audit(ctx, tx, ActionForcePhaseTransition, tableTradingAccount, someID(account.ID), map[string]any{
			"ctrader_id":     ctraderValue(account),
			"challenge_type": string(plan.Challenge.Type),
			"from_phase":     int(t.From),
			"to_phase":       int(t.To),
			"action":         "mark_success",
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark account %s as succeeded: %w", account.ID, err)
	}
	log.Info("account marked succeeded", "trading_account_uuid", account.ID, "reason", store.ReasonChallengeSucceed)

	res := o.runner.Run(ctx, o.jobSpec(prefixForcePhase, createAccountEndpoint(o.urls(AccountManager, o.env), account.OrderID, int(t.To))))

	out := &Outcome{Action: ActionForcePhaseTransition, Success: res.Success}
	out.job("Create next phase account via the account manager", res)

	if !res.Success {
		return o.compensateNextPhase(ctx, log, out, plan, res)
	}

	newCtrader, newID := "N/A (verify manually)", "N/A"
	accounts, err := o.repo.GetTradingAccountsByOrder(ctx, account.OrderID)
	if err != nil {
		log.Warn("failed to look up next phase account", "order_uuid", account.OrderID, "error", err)
	}
	for i := range accounts {
		if accounts[i].Phase == t.To && accounts[i].IsActive() {
			newCtrader, newID = ctrader(&accounts[i]), accounts[i].ID.String()
			break
		}
	}

	out.Summary = "Phase transition succeeded"
	out.Recap = []Field{
		{"Previous phase", phaseLabel(t.From)},
		{"New phase", phaseLabel(t.To)},
		{"Original cTrader ID", ctrader(account)},
		{"New cTrader ID", newCtrader},
		{"New UUID", newID},
	}
	o.record(ctx, out)
	return out, nil
}

// compensateNextPhase puts the account back to active with its previous
// reason after the account manager failed to create the next phase account,
// and records the failure. A compensation failure is returned as
// *CompensationError naming the account.
func (o *Orchestrator) compensateNextPhase(ctx context.Context, log *slog.Logger, out *Outcome, plan *PhaseTransitionPlan,
	res jobrunner.Result) (*Outcome, error) {
	account, t := plan.Account, plan.Transition
	remote := failureReason(res)

	cleanupCtx := context.WithoutCancel(ctx)
	compErr := store.RunInTx(cleanupCtx, o.repo, func(tx store.Tx) error {
		return o.repo.RestoreAccountActive(cleanupCtx, tx, account.ID, account.Reason)
	})
	o.metrics.RecordCompensation(ctx, ActionForcePhaseTransition, compErr == nil)

	compensation := "rolled_back"
	out.Action = ActionForcePhaseTransitionFailed
	out.Summary = "Next phase account could not be created; rollback performed: account restored to active"
	if compErr != nil {
		log.Error("compensation failed", "trading_account_uuid", account.ID, "error", compErr)
		compensation = "failed"
		out.Summary = "Next phase account could not be created and the rollback failed too; manual fix required"
		out.warn("Trading account %s still has success=1 and no %s account. Restore it manually.", account.ID, t.To)
	} else {
		log.Info("compensation succeeded", "trading_account_uuid", account.ID)
	}
	out.Recap = []Field{
		{"cTrader ID", ctrader(account)},
		{"Phase", phaseLabel(t.From)},
		{"Reason", remote},
	}

	details := map[string]any{
		"ctrader_id":       ctraderValue(account),
		"challenge_type":   string(plan.Challenge.Type),
		"from_phase":       int(t.From),
		"to_phase":         int(t.To),
		"error":            remote,
		"compensation":     compensation,
		"tam_job_duration": res.DurationSeconds(),
	}
	if compErr != nil {
		details["compensation_error"] = compErr.Error()
	}

	o.record(ctx, out)
	auditErr := o.audit(cleanupCtx, nil, ActionForcePhaseTransitionFailed, tableTradingAccount, someID(account.ID), details)

	if compErr != nil {
		return out, errors.Join(&CompensationError{AccountID: account.ID, Remote: remote, Err: compErr}, auditErr)
	}
	return out, auditErr
}

func (o *Orchestrator) forceFunded(ctx context.Context, log *slog.Logger, plan *PhaseTransitionPlan) (*Outcome, error) {
	account, t := plan.Account, plan.Transition
	unlimited := plan.Challenge.Type == store.ChallengeUnlimited

	out := &Outcome{Action: ActionForcePhaseTransition}

	sim := o.runner.Run(ctx, o.jobSpec(prefixForceFunded, simulateFundedEndpoint(o.urls(Watcher, o.env), account.ID)))
	out.job("Funded simulation (watcher)", sim)

	if !sim.Success {
		out.Action = ActionForcePhaseTransitionFailed
		out.Summary = "Funded simulation failed"
		out.Recap = []Field{{"cTrader ID", ctrader(account)}, {"Reason", failureReason(sim)}}
		o.record(ctx, out)
		return out, o.audit(context.WithoutCancel(ctx), nil, ActionForcePhaseTransitionFailed, tableTradingAccount, someID(account.ID), map[string]any{
			"ctrader_id":     ctraderValue(account),
			"challenge_type": string(plan.Challenge.Type),
			"target_phase":   int(t.To),
			"error":          failureReason(sim),
		})
	}

	details := map[string]any{
		"ctrader_id":        ctraderValue(account),
		"challenge_type":    string(plan.Challenge.Type),
		"from_phase":        int(t.From),
		"to_phase":          int(t.To),
		"bypass_fees":       plan.Fee == FeeBypass,
		"simulate_duration": sim.DurationSeconds(),
	}

	out.Success = true
	if plan.Process {
		processed := o.processPendingActivation(ctx, log, out, account.ID)
		details["process_job_success"] = processed
		out.Success = processed
	}

	switch {
	case unlimited && plan.Fee != FeeBypass:
		out.Summary = "Funded activation created (awaiting payment)"
		out.Recap = awaitingPaymentRecap()
	case out.Success:
		out.Summary = "Moved to funded"
	default:
		out.Summary = "Funded simulation succeeded but the activation was not processed; manual verification required"
	}
	if out.Recap == nil {
		bypassed := "N/A (standard)"
		if unlimited {
			bypassed = yesNo(plan.Fee == FeeBypass)
		}
		out.Recap = []Field{
			{"Previous phase", phaseLabel(t.From)},
			{"Target phase", phaseLabel(t.To)},
			{"Original cTrader ID", ctrader(account)},
			{"Fees bypassed", bypassed},
		}
	}

	o.record(ctx, out)
	return out, o.audit(context.WithoutCancel(ctx), nil, ActionForcePhaseTransition, tableTradingAccount, someID(account.ID), details)
}

// processPendingActivation runs the order service's processing of the
// account's latest pending funded activation. Failures become warnings on out.
func (o *Orchestrator) processPendingActivation(ctx context.Context, log *slog.Logger, out *Outcome, accountID uuid.UUID) bool {
	activation, err := o.repo.GetPendingFundedActivation(ctx, accountID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("failed to look up pending activation", "trading_account_uuid", accountID, "error", err)
		}
		out.warn("No pending funded_activation found; processing could not be done automatically. Use 'Bypass activation fees' if needed.")
		return false
	}

	res := o.runner.Run(ctx, o.jobSpec(prefixProcessActivation, processActivationEndpoint(o.urls(OrderService, o.env), activation.ID)))
	out.job("Process activation (order service)", res)
	if !res.Success {
		out.warn("Funded activation %s exists but could not be processed. Manual verification required, or use 'Bypass activation fees'.", activation.ID)
		return false
	}
	return true
}

func awaitingPaymentRecap() []Field {
	return []Field{
		{"Amount", ActivationFee},
		{"Action required", "The trader must pay through the payment link sent by email"},
		{"Alternative", "Use 'Bypass activation fees' to skip the payment"},
	}
}

func ctraderValue(account *store.TradingAccount) any {
	if !account.CtraderAccount.Valid {
		return nil
	}
	return account.CtraderAccount.Int64
}
