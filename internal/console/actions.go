package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"supportconsole/internal/store"
	"supportconsole/internal/workflow"

	"github.com/google/uuid"
)

// recentAuditLimit is the number of rows shown by the audit action.
const recentAuditLimit = 20

func notFound(format string, args ...any) error {
	return &workflow.ValidationError{Message: fmt.Sprintf(format, args...)}
}

// findAccount looks an account up by cTrader ID or UUID and prints it.
// The challenge is nil when it no longer exists.
func (a *attached) findAccount(ctx context.Context) (*store.TradingAccount, *store.Challenge, error) {
	answer, err := a.ask(ctx, "cTrader ID or trading account UUID:")
	if err != nil {
		return nil, nil, err
	}
	if answer == "" {
		return nil, nil, errAborted
	}

	var account *store.TradingAccount
	if id, perr := uuid.Parse(answer); perr == nil {
		account, err = a.conn.Repo.GetTradingAccountByUUID(ctx, id)
	} else if ctid, perr := strconv.ParseInt(answer, 10, 64); perr == nil {
		account, err = a.conn.Repo.GetTradingAccountByCtrader(ctx, ctid)
	} else {
		return nil, nil, notFound("%q is neither a cTrader ID nor a UUID", answer)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, notFound("no trading account matches %q", answer)
	}
	if err != nil {
		return nil, nil, err
	}

	challenge, err := a.conn.Repo.GetChallengeByUUID(ctx, account.ChallengeID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}
	a.out.Account(account, challenge)
	return account, challenge, nil
}

// findUser accepts an email, a CTID, a UUID or free text searched in names.
func (a *attached) findUser(ctx context.Context) (*store.User, error) {
	answer, err := a.ask(ctx, "User email, CTID, UUID or name:")
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, errAborted
	}

	var user *store.User
	switch {
	case strings.Contains(answer, "@"):
		user, err = a.conn.Repo.GetUserByEmail(ctx, answer)
	case isDigits(answer):
		ctid, _ := strconv.ParseInt(answer, 10, 64)
		user, err = a.conn.Repo.GetUserByCTID(ctx, ctid)
	default:
		if id, perr := uuid.Parse(answer); perr == nil {
			user, err = a.conn.Repo.GetUserByUUID(ctx, id)
			break
		}
		return a.searchUser(ctx, answer)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("no user matches %q", answer)
	}
	return user, err
}

func (a *attached) searchUser(ctx context.Context, pattern string) (*store.User, error) {
	users, err := a.conn.Repo.SearchUsers(ctx, pattern)
	if err != nil {
		return nil, err
	}
	switch len(users) {
	case 0:
		return nil, notFound("no user matches %q", pattern)
	case 1:
		return &users[0], nil
	}
	items := make([]string, 0, len(users))
	for _, u := range users {
		ctid := "no CTID"
		if u.CTID.Valid {
			ctid = "CTID " + strconv.FormatInt(u.CTID.Int64, 10)
		}
		items = append(items, fmt.Sprintf("%s <%s> (%s)", u.FullName(), u.Email, ctid))
	}
	i, err := a.choose(ctx, "Matching users", items)
	if err != nil {
		return nil, err
	}
	return &users[i], nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (a *attached) createAccount(ctx context.Context) (*workflow.Outcome, error) {
	user, err := a.findUser(ctx)
	if err != nil {
		return nil, err
	}

	challenges, err := a.conn.Repo.GetPublishedChallenges(ctx)
	if err != nil {
		return nil, err
	}
	if len(challenges) == 0 {
		return nil, notFound("no published challenge")
	}
	items := make([]string, 0, len(challenges))
	for _, c := range challenges {
		items = append(items, fmt.Sprintf("%s (%s) price %.2f EUR, balance %.2f", c.Name, c.Type, c.Price, c.InitialBalance))
	}
	ci, err := a.choose(ctx, "Challenge", items)
	if err != nil {
		return nil, err
	}

	optionIDs, err := a.chooseOptions(ctx)
	if err != nil {
		return nil, err
	}

	return a.orch.CreateTradingAccount(ctx, workflow.CreateAccountRequest{
		UserID:      user.ID,
		ChallengeID: challenges[ci].ID,
		OptionIDs:   optionIDs,
	})
}

func (a *attached) chooseOptions(ctx context.Context) ([]uuid.UUID, error) {
	options, err := a.conn.Repo.GetAllOptions(ctx)
	if err != nil || len(options) == 0 {
		return nil, err
	}
	items := make([]string, 0, len(options))
	for _, o := range options {
		items = append(items, fmt.Sprintf("%s (+%.0f%%)", o.Name, o.MajorationPercent))
	}
	for {
		a.out.Menu("Options", items)
		answer, err := a.ask(ctx, "Options (comma-separated numbers, Enter for none):")
		if err != nil {
			return nil, err
		}
		picked, err := parseSelection(answer, len(options))
		if err != nil {
			a.out.Warn(err.Error())
			continue
		}
		ids := make([]uuid.UUID, 0, len(picked))
		for _, i := range picked {
			ids = append(ids, options[i].ID)
		}
		return ids, nil
	}
}

func (a *attached) chooseFee(ctx context.Context) (workflow.FeeChoice, error) {
	i, err := a.choose(ctx, "Activation fee ("+workflow.ActivationFee+")", []string{
		"Charge: the trader receives a payment link by email",
		"Bypass: activate for free",
	})
	if err != nil {
		return workflow.FeeCharge, err
	}
	if i == 1 {
		return workflow.FeeBypass, nil
	}
	return workflow.FeeCharge, nil
}

func (a *attached) activateFunded(ctx context.Context) (*workflow.Outcome, error) {
	account, challenge, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, notFound("challenge %s not found", account.ChallengeID)
	}
	if _, err := workflow.FundedTarget(account, challenge); err != nil {
		return nil, err
	}

	fee := workflow.FeeCharge
	if workflow.RequiresActivationFee(challenge.Type) {
		if fee, err = a.chooseFee(ctx); err != nil {
			return nil, err
		}
	}
	return a.orch.ActivateFunded(ctx, workflow.ActivateFundedRequest{AccountID: account.ID, Fee: fee})
}

func (a *attached) bypassFees(ctx context.Context) (*workflow.Outcome, error) {
	account, _, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	return a.orch.BypassActivationFees(ctx, account.ID)
}

func (a *attached) forcePhase(ctx context.Context) (*workflow.Outcome, error) {
	account, challenge, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, notFound("challenge %s not found", account.ChallengeID)
	}
	t, err := workflow.NextTransition(challenge.Type, account.Phase)
	if err != nil {
		return nil, err
	}

	fee := workflow.FeeCharge
	if t.Funded() && workflow.RequiresActivationFee(challenge.Type) {
		if fee, err = a.chooseFee(ctx); err != nil {
			return nil, err
		}
	}
	return a.orch.ForcePhaseTransition(ctx, workflow.PhaseTransitionRequest{AccountID: account.ID, Fee: fee})
}

func (a *attached) deactivate(ctx context.Context) (*workflow.Outcome, error) {
	account, _, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	if err := workflow.CheckDeactivatable(account); err != nil {
		return nil, err
	}

	items := make([]string, 0, len(store.DeactivationReasons))
	for _, r := range store.DeactivationReasons {
		items = append(items, string(r))
	}
	i, err := a.choose(ctx, "Deactivation reason", items)
	if err != nil {
		return nil, err
	}
	return a.orch.Deactivate(ctx, workflow.DeactivateRequest{AccountID: account.ID, Reason: store.DeactivationReasons[i]})
}

func (a *attached) reactivate(ctx context.Context) (*workflow.Outcome, error) {
	account, _, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	if err := workflow.CheckReactivatable(account); err != nil {
		return nil, err
	}
	target, err := a.askFloat(ctx, "New profit target as a decimal, e.g. 0.08 (Enter to keep the current one):", true)
	if err != nil {
		return nil, err
	}
	return a.orch.Reactivate(ctx, workflow.ReactivateRequest{AccountID: account.ID, ProfitTarget: target})
}

func (a *attached) fixProfitTarget(ctx context.Context) (*workflow.Outcome, error) {
	account, _, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	target, err := a.askFloat(ctx, "New profit target as a decimal (0.08 for 8%):", false)
	if err != nil {
		return nil, err
	}
	return a.orch.FixProfitTarget(ctx, workflow.ProfitTargetRequest{AccountID: account.ID, Target: *target})
}

func (a *attached) updateCtraderID(ctx context.Context) (*workflow.Outcome, error) {
	account, _, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	newID, err := a.askInt64(ctx, "New cTrader account ID:")
	if err != nil {
		return nil, err
	}
	return a.orch.UpdateCtraderID(ctx, workflow.CtraderIDRequest{AccountID: account.ID, NewID: newID})
}

func (a *attached) recentAudit(ctx context.Context) (*workflow.Outcome, error) {
	recs, err := a.conn.Repo.GetRecentAuditRecords(ctx, recentAuditLimit)
	if err != nil {
		return nil, err
	}
	a.out.AuditRecords(recs)
	return nil, nil
}
