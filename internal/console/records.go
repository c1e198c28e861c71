package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"supportconsole/internal/store"
	"supportconsole/internal/workflow"

	"github.com/google/uuid"
)

// payoutChoices bounds the payout requests offered for selection.
const payoutChoices = 15

func (a *attached) managePayouts(ctx context.Context) (*workflow.Outcome, error) {
	payouts, err := a.conn.Repo.GetPayoutsByStatus(ctx, store.PayoutPending)
	if err != nil {
		return nil, err
	}
	if len(payouts) == 0 {
		a.out.Info("No pending payout request.")
		i, err := a.choose(ctx, "Show payouts with another status?", []string{"Approved", "All", "Back"})
		if err != nil {
			return nil, err
		}
		if i == 2 {
			return nil, errAborted
		}
		status := store.PayoutApproved
		if i == 1 {
			status = ""
		}
		if payouts, err = a.conn.Repo.GetPayoutsByStatus(ctx, status); err != nil {
			return nil, err
		}
		if len(payouts) == 0 {
			return nil, notFound("no payout request found")
		}
	}
	if len(payouts) > payoutChoices {
		payouts = payouts[:payoutChoices]
	}

	items := make([]string, 0, len(payouts)+1)
	for _, p := range payouts {
		items = append(items, fmt.Sprintf("%s, %.2f EUR (%s)", p.Email, p.Amount, p.Status))
	}
	items = append(items, "Back")
	i, err := a.choose(ctx, "Payout requests", items)
	if err != nil {
		return nil, err
	}
	if i == len(payouts) {
		return nil, errAborted
	}
	payout := payouts[i]
	a.out.Fields(workflow.PayoutFields(&payout))

	d, err := a.choose(ctx, "Decision", []string{"Approve", "Reject", "Mark as paid", "Cancel"})
	if err != nil {
		return nil, err
	}
	if d == len(store.PayoutDecisions) {
		return nil, errAborted
	}
	return a.orch.ChangePayoutStatus(ctx, workflow.PayoutStatusRequest{PayoutID: payout.ID, Status: store.PayoutDecisions[d]})
}

func (a *attached) createPromo(ctx context.Context) (*workflow.Outcome, error) {
	var req workflow.PromoRequest
	code, err := a.ask(ctx, "Promo code:")
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, errAborted
	}
	req.Code = code

	pct, err := a.askFloat(ctx, "Discount as a decimal (0.10 for 10%):", false)
	if err != nil {
		return nil, err
	}
	req.PercentPromo = *pct

	if req.Global, err = a.askYesNo(ctx, "Global promo (available to everyone)?"); err != nil {
		return nil, err
	}
	if req.Unlimited, err = a.askYesNo(ctx, "Reusable (unlimited uses)?"); err != nil {
		return nil, err
	}

	linkChallenge, err := a.askYesNo(ctx, "Restrict to one challenge?")
	if err != nil {
		return nil, err
	}
	if linkChallenge {
		id, err := a.chooseChallenge(ctx)
		if err != nil {
			return nil, err
		}
		req.ChallengeID = uuid.NullUUID{UUID: id, Valid: true}
	}

	linkUser, err := a.askYesNo(ctx, "Restrict to one user?")
	if err != nil {
		return nil, err
	}
	if linkUser {
		user, err := a.findUser(ctx)
		if err != nil {
			return nil, err
		}
		req.UserID = uuid.NullUUID{UUID: user.ID, Valid: true}
	}

	phase, err := a.askPhase(ctx)
	if err != nil {
		return nil, err
	}
	req.Phase = phase

	if req.ExpiresAt, err = a.askDate(ctx, "Expiry date YYYY-MM-DD (Enter for none):"); err != nil {
		return nil, err
	}
	if req.StripeID, err = a.ask(ctx, "Stripe coupon ID (Enter for none):"); err != nil {
		return nil, err
	}

	req.Descriptions = make(map[string]string, len(store.PromoLanguages))
	for _, lang := range store.PromoLanguages {
		text, err := a.ask(ctx, fmt.Sprintf("Description %s (Enter for none):", lang))
		if err != nil {
			return nil, err
		}
		req.Descriptions[lang] = text
	}
	return a.orch.CreatePromo(ctx, req)
}

func (a *attached) chooseChallenge(ctx context.Context) (uuid.UUID, error) {
	challenges, err := a.conn.Repo.GetPublishedChallenges(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if len(challenges) == 0 {
		return uuid.Nil, notFound("no published challenge")
	}
	items := make([]string, 0, len(challenges))
	for _, c := range challenges {
		items = append(items, fmt.Sprintf("%s (%s) price %.2f EUR", c.Name, c.Type, c.Price))
	}
	i, err := a.choose(ctx, "Challenge", items)
	if err != nil {
		return uuid.Nil, err
	}
	return challenges[i].ID, nil
}

// askPhase reads a promo phase; an empty answer is phase 0.
func (a *attached) askPhase(ctx context.Context) (store.Phase, error) {
	for {
		answer, err := a.ask(ctx, "Phase 0-5 (Enter for 0):")
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return 0, nil
		}
		if n, err := strconv.Atoi(answer); err == nil {
			return store.Phase(n), nil
		}
		a.out.Warn(fmt.Sprintf("%q is not a whole number.", answer))
	}
}

func (a *attached) manageOptions(ctx context.Context) (*workflow.Outcome, error) {
	account, _, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}
	current, err := a.conn.Repo.GetTradingAccountOptions(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	a.out.Options(current)

	i, err := a.choose(ctx, "Options", []string{"Add an option", "Remove an option", "Back"})
	if err != nil {
		return nil, err
	}
	if i == 2 {
		return nil, errAborted
	}
	add := i == 0

	candidates := current
	if add {
		catalog, err := a.conn.Repo.GetAllOptions(ctx)
		if err != nil {
			return nil, err
		}
		candidates = withoutOptions(catalog, current)
		if len(candidates) == 0 {
			return nil, notFound("every option is already on this account")
		}
	} else if len(candidates) == 0 {
		return nil, notFound("no option to remove")
	}

	items := make([]string, 0, len(candidates))
	for _, o := range candidates {
		items = append(items, fmt.Sprintf("%s (+%.0f%%)", o.Name, o.MajorationPercent))
	}
	j, err := a.choose(ctx, "Option", items)
	if err != nil {
		return nil, err
	}
	req := workflow.OptionChangeRequest{AccountID: account.ID, OptionID: candidates[j].ID}
	if add {
		return a.orch.AddAccountOption(ctx, req)
	}
	return a.orch.RemoveAccountOption(ctx, req)
}

func withoutOptions(catalog, current []store.Option) []store.Option {
	have := make(map[uuid.UUID]bool, len(current))
	for _, o := range current {
		have[o.ID] = true
	}
	var out []store.Option
	for _, o := range catalog {
		if !have[o.ID] {
			out = append(out, o)
		}
	}
	return out
}

func (a *attached) searchUsers(ctx context.Context) (*workflow.Outcome, error) {
	answer, err := a.ask(ctx, "Email, name or CTID to search:")
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, errAborted
	}

	var users []store.User
	if isDigits(answer) {
		ctid, _ := strconv.ParseInt(answer, 10, 64)
		user, err := a.conn.Repo.GetUserByCTID(ctx, ctid)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if user != nil {
			users = append(users, *user)
		}
	} else if users, err = a.conn.Repo.SearchUsers(ctx, answer); err != nil {
		return nil, err
	}
	a.out.Users(users)
	return nil, nil
}

func (a *attached) userReport(ctx context.Context) (*workflow.Outcome, error) {
	user, err := a.findUser(ctx)
	if err != nil {
		return nil, err
	}
	a.out.Section("User " + user.FullName())
	a.out.User(user)

	orders, err := a.conn.Repo.GetOrdersByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	a.out.Section("Orders")
	a.out.Orders(orders)

	accounts, err := a.conn.Repo.GetTradingAccountsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	a.out.Section("Trading accounts")
	a.out.TradingAccounts(accounts)

	payouts, err := a.conn.Repo.GetPayoutsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	a.out.Section("Payout requests")
	a.out.Payouts(payouts)
	return nil, nil
}

func (a *attached) accountReport(ctx context.Context) (*workflow.Outcome, error) {
	account, challenge, err := a.findAccount(ctx)
	if err != nil {
		return nil, err
	}

	options, err := a.conn.Repo.GetTradingAccountOptions(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	a.out.Section("Options")
	a.out.Options(options)

	if challenge != nil {
		rules, err := a.conn.Repo.GetChallengeRules(ctx, challenge.ID)
		if err != nil {
			return nil, err
		}
		for _, rule := range rules {
			if rule.Phase == account.Phase {
				a.out.Section("Phase rules")
				a.out.Rule(rule)
			}
		}
	}

	history, err := a.conn.Repo.GetTradingAccountsByOrder(ctx, account.OrderID)
	if err != nil {
		return nil, err
	}
	a.out.Section("Phase history")
	if len(history) > 1 {
		a.out.TradingAccounts(history)
	} else {
		a.out.Info("No phase progression (single phase).")
	}

	recs, err := a.conn.Repo.GetAuditRecordsForTarget(ctx, account.ID, recentAuditLimit)
	if err != nil {
		return nil, err
	}
	a.out.Section("Audit history")
	a.out.AuditRecords(recs)
	return nil, nil
}

// askDate reads a YYYY-MM-DD date; an empty answer returns nil.
func (s *Shell) askDate(ctx context.Context, prompt string) (*time.Time, error) {
	for {
		answer, err := s.ask(ctx, prompt)
		if err != nil || answer == "" {
			return nil, err
		}
		d, err := time.Parse(time.DateOnly, answer)
		if err == nil {
			return &d, nil
		}
		s.out.Warn(fmt.Sprintf("%q is not a YYYY-MM-DD date.", answer))
	}
}

func (s *Shell) askYesNo(ctx context.Context, title string) (bool, error) {
	i, err := s.choose(ctx, title, []string{"Yes", "No"})
	return i == 0, err
}
