package workflow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// The Plan functions below are the decision stage of every workflow: given
// entity state and operator choices they validate and describe the change.
// They perform no I/O.

// CreateAccountPlan is a validated request to create a trading account.
type CreateAccountPlan struct {
	User          *store.User
	Challenge     *store.Challenge
	Options       []store.Option
	InitialPhase  store.Phase
	Rules         store.ChallengeRule
	Configuration string
	Preview       Preview
}

// phaseConfiguration is one phase of the order_challenge_configuration
// document read by the backend. Percentages are fractions.
type phaseConfiguration struct {
	MaxDailyDrawdownPercent *float64 `json:"max_daily_drawdown_percent"`
	MaxTotalDrawdownPercent *float64 `json:"max_total_drawdown_percent"`
	ProfitTargetPercent     float64  `json:"profit_target_percent"`
	PhaseDuration           *string  `json:"phase_duration"`
	MinTradingDays          int      `json:"min_trading_days"`
}

func asFraction(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64 / 100
	return &f
}

// ChallengeConfiguration renders rules as the JSON snapshot stored on an order.
func ChallengeConfiguration(rules []store.ChallengeRule) (string, error) {
	doc := make(map[string]phaseConfiguration, len(rules))
	for _, r := range rules {
		pc := phaseConfiguration{
			MaxDailyDrawdownPercent: asFraction(r.MaxDailyDrawdownPercent),
			MaxTotalDrawdownPercent: asFraction(r.MaxTotalDrawdownPercent),
			ProfitTargetPercent:     r.ProfitTargetPercent / 100,
			MinTradingDays:          r.MinTradingDays,
		}
		if r.PhaseDuration.Valid {
			d := r.PhaseDuration.String
			pc.PhaseDuration = &d
		}
		doc[strconv.Itoa(int(r.Phase))] = pc
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode challenge configuration: %w", err)
	}
	return string(b), nil
}

// PlanCreateTradingAccount validates that user can receive a new account on
// challenge with the selected options.
func PlanCreateTradingAccount(user *store.User, challenge *store.Challenge, rules []store.ChallengeRule, selected []store.Option) (*CreateAccountPlan, error) {
	if !user.CTID.Valid || user.CTID.Int64 <= 0 {
		return nil, rejectf("user %s has no cTrader ID (CTID); the account manager needs it to link the cTrader account, and the user must sign in to the platform once to obtain one", user.Email)
	}
	if !challenge.Published {
		return nil, rejectf("challenge %s is not published", challenge.Name)
	}

	initial := InitialPhase(challenge.Type)
	rp := rulesPhase(challenge.Type)
	idx := slices.IndexFunc(rules, func(r store.ChallengeRule) bool { return r.Phase == rp })
	if idx < 0 {
		return nil, rejectf("no rules found for challenge %s, phase %d", challenge.Name, int(rp))
	}

	configuration, err := ChallengeConfiguration(rules)
	if err != nil {
		return nil, err
	}

	plan := &CreateAccountPlan{
		User:          user,
		Challenge:     challenge,
		Options:       selected,
		InitialPhase:  initial,
		Rules:         rules[idx],
		Configuration: configuration,
	}
	plan.Preview = Preview{
		Title: "Create trading account",
		Fields: []Field{
			{"User", fmt.Sprintf("%s (%s)", user.FullName(), user.Email)},
			{"CTID", fmt.Sprint(user.CTID.Int64)},
			{"Challenge", challengeLabel(challenge)},
			{"Price", money(challenge.Price)},
			{"Initial balance", money(challenge.InitialBalance)},
			{"Initial phase", phaseLabel(initial)},
			{"Profit target", percent(rules[idx].ProfitTargetPercent)},
			{"Phase duration", phaseDuration(rules[idx].PhaseDuration)},
			{"Options", listOrNone(plan.OptionNames())},
			{"Payment method", PaymentMethodManual},
			{"cTrader account", "created by the account manager"},
		},
		Description: fmt.Sprintf("Create trading account %q for %s (balance: %s)",
			challenge.Name, user.Email, money(challenge.InitialBalance)),
	}
	return plan, nil
}

// OptionNames lists the selected option names.
func (p *CreateAccountPlan) OptionNames() []string {
	names := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		names = append(names, o.Name)
	}
	return names
}

// FundedPlan is a validated funded activation or funded phase transition.
type FundedPlan struct {
	Account   *store.TradingAccount
	Challenge *store.Challenge
	Target    store.Phase
	Fee       FeeChoice

	// Process is set when the pending activation created by the simulation
	// must be processed right away.
	Process bool

	Preview Preview
}

func (p *FundedPlan) unlimited() bool {
	return p.Challenge.Type == store.ChallengeUnlimited
}

// PlanActivateFunded validates a manual funded activation. fee is only
// meaningful for challenge types that require an activation fee.
func PlanActivateFunded(account *store.TradingAccount, challenge *store.Challenge, fee FeeChoice) (*FundedPlan, error) {
	target, err := FundedTarget(account, challenge)
	if err != nil {
		return nil, err
	}
	if !RequiresActivationFee(challenge.Type) {
		fee = FeeCharge
	}

	plan := &FundedPlan{
		Account:   account,
		Challenge: challenge,
		Target:    target,
		Fee:       fee,
		Process:   fee == FeeBypass,
	}

	desc := fmt.Sprintf("Funded activation: cTrader %s -> %s", ctrader(account), target)
	if fee == FeeBypass {
		desc = fmt.Sprintf("Funded activation with fees bypassed: cTrader %s -> %s", ctrader(account), target)
	}
	plan.Preview = Preview{
		Title: "Funded activation",
		Fields: []Field{
			{"cTrader ID", ctrader(account)},
			{"Account UUID", account.ID.String()},
			{"Challenge", challengeLabel(challenge)},
			{"Current phase", phaseLabel(account.Phase)},
			{"Target phase", phaseLabel(target)},
		},
		Description: desc,
	}
	if RequiresActivationFee(challenge.Type) {
		plan.Preview.Fields = append(plan.Preview.Fields, Field{"Activation fee", ActivationFee + " (" + fee.String() + ")"})
	}
	return plan, nil
}

// PhaseTransitionPlan is a validated forced phase transition.
type PhaseTransitionPlan struct {
	Account    *store.TradingAccount
	Challenge  *store.Challenge
	Transition Transition
	Fee        FeeChoice

	// Process is set for funded transitions whose activation must be
	// processed after the simulation: always for standard, only when the
	// fee is bypassed for unlimited.
	Process bool

	Preview Preview
}

// PlanPhaseTransition resolves the next phase from the transition table.
func PlanPhaseTransition(account *store.TradingAccount, challenge *store.Challenge, fee FeeChoice) (*PhaseTransitionPlan, error) {
	t, err := NextTransition(challenge.Type, account.Phase)
	if err != nil {
		return nil, err
	}
	unlimited := challenge.Type == store.ChallengeUnlimited
	if !t.Funded() || !unlimited {
		fee = FeeCharge
	}

	plan := &PhaseTransitionPlan{
		Account:    account,
		Challenge:  challenge,
		Transition: t,
		Fee:        fee,
		Process:    t.Funded() && (!unlimited || fee == FeeBypass),
	}

	kind := "next phase (account manager)"
	if t.Funded() {
		kind = "funded (watcher simulation)"
	}
	desc := fmt.Sprintf("Force move to %s: cTrader %s", t.To, ctrader(account))
	if fee == FeeBypass {
		desc += " (fees bypassed)"
	}
	plan.Preview = Preview{
		Title: "Force phase transition",
		Fields: []Field{
			{"cTrader ID", ctrader(account)},
			{"Account UUID", account.ID.String()},
			{"Challenge", challengeLabel(challenge)},
			{"Current status", account.Status()},
			{"Reason", reasonOrDash(account)},
			{"Current phase", phaseLabel(account.Phase)},
			{"Target phase", phaseLabel(t.To)},
			{"Target server", strings.ToUpper(string(t.Server))},
			{"Transition type", kind},
		},
		Description: desc,
	}
	return plan, nil
}

// BypassPlan is a validated request to process a pending activation for free.
type BypassPlan struct {
	Account    *store.TradingAccount
	Challenge  *store.Challenge
	Activation *store.FundedActivation
	Preview    Preview
}

// PlanBypassFees requires a pending funded activation. challenge is only
// used for display and may be nil.
func PlanBypassFees(account *store.TradingAccount, challenge *store.Challenge, activation *store.FundedActivation) (*BypassPlan, error) {
	if activation == nil {
		return nil, rejectf("no pending funded_activation found for this account; run the funded activation first, then come back to bypass the fees")
	}

	amount := moneyIn(activation.Amount, activation.Currency)
	fields := []Field{
		{"cTrader ID", ctrader(account)},
		{"Account UUID", account.ID.String()},
		{"Challenge", challengeLabel(challenge)},
		{"Activation UUID", activation.ID.String()},
		{"Amount", amount},
		{"Status", activation.Status},
		{"Created", activation.CreatedAt.Format("2006-01-02 15:04")},
	}
	if activation.ExpiresAt.Valid {
		fields = append(fields, Field{"Expires", activation.ExpiresAt.Time.Format("2006-01-02 15:04")})
	}
	if activation.PaymentLink.Valid && activation.PaymentLink.String != "" {
		fields = append(fields, Field{"Payment link", activation.PaymentLink.String})
	}

	return &BypassPlan{
		Account:    account,
		Challenge:  challenge,
		Activation: activation,
		Preview: Preview{
			Title:       "Bypass activation fees",
			Fields:      fields,
			Description: fmt.Sprintf("Bypass activation fees: %s for cTrader account %s", amount, ctrader(account)),
		},
	}, nil
}

// DeactivatePlan is a validated deactivation.
type DeactivatePlan struct {
	Account *store.TradingAccount
	Reason  store.Reason
	Preview Preview
}

// PlanDeactivate accepts only active accounts and the operator-selectable reasons.
func PlanDeactivate(account *store.TradingAccount, reason store.Reason) (*DeactivatePlan, error) {
	if err := CheckDeactivatable(account); err != nil {
		return nil, err
	}
	if !slices.Contains(store.DeactivationReasons, reason) {
		return nil, rejectf("%q is not a deactivation reason", reason)
	}
	return &DeactivatePlan{
		Account: account,
		Reason:  reason,
		Preview: Preview{
			Title: "Deactivate account",
			Fields: []Field{
				{"cTrader ID", ctrader(account)},
				{"Phase", phaseLabel(account.Phase)},
				{"Server", account.CtraderServer.String},
				{"Profit target", fraction(account.ProfitTargetPercent)},
				{"Status", account.Status()},
			},
			Description: fmt.Sprintf("Deactivate cTrader account %s (reason: %s)", ctrader(account), reason),
		},
	}, nil
}

// ReactivatePlan is a validated reactivation.
type ReactivatePlan struct {
	Account      *store.TradingAccount
	ProfitTarget *float64
	Reason       store.Reason
	Preview      Preview
}

// PlanReactivate accepts accounts that succeeded or failed. A non-nil
// profitTarget also resets the target and records PROFIT_TARGET_RECALCULATED.
func PlanReactivate(account *store.TradingAccount, profitTarget *float64) (*ReactivatePlan, error) {
	if err := CheckReactivatable(account); err != nil {
		return nil, err
	}

	plan := &ReactivatePlan{Account: account, ProfitTarget: profitTarget}
	desc := fmt.Sprintf("Reactivate cTrader account %s", ctrader(account))
	if profitTarget != nil {
		if err := ValidProfitTarget(*profitTarget); err != nil {
			return nil, err
		}
		plan.Reason = store.ReasonProfitTargetRecalculated
		desc += " with profit target " + fraction(nullFloat(*profitTarget))
	}

	plan.Preview = Preview{
		Title: "Reactivate account",
		Fields: []Field{
			{"cTrader ID", ctrader(account)},
			{"Phase", phaseLabel(account.Phase)},
			{"Server", account.CtraderServer.String},
			{"Status", account.Status()},
			{"Reason", reasonOrDash(account)},
			{"Current profit target", fraction(account.ProfitTargetPercent)},
		},
		Description: desc,
	}
	return plan, nil
}

// ProfitTargetPlan is a validated profit target correction.
type ProfitTargetPlan struct {
	Account *store.TradingAccount
	Target  float64
	Preview Preview
}

// PlanFixProfitTarget validates a new profit target expressed as a fraction.
func PlanFixProfitTarget(account *store.TradingAccount, target float64) (*ProfitTargetPlan, error) {
	if err := ValidProfitTarget(target); err != nil {
		return nil, err
	}
	newValue := fraction(nullFloat(target))
	return &ProfitTargetPlan{
		Account: account,
		Target:  target,
		Preview: Preview{
			Title: "Fix profit target",
			Fields: []Field{
				{"cTrader ID", ctrader(account)},
				{"Phase", phaseLabel(account.Phase)},
				{"Current profit target", fraction(account.ProfitTargetPercent)},
				{"New profit target", newValue},
			},
			Description: fmt.Sprintf("Change profit target of cTrader account %s: %s -> %s",
				ctrader(account), fraction(account.ProfitTargetPercent), newValue),
		},
	}, nil
}

// CtraderIDPlan is a validated cTrader account number change.
type CtraderIDPlan struct {
	Account *store.TradingAccount
	NewID   int64
	Preview Preview
}

// PlanUpdateCtraderID validates a replacement cTrader account number.
func PlanUpdateCtraderID(account *store.TradingAccount, newID int64) (*CtraderIDPlan, error) {
	if newID <= 0 {
		return nil, rejectf("cTrader account ID must be a positive integer, got %d", newID)
	}
	return &CtraderIDPlan{
		Account: account,
		NewID:   newID,
		Preview: Preview{
			Title: "Update cTrader ID",
			Fields: []Field{
				{"UUID", account.ID.String()},
				{"Current cTrader ID", ctrader(account)},
				{"Phase", phaseLabel(account.Phase)},
				{"Server", account.CtraderServer.String},
			},
			Description: fmt.Sprintf("Change cTrader ID of account %s...: %s -> %d",
				shortID(account.ID), ctrader(account), newID),
		},
	}, nil
}

// PayoutDecisionPlan is a validated change of a payout request's status.
type PayoutDecisionPlan struct {
	Payout  *store.Payout
	Status  store.PayoutStatus
	Preview Preview
}

// PlanPayoutDecision allows any decision other than the current status.
func PlanPayoutDecision(p *store.Payout, status store.PayoutStatus) (*PayoutDecisionPlan, error) {
	if !slices.Contains(store.PayoutDecisions, status) {
		return nil, rejectf("%q is not a payout decision", status)
	}
	if p.Status == status {
		return nil, rejectf("payout %s is already %s", shortID(p.ID), status)
	}
	return &PayoutDecisionPlan{
		Payout: p,
		Status: status,
		Preview: Preview{
			Title:  "Change payout status",
			Fields: PayoutFields(p),
			Description: fmt.Sprintf("Change payout %s... from %q to %q (%s, %s)",
				shortID(p.ID), p.Status, status, p.Email, money(p.Amount)),
		},
	}, nil
}

// PayoutFields describes a payout request for previews and reports.
func PayoutFields(p *store.Payout) []Field {
	ct := "N/A"
	if p.CtraderAccount.Valid {
		ct = strconv.FormatInt(p.CtraderAccount.Int64, 10)
	}
	return []Field{
		{"UUID", p.ID.String()},
		{"Email", p.Email},
		{"cTrader", ct},
		{"Method", p.Method},
		{"IBAN", orNA(p.IBAN)},
		{"Wallet", orNA(p.WalletAddress)},
		{"Balance before", money(p.BalanceBeforeRequest)},
		{"Total profit", money(p.TotalProfit)},
		{"Payout amount", money(p.Amount)},
		{"Profit split", p.ProfitSplit},
		{"Current status", string(p.Status)},
		{"Date", p.CreatedAt.Format(time.DateTime)},
	}
}

// PromoRequest describes a promo code to create. Empty descriptions are
// stored as NULL.
type PromoRequest struct {
	Code         string
	PercentPromo float64
	Global       bool
	Unlimited    bool
	Phase        store.Phase
	ExpiresAt    *time.Time
	StripeID     string
	UserID       uuid.NullUUID
	ChallengeID  uuid.NullUUID
	Descriptions map[string]string
}

// PromoPlan is a validated promo code; its ID is assigned when written.
type PromoPlan struct {
	Promo   *store.Promo
	Preview Preview
}

// PlanCreatePromo validates req. existing is the promo already using the
// code, if any.
func PlanCreatePromo(req PromoRequest, existing *store.Promo) (*PromoPlan, error) {
	code := strings.TrimSpace(req.Code)
	if utf8.RuneCountInString(code) < 2 {
		return nil, rejectf("a promo code needs at least 2 characters")
	}
	if existing != nil {
		return nil, rejectf("promo code %q already exists", code)
	}
	if req.PercentPromo <= 0 || req.PercentPromo > 1 {
		return nil, rejectf("discount %v must be a decimal in (0, 1]", req.PercentPromo)
	}
	if req.Phase < 0 || req.Phase > store.PhaseFundedUnlimited {
		return nil, rejectf("phase %d is not between 0 and %d", int(req.Phase), int(store.PhaseFundedUnlimited))
	}

	promo := &store.Promo{
		Code:         code,
		PercentPromo: req.PercentPromo,
		Unlimited:    req.Unlimited,
		Global:       req.Global,
		Phase:        req.Phase,
		StripeID:     sql.NullString{String: strings.TrimSpace(req.StripeID), Valid: strings.TrimSpace(req.StripeID) != ""},
		UserID:       req.UserID,
		ChallengeID:  req.ChallengeID,
		Descriptions: map[string]string{},
	}
	expires := "none"
	if req.ExpiresAt != nil {
		promo.ExpiresAt = sql.NullTime{Time: *req.ExpiresAt, Valid: true}
		expires = req.ExpiresAt.Format(time.DateOnly)
	}
	for lang, text := range req.Descriptions {
		if !slices.Contains(store.PromoLanguages, lang) {
			return nil, rejectf("descriptions are not stored for language %q", lang)
		}
		if text = strings.TrimSpace(text); text != "" {
			promo.Descriptions[lang] = text
		}
	}

	return &PromoPlan{
		Promo: promo,
		Preview: Preview{
			Title: "Create promo code",
			Fields: []Field{
				{"Code", code},
				{"Discount", percent(req.PercentPromo * 100)},
				{"Global", yesNo(req.Global)},
				{"Unlimited", yesNo(req.Unlimited)},
				{"Challenge", nullUUIDOr(req.ChallengeID, "all")},
				{"User", nullUUIDOr(req.UserID, "all")},
				{"Phase", strconv.Itoa(int(req.Phase))},
				{"Expires", expires},
				{"Stripe ID", orNA(promo.StripeID)},
				{"Description FR", descriptionOrNA(promo.Descriptions, "fr")},
				{"Description EN", descriptionOrNA(promo.Descriptions, "en")},
			},
			Description: fmt.Sprintf("Create promo code %q", code),
		},
	}, nil
}

// OptionPlan is a validated addition or removal of one account option.
type OptionPlan struct {
	Account *store.TradingAccount
	Option  store.Option
	Add     bool
	Preview Preview
}

// PlanOptionChange checks optionID against the catalog and against the
// options the account currently has.
func PlanOptionChange(account *store.TradingAccount, current, catalog []store.Option, optionID uuid.UUID, add bool) (*OptionPlan, error) {
	i := slices.IndexFunc(catalog, func(o store.Option) bool { return o.ID == optionID })
	if i < 0 {
		return nil, rejectf("option %s not found", optionID)
	}
	option := catalog[i]
	has := slices.ContainsFunc(current, func(o store.Option) bool { return o.ID == optionID })

	var title, description string
	switch {
	case add && has:
		return nil, rejectf("option %q is already on cTrader account %s", option.Name, ctrader(account))
	case !add && !has:
		return nil, rejectf("option %q is not on cTrader account %s", option.Name, ctrader(account))
	case add:
		title = "Add option"
		description = fmt.Sprintf("Add option %q to cTrader account %s", option.Name, ctrader(account))
	default:
		title = "Remove option"
		description = fmt.Sprintf("Remove option %q from cTrader account %s", option.Name, ctrader(account))
	}

	names := make([]string, 0, len(current))
	for _, o := range current {
		names = append(names, o.Name)
	}
	return &OptionPlan{
		Account: account,
		Option:  option,
		Add:     add,
		Preview: Preview{
			Title: title,
			Fields: []Field{
				{"cTrader ID", ctrader(account)},
				{"Option", option.Name},
				{"Majoration", percent(option.MajorationPercent)},
				{"Current options", listOrNone(names)},
			},
			Description: description,
		},
	}, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
