package workflow

import (
	"fmt"

	"supportconsole/internal/store"
)

// ServerClass is the cTrader server an account lives on after a transition.
type ServerClass string

const (
	ServerDemo ServerClass = "demo"
	ServerLive ServerClass = "live"
)

// Transition is the next step of an account forced out of its current phase.
type Transition struct {
	From   store.Phase
	To     store.Phase
	Server ServerClass
}

// Funded reports whether the transition ends in a funded phase, which goes
// through the watcher's simulation instead of the account manager.
func (t Transition) Funded() bool {
	return t.To.IsFunded()
}

var transitions = map[store.ChallengeType]map[store.Phase]Transition{
	store.ChallengeStandard: {
		store.PhaseStandardOne: {From: store.PhaseStandardOne, To: store.PhaseStandardTwo, Server: ServerDemo},
		store.PhaseStandardTwo: {From: store.PhaseStandardTwo, To: store.PhaseFundedStandard, Server: ServerLive},
	},
	store.ChallengeUnlimited: {
		store.PhaseUnlimited: {From: store.PhaseUnlimited, To: store.PhaseFundedUnlimited, Server: ServerLive},
	},
}

// NextTransition looks up the supported transition out of phase for a
// challenge type.
func NextTransition(ct store.ChallengeType, phase store.Phase) (Transition, error) {
	byPhase, ok := transitions[ct]
	if !ok {
		return Transition{}, rejectf("no transition is available for challenge type %q", ct)
	}
	t, ok := byPhase[phase]
	if !ok {
		return Transition{}, rejectf("no transition is available from phase %d for a %s challenge", int(phase), ct)
	}
	return t, nil
}

var fundedEntryPhase = map[store.ChallengeType]store.Phase{
	store.ChallengeStandard:  store.PhaseStandardTwo,
	store.ChallengeUnlimited: store.PhaseUnlimited,
}

// FundedTarget validates that an active account may be manually moved to
// funded and returns the funded phase it will reach.
func FundedTarget(account *store.TradingAccount, challenge *store.Challenge) (store.Phase, error) {
	if !account.IsActive() {
		return 0, rejectf("this account is not active (status: %s)", account.Status())
	}

	entry, ok := fundedEntryPhase[challenge.Type]
	if !ok {
		return 0, rejectf("challenge type %q is not eligible for a funded activation through this console", challenge.Type)
	}

	if account.Phase != entry {
		if challenge.Type == store.ChallengeStandard && account.Phase == store.PhaseStandardOne {
			return 0, rejectf("this account is in Phase 1 (standard); the move to Phase 2 is handled automatically by the watcher once Phase 1 is passed")
		}
		return 0, rejectf("this account is in phase %d, not phase %d; funded activation is impossible", int(account.Phase), int(entry))
	}

	if challenge.Type == store.ChallengeUnlimited {
		return store.PhaseFundedUnlimited, nil
	}
	return store.PhaseFundedStandard, nil
}

// RequiresActivationFee reports whether going funded on this challenge type
// costs an activation fee the operator may bypass.
func RequiresActivationFee(ct store.ChallengeType) bool {
	return ct == store.ChallengeUnlimited
}

// ActivationFee is the amount charged to unlimited accounts going funded.
const ActivationFee = "149.90 EUR"

// InitialPhase is the phase a new account of type ct starts in.
func InitialPhase(ct store.ChallengeType) store.Phase {
	switch ct {
	case store.ChallengeUnlimited, store.ChallengeInstantFunded:
		return store.PhaseUnlimited
	default:
		return store.PhaseStandardOne
	}
}

// rulesPhase is the challenge_rules phase describing a new account: instant
// funded accounts start at phase 0 but their rules are stored under phase 3.
func rulesPhase(ct store.ChallengeType) store.Phase {
	if ct == store.ChallengeInstantFunded {
		return store.PhaseInstantFundedRules
	}
	return InitialPhase(ct)
}

// CheckDeactivatable rejects accounts that already have a final status.
func CheckDeactivatable(account *store.TradingAccount) error {
	if !account.IsActive() {
		return rejectf("this account is not active (status: %s, reason: %s)", account.Status(), reasonOrDash(account))
	}
	return nil
}

// CheckReactivatable accepts only accounts that succeeded or failed.
func CheckReactivatable(account *store.TradingAccount) error {
	if account.IsActive() {
		return rejectf("this account is already active")
	}
	if s := account.Success.Int64; s != 0 && s != 1 {
		return rejectf("this account has success=%d; only accounts with success 0 or 1 can be reactivated", s)
	}
	return nil
}

// ValidProfitTarget checks a profit target expressed as a fraction (0.08 is 8%).
func ValidProfitTarget(v float64) error {
	if v < 0 || v > 1 {
		return rejectf("profit target must be a decimal between 0 and 1, got %v", v)
	}
	return nil
}

func reasonOrDash(account *store.TradingAccount) string {
	if account.Reason.Valid && account.Reason.String != "" {
		return account.Reason.String
	}
	return "-"
}

// ValidationError is a precondition failure detected before any write.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func rejectf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
