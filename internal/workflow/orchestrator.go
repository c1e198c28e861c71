// Package workflow implements the multi-step support actions. Each action
// validates and previews the change (pure planning), asks for confirmation,
// then interleaves local transactions with remote jobs, compensating local
// writes when a remote step they depend on fails. Every terminal outcome
// is recorded in the audit log.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"supportconsole/internal/cluster"
	"supportconsole/internal/config"
	"supportconsole/internal/jobrunner"
	"supportconsole/internal/logger"
	"supportconsole/internal/observability"
	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// JobRunner executes one remote job to completion.
type JobRunner interface {
	Run(ctx context.Context, spec cluster.JobSpec) jobrunner.Result
}

// Audit action tags.
const (
	ActionCreateTradingAccount       = "CREATE_TRADING_ACCOUNT"
	ActionCreateTradingAccountFailed = "CREATE_TRADING_ACCOUNT_FAILED"
	ActionActivateFunded             = "ACTIVATE_FUNDED"
	ActionActivateFundedFailed       = "ACTIVATE_FUNDED_FAILED"
	ActionBypassActivationFees       = "BYPASS_ACTIVATION_FEES"
	ActionForcePhaseTransition       = "FORCE_PHASE_TRANSITION"
	ActionForcePhaseTransitionFailed = "FORCE_PHASE_TRANSITION_FAILED"
	ActionDeactivateAccount          = "DEACTIVATE_ACCOUNT"
	ActionReactivateAccount          = "REACTIVATE_ACCOUNT"
	ActionFixProfitTarget            = "FIX_PROFIT_TARGET"
	ActionUpdateCtraderID            = "UPDATE_CTRADER_ID"
	ActionPayoutStatusChange         = "PAYOUT_STATUS_CHANGE"
	ActionCreatePromo                = "CREATE_PROMO"
	ActionAddOption                  = "ADD_OPTION"
	ActionRemoveOption               = "REMOVE_OPTION"
)

// Audit target tables.
const (
	tableTradingAccount   = "trading_account"
	tableFundedActivation = "funded_activation"
	tablePayoutRequest    = "payout_request"
	tablePromo            = "promo"
	tableAccountOptions   = "trading_account_options"
)

// Settings bind an Orchestrator to one session.
type Settings struct {
	Environment config.Environment
	Operator    string
	Namespace   string
	Image       string
}

// Orchestrator runs workflows for one session. It is not safe for concurrent use.
type Orchestrator struct {
	repo      store.Repository
	runner    JobRunner
	confirmer Confirmer

	env       config.Environment
	operator  string
	namespace string
	image     string

	urls    URLResolver
	metrics *observability.Instruments
	logger  *slog.Logger
	newID   func() uuid.UUID
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithURLResolver replaces ServiceURL.
func WithURLResolver(r URLResolver) Option {
	return func(o *Orchestrator) { o.urls = r }
}

// WithMetrics records workflow outcomes on inst.
func WithMetrics(inst *observability.Instruments) Option {
	return func(o *Orchestrator) { o.metrics = inst }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithIDGenerator replaces uuid.New for generated payment and order identifiers.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// New creates an Orchestrator.
func New(repo store.Repository, runner JobRunner, confirmer Confirmer, s Settings, opts ...Option) *Orchestrator {
	if s.Image == "" {
		s.Image = config.DefaultJobImage
	}
	o := &Orchestrator{
		repo:      repo,
		runner:    runner,
		confirmer: confirmer,
		env:       s.Environment,
		operator:  s.Operator,
		namespace: s.Namespace,
		image:     s.Image,
		urls:      ServiceURL,
		logger:    logger.Discard(),
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// JobReport is one remote step of a workflow and its result.
type JobReport struct {
	Step   string
	Result jobrunner.Result
}

// Outcome is the terminal state of a workflow that got past confirmation.
type Outcome struct {
	Action  string
	Success bool

	// Summary is the one-line result shown first in the recap.
	Summary  string
	Recap    []Field
	Jobs     []JobReport
	Warnings []string
}

func (out *Outcome) warn(format string, args ...any) {
	out.Warnings = append(out.Warnings, fmt.Sprintf(format, args...))
}

func (out *Outcome) job(step string, res jobrunner.Result) {
	out.Jobs = append(out.Jobs, JobReport{Step: step, Result: res})
}

// begin tags ctx with a fresh attempt id for log correlation.
func (o *Orchestrator) begin(ctx context.Context, action string) (context.Context, *slog.Logger) {
	ctx = logger.WithAttemptID(ctx, uuid.NewString())
	return ctx, logger.FromContext(ctx, o.logger).With("workflow", action, "environment", string(o.env))
}

func (o *Orchestrator) record(ctx context.Context, out *Outcome) {
	result := "succeeded"
	if !out.Success {
		result = "failed"
	}
	o.metrics.RecordWorkflow(ctx, out.Action, string(o.env), result)
}

// audit appends one audit row, inside tx when tx is non-nil.
func (o *Orchestrator) audit(ctx context.Context, tx store.DBTransaction, action, table string, target uuid.NullUUID, details map[string]any) error {
	rec := &store.AuditRecord{
		ActionType:  action,
		TargetTable: table,
		TargetID:    target,
		Details:     details,
		Operator:    o.operator,
		Environment: string(o.env),
	}
	if err := o.repo.InsertAuditRecord(ctx, tx, rec); err != nil {
		return fmt.Errorf("failed to write audit record %s: %w", action, err)
	}
	return nil
}

func someID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}

// loadAccount fetches an account, turning a miss into a validation error.
func (o *Orchestrator) loadAccount(ctx context.Context, id uuid.UUID) (*store.TradingAccount, error) {
	account, err := o.repo.GetTradingAccountByUUID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rejectf("trading account %s not found", id)
	}
	return account, err
}

func (o *Orchestrator) loadChallenge(ctx context.Context, id uuid.UUID) (*store.Challenge, error) {
	challenge, err := o.repo.GetChallengeByUUID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rejectf("challenge %s not found", id)
	}
	return challenge, err
}

func failureReason(res jobrunner.Result) string {
	if res.FailureReason != "" {
		return res.FailureReason
	}
	return "Job failed"
}
