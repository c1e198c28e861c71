// Package console is the interactive operator front end: environment
// selection, session banner, the actions menu and the rendering of previews,
// recaps and errors.
package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"supportconsole/internal/config"
	"supportconsole/internal/logger"
	"supportconsole/internal/observability"
	"supportconsole/internal/store"
	"supportconsole/internal/workflow"
)

// ProductionPhrase must be typed to attach to production.
const ProductionPhrase = "PRODUCTION"

// errAborted ends an action when the operator leaves a required prompt empty.
var errAborted = errors.New("action aborted")

// Connection is an attached environment: a database session and a job runner
// for the environment's namespace.
type Connection struct {
	Repo      store.Repository
	Runner    workflow.JobRunner
	Namespace string
	Database  string
	Tables    int

	// Close releases the session; it is called once when the operator leaves.
	Close func()
}

// Connector attaches to env on behalf of operator.
type Connector func(ctx context.Context, env config.Environment, operator string) (*Connection, error)

// Shell is the interactive console loop.
type Shell struct {
	cfg     *config.Config
	asker   workflow.Asker
	out     *Renderer
	connect Connector

	logger  *slog.Logger
	metrics *observability.Instruments
}

// ShellOption customizes a Shell.
type ShellOption func(*Shell)

func WithLogger(l *slog.Logger) ShellOption {
	return func(s *Shell) { s.logger = l }
}

func WithMetrics(inst *observability.Instruments) ShellOption {
	return func(s *Shell) { s.metrics = inst }
}

func NewShell(cfg *config.Config, asker workflow.Asker, out *Renderer, connect Connector, opts ...ShellOption) *Shell {
	s := &Shell{
		cfg:     cfg,
		asker:   asker,
		out:     out,
		connect: connect,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops over environment selection and sessions until the operator quits.
// Interrupts and end of input end the loop without error.
func (s *Shell) Run(ctx context.Context) error {
	err := s.run(ctx)
	if errors.Is(err, ErrQuit) || errors.Is(err, context.Canceled) {
		s.out.Info("Goodbye.")
		return nil
	}
	return err
}

func (s *Shell) run(ctx context.Context) error {
	for {
		env, ok, err := s.selectEnvironment(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrQuit
		}

		operator, err := s.askOperator(ctx)
		if err != nil {
			return err
		}

		s.out.Info("Opening tunnel and database session...")
		conn, err := s.connect(ctx, env, operator)
		if err != nil {
			s.out.Error(err)
			continue
		}

		err = s.attach(ctx, env, operator, conn)
		if conn.Close != nil {
			conn.Close()
		}
		if err != nil {
			return err
		}
	}
}

// selectEnvironment returns ok=false when the operator picks Quit.
func (s *Shell) selectEnvironment(ctx context.Context) (config.Environment, bool, error) {
	items := []string{"Staging", "Production", "Quit"}
	for {
		i, err := s.choose(ctx, "Environment", items)
		if err != nil {
			return "", false, err
		}
		switch i {
		case 0:
			return config.Staging, true, nil
		case 1:
			s.out.ProductionWarning()
			answer, err := s.ask(ctx, `Type "`+ProductionPhrase+`" to connect to production:`)
			if err != nil {
				return "", false, err
			}
			if answer == ProductionPhrase {
				return config.Production, true, nil
			}
			s.out.Info("Production access cancelled.")
		default:
			return "", false, nil
		}
	}
}

func (s *Shell) askOperator(ctx context.Context) (string, error) {
	prompt := "Operator name:"
	if s.cfg.Operator != "" {
		prompt = "Operator name [" + s.cfg.Operator + "]:"
	}
	for {
		name, err := s.ask(ctx, prompt)
		if err != nil {
			return "", err
		}
		if name == "" {
			name = s.cfg.Operator
		}
		if name != "" {
			return name, nil
		}
		s.out.Warn("The operator name is recorded in the audit log and is required.")
	}
}

// attached is one open session with its orchestrator.
type attached struct {
	*Shell
	env  config.Environment
	conn *Connection
	orch *workflow.Orchestrator
}

// action is a menu entry; run is a method expression on *attached.
type action struct {
	label string
	run   func(a *attached, ctx context.Context) (*workflow.Outcome, error)
}

var actions = []action{
	{"Create trading account", (*attached).createAccount},
	{"Fix profit target", (*attached).fixProfitTarget},
	{"Activate funded", (*attached).activateFunded},
	{"Bypass activation fees", (*attached).bypassFees},
	{"Force phase transition", (*attached).forcePhase},
	{"Deactivate account", (*attached).deactivate},
	{"Reactivate account", (*attached).reactivate},
	{"Update cTrader ID", (*attached).updateCtraderID},
	{"Recent audit log", (*attached).recentAudit},
	{"Manage payouts", (*attached).managePayouts},
	{"Create promo code", (*attached).createPromo},
	{"Manage account options", (*attached).manageOptions},
	{"Search users", (*attached).searchUsers},
	{"User report", (*attached).userReport},
	{"Trading account report", (*attached).accountReport},
}

// attach runs the actions menu until the operator goes back. Action errors
// are rendered and the loop continues.
func (s *Shell) attach(ctx context.Context, env config.Environment, operator string, conn *Connection) error {
	a := &attached{
		Shell: s,
		env:   env,
		conn:  conn,
		orch: workflow.New(conn.Repo, conn.Runner, &workflow.Gate{
			Asker:             s.asker,
			Show:              s.out.Preview,
			ProductionWarning: s.out.ProductionWarning,
		}, workflow.Settings{
			Environment: env,
			Operator:    operator,
			Namespace:   conn.Namespace,
			Image:       s.cfg.Jobs.Image,
		}, workflow.WithLogger(s.logger), workflow.WithMetrics(s.metrics)),
	}

	s.out.Banner(env, operator, conn.Database, conn.Tables)

	items := make([]string, 0, len(actions)+1)
	for _, act := range actions {
		items = append(items, act.label)
	}
	items = append(items, "Back to environment selection")

	for {
		i, err := s.choose(ctx, "Actions ("+strings.ToUpper(string(env))+")", items)
		if err != nil {
			return err
		}
		if i == len(actions) {
			return nil
		}
		if err := a.perform(ctx, actions[i]); err != nil {
			return err
		}
	}
}

// perform runs one action. Only a cancelled context escapes; an interrupt
// inside an action returns to the menu.
func (a *attached) perform(ctx context.Context, act action) error {
	out, err := act.run(a, ctx)
	if out != nil {
		a.out.Outcome(out)
	}
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ErrQuit), errors.Is(err, errAborted):
		a.out.Info("Back to menu.")
	default:
		a.logger.Warn("action failed", "action", act.label, "environment", string(a.env), "error", err)
		a.out.Error(err)
	}
	return nil
}
