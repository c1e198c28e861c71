package console

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"supportconsole/internal/config"
	"supportconsole/internal/jobrunner"
	"supportconsole/internal/session"
	"supportconsole/internal/store"
	"supportconsole/internal/workflow"

	"github.com/google/uuid"
)

// failedLogLines bounds the job output echoed after a failed step.
const failedLogLines = 20

// Renderer writes operator-facing output. Logs never go through it.
type Renderer struct {
	w io.Writer
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *Renderer) println(s string) {
	fmt.Fprintln(r.w, s)
}

func badge(env config.Environment) string {
	if env.IsProduction() {
		return styleProduction.Render(strings.ToUpper(string(env)))
	}
	return styleStaging.Render(strings.ToUpper(string(env)))
}

func renderFields(fields []workflow.Field) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, styleLabel.Render(f.Label)+styleValue.Render(f.Value))
	}
	return strings.Join(lines, "\n")
}

// Banner is shown once a session is open.
func (r *Renderer) Banner(env config.Environment, operator, database string, tables int) {
	body := styleTitle.Render("WeGetFunded support console") + "  " + badge(env) + "\n\n" +
		renderFields([]workflow.Field{
			{Label: "Operator", Value: operator},
			{Label: "Database", Value: database},
			{Label: "Tables", Value: fmt.Sprint(tables)},
		})
	r.println(stylePanel.Render(body))
}

// Menu prints numbered items under title.
func (r *Renderer) Menu(title string, items []string) {
	r.println("")
	r.println(styleTitle.Render(title))
	for i, item := range items {
		r.printf("  %s %s\n", styleKey.Render(fmt.Sprintf("%2d.", i+1)), item)
	}
}

// Preview renders a pending change before confirmation.
func (r *Renderer) Preview(env config.Environment, p workflow.Preview) {
	body := styleTitle.Render(p.Title) + "  " + badge(env) + "\n\n" + renderFields(p.Fields)
	if p.Description != "" {
		body += "\n\n" + styleHint.Render(p.Description)
	}
	if env.IsProduction() {
		r.println(styleDangerPanel.Render(body))
		return
	}
	r.println(stylePanel.Render(body))
}

// ProductionWarning precedes the second confirmation in production.
func (r *Renderer) ProductionWarning() {
	r.println(styleErr.Render("!! PRODUCTION: this change affects real traders and cannot be undone from here."))
}

// Outcome renders the recap of a finished workflow.
func (r *Renderer) Outcome(out *workflow.Outcome) {
	head := styleOK.Render("OK") + " " + out.Summary
	if !out.Success {
		head = styleErr.Render("FAILED") + " " + out.Summary
	}
	body := head
	if len(out.Recap) > 0 {
		body += "\n\n" + renderFields(out.Recap)
	}
	r.println(stylePanel.Render(body))

	for _, job := range out.Jobs {
		r.Job(job.Step, job.Result)
	}
	for _, w := range out.Warnings {
		r.Warn(w)
	}
}

// Job renders one remote step, echoing the tail of its output on failure.
func (r *Renderer) Job(step string, res jobrunner.Result) {
	status := styleOK.Render("ok")
	if !res.Success {
		status = styleErr.Render("failed")
	}
	r.printf("  %s %s (%s, %ds)\n", status, step, res.JobName, res.DurationSeconds())
	if res.Success {
		return
	}
	if res.FailureReason != "" {
		r.printf("    %s\n", res.FailureReason)
	}
	for _, line := range tail(res.Logs, failedLogLines) {
		r.printf("    %s\n", styleHint.Render(line))
	}
}

func tail(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func (r *Renderer) Info(msg string) {
	r.println(styleHint.Render(msg))
}

func (r *Renderer) Warn(msg string) {
	r.println(styleWarn.Render("! ") + msg)
}

// Error explains err in operator terms.
func (r *Renderer) Error(err error) {
	var (
		verr    *workflow.ValidationError
		comp    *workflow.CompensationError
		sessErr *session.Error
		missing *config.MissingKeysError
	)
	switch {
	case errors.Is(err, workflow.ErrNotConfirmed):
		r.Info("Action cancelled. Nothing was changed.")
	case errors.As(err, &verr):
		r.Warn("Not possible: " + verr.Message)
	case errors.As(err, &comp):
		fields := []workflow.Field{{Label: "Account to restore", Value: comp.AccountID.String()}}
		if comp.OrderID != uuid.Nil {
			fields = []workflow.Field{
				{Label: "Order to clean up", Value: comp.OrderID.String()},
				{Label: "Payment to clean up", Value: comp.PaymentID.String()},
			}
		}
		r.println(styleDangerPanel.Render(
			styleErr.Render("ROLLBACK FAILED") + "\n\n" + err.Error() + "\n\n" + renderFields(fields)))
	case errors.As(err, &sessErr):
		r.println(styleErr.Render(fmt.Sprintf("Connection to %s failed (%s)", sessErr.Environment, sessErr.Kind)))
		if sessErr.Hint != "" {
			r.Info(sessErr.Hint)
		}
		if sessErr.Err != nil {
			r.Info(sessErr.Err.Error())
		}
	case errors.As(err, &missing):
		r.println(styleErr.Render("Configuration incomplete. Missing keys:"))
		for _, k := range missing.Keys {
			r.printf("  - %s\n", k)
		}
	default:
		r.println(styleErr.Render("Error: ") + err.Error())
	}
}

// Account summarizes a trading account; challenge may be nil.
func (r *Renderer) Account(a *store.TradingAccount, c *store.Challenge) {
	challenge := "N/A"
	if c != nil {
		challenge = fmt.Sprintf("%s (%s)", c.Name, c.Type)
	}
	ctrader := "-"
	if a.CtraderAccount.Valid {
		ctrader = fmt.Sprint(a.CtraderAccount.Int64)
	}
	reason := "-"
	if a.Reason.Valid && a.Reason.String != "" {
		reason = a.Reason.String
	}
	target := "-"
	if a.ProfitTargetPercent.Valid {
		target = fmt.Sprintf("%.2f%%", a.ProfitTargetPercent.Float64*100)
	}
	r.println(stylePanel.Render(renderFields([]workflow.Field{
		{Label: "Account UUID", Value: a.ID.String()},
		{Label: "cTrader ID", Value: ctrader},
		{Label: "Server", Value: a.CtraderServer.String},
		{Label: "Challenge", Value: challenge},
		{Label: "Phase", Value: fmt.Sprintf("%s (%d)", a.Phase, int(a.Phase))},
		{Label: "Status", Value: a.Status()},
		{Label: "Reason", Value: reason},
		{Label: "Profit target", Value: target},
	})))
}

// AuditRecords prints audit rows newest first.
func (r *Renderer) AuditRecords(recs []store.AuditRecord) {
	if len(recs) == 0 {
		r.Info("No audit records.")
		return
	}
	w := tabwriter.NewWriter(r.w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tEXECUTED AT\tACTION\tTARGET\tOPERATOR\tENV\tDETAILS")
	for _, rec := range recs {
		target := rec.TargetTable
		if rec.TargetID.Valid {
			target += ":" + rec.TargetID.UUID.String()[:8]
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.ExecutedAt.Format(time.DateTime), rec.ActionType, target,
			rec.Operator, rec.Environment, summarizeDetails(rec.Details))
	}
	w.Flush()
}

// summarizeDetails renders details as sorted key=value pairs, truncated for the table view.
func summarizeDetails(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	s := strings.Join(parts, " ")
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}
