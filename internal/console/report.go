package console

import (
	"database/sql"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"supportconsole/internal/store"
	"supportconsole/internal/workflow"
)

// Section starts a block of a read-only report.
func (r *Renderer) Section(title string) {
	r.println("")
	r.println(styleTitle.Render("── " + title))
}

// Fields prints label/value pairs in a panel.
func (r *Renderer) Fields(fields []workflow.Field) {
	r.println(stylePanel.Render(renderFields(fields)))
}

func (r *Renderer) table(header string, rows [][]any) {
	w := tabwriter.NewWriter(r.w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, header)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, cell)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func (r *Renderer) Users(users []store.User) {
	if len(users) == 0 {
		r.Info("No user found.")
		return
	}
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, []any{u.ID, u.Email, u.FullName(), nullInt(u.CTID), yesNo(u.Valid)})
	}
	r.table("UUID\tEMAIL\tNAME\tCTID\tVALID", rows)
}

func (r *Renderer) User(u *store.User) {
	r.Fields([]workflow.Field{
		{Label: "UUID", Value: u.ID.String()},
		{Label: "Email", Value: u.Email},
		{Label: "CTID", Value: nullInt(u.CTID)},
		{Label: "Name", Value: u.FullName()},
		{Label: "Country", Value: nullInt(u.Country)},
		{Label: "Language", Value: nullString(u.Language)},
		{Label: "Active", Value: yesNo(u.Valid)},
	})
}

func (r *Renderer) Orders(orders []store.OrderSummary) {
	if len(orders) == 0 {
		r.Info("No orders.")
		return
	}
	rows := make([][]any, 0, len(orders))
	for _, o := range orders {
		price := "N/A"
		if o.PaymentPrice.Valid {
			price = fmt.Sprintf("%.2f %s", o.PaymentPrice.Float64, o.PaymentCurrency.String)
		}
		rows = append(rows, []any{
			o.ID.String()[:8] + "...", nullString(o.ChallengeName), nullString(o.ChallengeType),
			nullString(o.PaymentMethod), price, nullDate(o.PaymentDate),
		})
	}
	r.table("ORDER\tCHALLENGE\tTYPE\tPAYMENT\tPRICE\tDATE", rows)
}

// TradingAccounts lists accounts, for a user or for the phases of one order.
func (r *Renderer) TradingAccounts(accounts []store.TradingAccount) {
	if len(accounts) == 0 {
		r.Info("No trading accounts.")
		return
	}
	rows := make([][]any, 0, len(accounts))
	for _, a := range accounts {
		target := "-"
		if a.ProfitTargetPercent.Valid {
			target = fmt.Sprintf("%.2f%%", a.ProfitTargetPercent.Float64*100)
		}
		rows = append(rows, []any{
			nullInt(a.CtraderAccount), fmt.Sprintf("%s (%d)", a.Phase, int(a.Phase)), a.Status(),
			nullString(a.CtraderServer), target, nullDate(a.PhaseBegin), nullString(a.Reason),
		})
	}
	r.table("CTRADER\tPHASE\tSTATUS\tSERVER\tTARGET\tBEGIN\tREASON", rows)
}

func (r *Renderer) Payouts(payouts []store.Payout) {
	if len(payouts) == 0 {
		r.Info("No payout requests.")
		return
	}
	rows := make([][]any, 0, len(payouts))
	for _, p := range payouts {
		rows = append(rows, []any{
			p.Method, fmt.Sprintf("%.2f EUR", p.Amount), fmt.Sprintf("%.2f EUR", p.TotalProfit),
			p.ProfitSplit, p.Status, p.CreatedAt.Format(time.DateOnly),
		})
	}
	r.table("METHOD\tAMOUNT\tPROFIT\tSPLIT\tSTATUS\tDATE", rows)
}

func (r *Renderer) Options(options []store.Option) {
	if len(options) == 0 {
		r.Info("No options on this account.")
		return
	}
	rows := make([][]any, 0, len(options))
	for _, o := range options {
		rows = append(rows, []any{o.Name, fmt.Sprintf("+%.0f%%", o.MajorationPercent)})
	}
	r.table("OPTION\tMAJORATION", rows)
}

// Rule prints the challenge rule of one phase. Drawdowns and targets are
// whole percentages.
func (r *Renderer) Rule(rule store.ChallengeRule) {
	total := "unlimited"
	if rule.MaxTotalDrawdownPercent.Valid {
		total = fmt.Sprintf("%.2f%%", rule.MaxTotalDrawdownPercent.Float64)
	}
	daily := "N/A"
	if rule.MaxDailyDrawdownPercent.Valid {
		daily = fmt.Sprintf("%.2f%%", rule.MaxDailyDrawdownPercent.Float64)
	}
	duration := "unlimited"
	if rule.PhaseDuration.Valid && rule.PhaseDuration.String != "" {
		duration = rule.PhaseDuration.String
	}
	r.Fields([]workflow.Field{
		{Label: "Profit target", Value: fmt.Sprintf("%.2f%%", rule.ProfitTargetPercent)},
		{Label: "Max daily drawdown", Value: daily},
		{Label: "Max total drawdown", Value: total},
		{Label: "Min trading days", Value: strconv.Itoa(rule.MinTradingDays)},
		{Label: "Phase duration", Value: duration},
	})
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatInt(v.Int64, 10)
}

func nullString(v sql.NullString) string {
	if !v.Valid || v.String == "" {
		return "-"
	}
	return v.String
}

func nullDate(v sql.NullTime) string {
	if !v.Valid {
		return "-"
	}
	return v.Time.Format(time.DateOnly)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
