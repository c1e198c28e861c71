package workflow

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

func money(v float64) string {
	return fmt.Sprintf("%.2f EUR", v)
}

func moneyIn(v float64, currency string) string {
	if currency == "" {
		currency = "EUR"
	}
	return fmt.Sprintf("%.2f %s", v, strings.ToUpper(currency))
}

// fraction formats 0.08 as "8.00%".
func fraction(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", v.Float64*100)
}

// percent formats a whole percentage such as a challenge rule value.
func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func ctrader(account *store.TradingAccount) string {
	if !account.CtraderAccount.Valid {
		return "-"
	}
	return fmt.Sprint(account.CtraderAccount.Int64)
}

func phaseLabel(p store.Phase) string {
	return fmt.Sprintf("%s (%d)", p, int(p))
}

func challengeLabel(c *store.Challenge) string {
	if c == nil {
		return "N/A"
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Type)
}

// phaseDuration renders a rule duration such as "720h0m0s" as "30 days".
func phaseDuration(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return "N/A"
	}
	d, err := time.ParseDuration(s.String)
	if err != nil {
		return s.String
	}
	hours := int(d / time.Hour)
	if days := hours / 24; days > 0 {
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%d hours", hours)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNA(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return "N/A"
	}
	return s.String
}

func nullUUIDOr(id uuid.NullUUID, fallback string) string {
	if !id.Valid {
		return fallback
	}
	return id.UUID.String()
}

func descriptionOrNA(descriptions map[string]string, lang string) string {
	if d, ok := descriptions[lang]; ok {
		return d
	}
	return "N/A"
}
