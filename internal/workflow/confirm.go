package workflow

import (
	"context"
	"errors"
	"strings"

	"supportconsole/internal/config"
)

// ErrNotConfirmed is returned when the operator declines an action.
// Nothing has been written and no job has been submitted.
var ErrNotConfirmed = errors.New("action cancelled")

// Field is one labelled line of a preview or recap.
type Field struct {
	Label string
	Value string
}

// Preview describes a pending change before the operator confirms it.
type Preview struct {
	Title  string
	Fields []Field

	// Description is the one-line summary the operator confirms.
	Description string
}

// Confirmer obtains the operator's explicit approval of a preview.
type Confirmer interface {
	Confirm(ctx context.Context, env config.Environment, p Preview) (bool, error)
}

// Asker reads one line of free text from the operator.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Confirmation phrases. Input must match exactly after trimming spaces.
const (
	ConfirmPhrase           = "OUI"
	ProductionConfirmPhrase = "CONFIRMER"
)

// Gate is the Confirmer used by the console. Every action requires
// ConfirmPhrase; production actions additionally require
// ProductionConfirmPhrase.
type Gate struct {
	Asker Asker

	// Show renders the preview before the first question; optional.
	Show func(env config.Environment, p Preview)

	// ProductionWarning is shown before the second question; optional.
	ProductionWarning func()
}

// Confirm implements Confirmer.
func (g *Gate) Confirm(ctx context.Context, env config.Environment, p Preview) (bool, error) {
	if g.Show != nil {
		g.Show(env, p)
	}

	answer, err := g.Asker.Ask(ctx, `Type "`+ConfirmPhrase+`" to confirm (or Enter to cancel):`)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(answer) != ConfirmPhrase {
		return false, nil
	}

	if !env.IsProduction() {
		return true, nil
	}

	if g.ProductionWarning != nil {
		g.ProductionWarning()
	}
	answer, err = g.Asker.Ask(ctx, `PRODUCTION double confirmation - type "`+ProductionConfirmPhrase+`":`)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(answer) == ProductionConfirmPhrase, nil
}

// FeeChoice is the operator's decision about the unlimited activation fee.
type FeeChoice int

const (
	// FeeCharge lets the backend send the trader a payment link.
	FeeCharge FeeChoice = iota
	// FeeBypass activates for free by processing the activation immediately.
	FeeBypass
)

func (f FeeChoice) String() string {
	if f == FeeBypass {
		return "bypass"
	}
	return "charge"
}

func (o *Orchestrator) confirm(ctx context.Context, p Preview) error {
	ok, err := o.confirmer.Confirm(ctx, o.env, p)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}
