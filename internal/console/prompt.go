package console

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
)

// ErrQuit is returned by prompts when the operator pressed Ctrl-C or Ctrl-D.
var ErrQuit = errors.New("operator quit")

// Prompter reads operator input line by line.
type Prompter struct {
	rl *readline.Instance
}

// NewPrompter opens a readline prompt on the terminal. History is kept in the
// temp directory across runs.
func NewPrompter() (*Prompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".wgfctl_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &Prompter{rl: rl}, nil
}

// Ask shows prompt and returns the next line. Interrupts and end of input
// become ErrQuit.
func (p *Prompter) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.rl.SetPrompt(styleKey.Render("?") + " " + prompt + " ")
	line, err := p.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrQuit
	}
	return line, err
}

// Stdout is the writer that keeps output from clobbering the prompt line.
func (p *Prompter) Stdout() io.Writer {
	return p.rl.Stdout()
}

func (p *Prompter) Close() error {
	return p.rl.Close()
}
