package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// choose shows items under title until the operator picks one, and returns
// its zero-based index.
func (s *Shell) choose(ctx context.Context, title string, items []string) (int, error) {
	for {
		s.out.Menu(title, items)
		answer, err := s.asker.Ask(ctx, "Choice:")
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err == nil && n >= 1 && n <= len(items) {
			return n - 1, nil
		}
		s.out.Warn(fmt.Sprintf("Enter a number between 1 and %d.", len(items)))
	}
}

func (s *Shell) ask(ctx context.Context, prompt string) (string, error) {
	answer, err := s.asker.Ask(ctx, prompt)
	return strings.TrimSpace(answer), err
}

// askFloat reads a decimal. An empty answer returns nil when optional is set
// and aborts the action otherwise.
func (s *Shell) askFloat(ctx context.Context, prompt string, optional bool) (*float64, error) {
	for {
		answer, err := s.ask(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if answer == "" {
			if optional {
				return nil, nil
			}
			return nil, errAborted
		}
		v, err := strconv.ParseFloat(strings.Replace(answer, ",", ".", 1), 64)
		if err == nil {
			return &v, nil
		}
		s.out.Warn(fmt.Sprintf("%q is not a decimal number.", answer))
	}
}

func (s *Shell) askInt64(ctx context.Context, prompt string) (int64, error) {
	for {
		answer, err := s.ask(ctx, prompt)
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return 0, errAborted
		}
		v, err := strconv.ParseInt(answer, 10, 64)
		if err == nil {
			return v, nil
		}
		s.out.Warn(fmt.Sprintf("%q is not a whole number.", answer))
	}
}

// parseSelection turns "1, 3" into zero-based indexes below n. Duplicates are dropped.
func parseSelection(answer string, n int) ([]int, error) {
	var picked []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil || i < 1 || i > n {
			return nil, fmt.Errorf("%q is not between 1 and %d", part, n)
		}
		if !seen[i-1] {
			seen[i-1] = true
			picked = append(picked, i-1)
		}
	}
	return picked, nil
}
