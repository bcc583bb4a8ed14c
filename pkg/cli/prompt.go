// Package cli implements the interactive startup questionnaire. Every
// prompt re-asks on invalid input; answers come from an io.Reader so the
// flow is testable.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter creates a Prompter.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

func (p *Prompter) ask(question string) (string, error) {
	fmt.Fprintf(p.out, "%s ", question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Confirm asks a yes/no question. Only y/yes (any case) counts as yes.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.ask(question + " [y/n]:")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Fraction asks for a percentage and returns it as a fraction of 1.
// Values must lie in (0, 100].
func (p *Prompter) Fraction(question string) (float64, error) {
	for {
		answer, err := p.ask(question)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(answer, 64)
		if err != nil || v <= 0 || v > 100 {
			fmt.Fprintln(p.out, "Enter a percentage between 0 and 100.")
			continue
		}
		return v / 100, nil
	}
}

// Index asks for an integer in [0, max).
func (p *Prompter) Index(question string, max int) (int, error) {
	for {
		answer, err := p.ask(question)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(answer)
		if err != nil || v < 0 || v >= max {
			fmt.Fprintf(p.out, "Enter a number between 0 and %d.\n", max-1)
			continue
		}
		return v, nil
	}
}
