// Package cli holds the terminal helpers used by the command line drivers.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/manifoldco/promptui"
)

// ErrInvalidCode is returned by ValidateCode.
var ErrInvalidCode = errors.New("invalid code")

// Prompter asks questions on a terminal.
type Prompter struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// NewPrompter returns a prompter on the process's standard streams.
func NewPrompter() *Prompter {
	return &Prompter{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
}

// Choose lets the user pick one of items and returns its index.
func (p *Prompter) Choose(label string, items []string) (int, error) {
	sel := &promptui.Select{
		Label:  label,
		Items:  items,
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	idx, _, err := sel.Run()

	return idx, err
}

// Code asks for a code of exactly length digits. An interrupted prompt returns
// promptui.ErrInterrupt.
func (p *Prompter) Code(label string, length int) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: ValidateCode(length),
		Stdin:    p.Stdin,
		Stdout:   p.Stdout,
	}

	return prompt.Run()
}

// Confirm asks a yes/no question. Answering no is not an error.
func (p *Prompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// ValidateCode returns a validator accepting exactly length decimal digits.
func ValidateCode(length int) func(string) error {
	return func(s string) error {
		if n := utf8.RuneCountInString(s); n != length {
			return fmt.Errorf("%w: want %d digits, got %d", ErrInvalidCode, length, n)
		}

		for _, r := range s {
			if r > unicode.MaxASCII || !unicode.IsDigit(r) {
				return fmt.Errorf("%w: %q is not a digit", ErrInvalidCode, r)
			}
		}

		return nil
	}
}
