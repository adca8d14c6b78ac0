package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// YesOrNo asks a yes/no question; empty input counts as no.
func YesOrNo(question string) (bool, error) {
	answer, err := Prompt(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes"), nil
}

// Prompt reads one trimmed line of input.
func Prompt(question string) (string, error) {
	rl, err := readline.New(question)
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
