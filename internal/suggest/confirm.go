package suggest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
)

// TerminalConfirmer prompts on Out and reads a y/n answer from In. An empty
// answer takes the default.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm asks a yes/no question and returns the answer.
func (c *TerminalConfirmer) Confirm(prompt string, def bool) (bool, error) {
	hint := "Y/n"
	if !def {
		hint = "y/N"
	}
	fmt.Fprintf(c.Out, "%s [%s]: ", prompt, hint)

	reader := bufio.NewReader(c.In)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return def, nil
	}
}

// AutoDecline always answers no. Used when stdin is not a terminal so a run
// never blocks waiting for input nobody will type.
type AutoDecline struct{}

func (AutoDecline) Confirm(string, bool) (bool, error) { return false, nil }

// ForTerminal returns a TerminalConfirmer when fd is an interactive terminal
// and AutoDecline otherwise.
func ForTerminal(fd uintptr, in io.Reader, out io.Writer) Confirmer {
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return &TerminalConfirmer{In: in, Out: out}
	}
	return AutoDecline{}
}
