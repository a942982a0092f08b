package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/spkg/pkg/errs"
)

const (
	// Success is the same as EXIT_SUCCESS in C
	Success = iota

	// Failure is a domain error the user can act on.
	Failure

	// BadArgs passed to the command line; not our fault.
	BadArgs

	// UnexpectedError is an uncategorized error, probably our fault.
	UnexpectedError
)

// maxTraceLines bounds the stack trace printed for unexpected errors.
const maxTraceLines = 12

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs tags argument validation failures so they exit with BadArgs.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// report renders err for the user and picks the exit code.
func report(w io.Writer, err error) int {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if _, ok := err.(usageError); ok || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(w, "%s %s\n", red("Error:"), err)
		fmt.Fprintln(w, "Run with --help for usage.")
		return BadArgs
	}

	if errs.IsDomain(err) {
		fmt.Fprintf(w, "%s %s\n", red("Error:"), err)
		if hint := errs.HintOf(err); hint != "" {
			fmt.Fprintf(w, "%s %s\n", yellow("Hint:"), hint)
		}
		return Failure
	}

	fmt.Fprintf(w, "%s %s\n", red("Unexpected error:"), err)
	if trace := truncatedTrace(err); trace != "" {
		fmt.Fprintln(w, trace)
	}
	return UnexpectedError
}

// truncatedTrace returns the %+v rendering of err without its first line,
// cut to maxTraceLines. Errors without a recorded stack yield "".
func truncatedTrace(err error) string {
	full := fmt.Sprintf("%+v", err)
	if full == err.Error() {
		return ""
	}

	lines := strings.Split(strings.TrimRight(full, "\n"), "\n")
	if len(lines) > 0 && lines[0] == err.Error() {
		lines = lines[1:]
	}
	if len(lines) > maxTraceLines {
		omitted := len(lines) - maxTraceLines
		lines = append(lines[:maxTraceLines], fmt.Sprintf("\t... %d more lines", omitted))
	}
	return strings.Join(lines, "\n")
}
