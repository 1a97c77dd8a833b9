package util

import (
	"fmt"
	"io"
	"os"

	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
)

// Output receives every diagnostic. Warnings share the stream with the final
// report so they interleave deterministically; tests swap in a buffer.
var Output io.Writer = os.Stdout

var warningCount int

// WarningCount returns the number of diagnostics printed since the last
// reset. Silenced classes are not counted.
func WarningCount() int { return warningCount }

func ResetWarningCount() { warningCount = 0 }

// TokenWarn reports a diagnostic about a named element in the standard
// format: WARNING: <lead><lexeme> found line <n> of file <name><trail>.
func TokenWarn(cfg *config.Config, wt config.Warning, tok token.Token, lead, trail string) {
	if cfg != nil && !cfg.IsWarningEnabled(wt) {
		return
	}
	warningCount++
	fmt.Fprintf(Output, "WARNING: %s%s found %s%s\n", lead, tok.Lexeme, tok.Pos, trail)
}

// Warnf reports a free-form diagnostic with the standard prefix. Used for
// defects that are not tied to a single token, like file-level problems.
func Warnf(cfg *config.Config, wt config.Warning, format string, args ...any) {
	if cfg != nil && !cfg.IsWarningEnabled(wt) {
		return
	}
	warningCount++
	fmt.Fprintf(Output, "WARNING: "+format+"\n", args...)
}
