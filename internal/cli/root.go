package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/halidom/internal/analysis"
	"github.com/dshills/halidom/internal/gitctx"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitUsageError   = 2
	ExitRepoError    = 3
	ExitDiffError    = 4
	ExitEngineError  = 5
	ExitInterrupted  = 130
)

var rootCmd = &cobra.Command{
	Use:           "halidom",
	Short:         "Stream an analysis of a git commit",
	Long:          "Halidom extracts one commit's diff and streams it through an external analysis engine.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flagVerbose bool

// Run executes the root command and returns an exit code.
func Run() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	exitCode = ExitSuccess
	errOut = stderr
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsageError
	}
	return exitCode
}

// errUsage marks configuration problems found after flag parsing.
var errUsage = errors.New("invalid configuration")

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var errOut io.Writer = os.Stderr

// fail reports err on stderr and records the matching exit code.
func fail(err error) {
	fmt.Fprintf(errOut, "Error: %v\n", err)
	exitCode = exitCodeFor(err)
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errUsage):
		return ExitUsageError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, gitctx.ErrNotARepository), errors.Is(err, gitctx.ErrUnknownCommit):
		return ExitRepoError
	case errors.Is(err, gitctx.ErrDiffRetrievalFailed), errors.Is(err, gitctx.ErrEncodingFailed):
		return ExitDiffError
	case errors.Is(err, analysis.ErrStagingFailed),
		errors.Is(err, analysis.ErrSpawnFailed),
		errors.Is(err, analysis.ErrEngineFailed),
		errors.Is(err, analysis.ErrEngineTimeout),
		errors.Is(err, analysis.ErrEncodingFailed):
		return ExitEngineError
	default:
		return ExitRuntimeError
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print halidom version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "halidom version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log debug details to stderr")
}
