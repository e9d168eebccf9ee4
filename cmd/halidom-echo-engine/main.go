// Halidom-echo-engine is a stand-in analysis engine. It writes the staged diff
// back to stdout in fixed-size pieces, optionally pausing between them, so
// streaming can be watched end to end without a real analyzer:
//
//	halidom analyze -c HEAD --engine halidom-echo-engine \
//	    --engine-arg --delay=50ms --engine-arg {diff}
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	chunkSize int
	delay     time.Duration
	exitWith  int
)

var rootCmd = &cobra.Command{
	Use:           "halidom-echo-engine [diff-file]",
	Short:         "Echo a staged diff back in chunks",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.Getenv("HALIDOM_DIFF_FILE")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no diff file: pass a path or set HALIDOM_DIFF_FILE")
		}
		if chunkSize <= 0 {
			return fmt.Errorf("--chunk-size must be positive")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for len(data) > 0 {
			n := min(chunkSize, len(data))
			if _, err := out.Write(data[:n]); err != nil {
				return err
			}
			data = data[n:]
			if delay > 0 && len(data) > 0 {
				time.Sleep(delay)
			}
		}
		return nil
	},
}

func main() {
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", 256, "Bytes written per piece")
	rootCmd.Flags().DurationVar(&delay, "delay", 0, "Pause between pieces")
	rootCmd.Flags().IntVar(&exitWith, "exit", 0, "Exit status to report after echoing")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "halidom-echo-engine: %v\n", err)
		os.Exit(2)
	}
	if exitWith != 0 {
		fmt.Fprintf(os.Stderr, "halidom-echo-engine: exiting with status %d as requested\n", exitWith)
	}
	os.Exit(exitWith)
}
