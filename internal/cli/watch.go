package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/halidom/internal/watch"
)

var flagDebounce string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Analyze every new commit as it is made",
	Long:  "Watch the repository's HEAD and analyze each commit it moves to, until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		debounce := watch.DefaultDebounce
		if flagDebounce != "" {
			if debounce, err = time.ParseDuration(flagDebounce); err != nil || debounce <= 0 {
				return fmt.Errorf("--debounce must be a positive duration, got %q", flagDebounce)
			}
		}
		ctx, stop := signalContext()
		defer stop()

		p, err := newPipeline(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			fail(err)
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for new commits (Ctrl-C to stop)\n", p.repo.Root())

		w := &watch.Watcher{
			Repo:     p.repo,
			Debounce: debounce,
			Logger:   p.log,
			OnCommit: p.analyze,
		}
		if err := w.Run(ctx); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	addAnalysisFlags(watchCmd)
	watchCmd.Flags().StringVar(&flagDebounce, "debounce", "", "Quiet period before HEAD is re-read (e.g. 500ms)")
}
