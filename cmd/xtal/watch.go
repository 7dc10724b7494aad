package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtal-lab/xtal/internal/evaluation"
	"github.com/xtal-lab/xtal/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Re-evaluate a file every time it is saved",
	Long: `Evaluates FILE, then re-evaluates it after each change settles for the
debounce window. Each result after the first is followed by a unified diff
against the previous result.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before re-evaluating (overrides watch.debounce)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	evalCfg, err := cfg.Evaluation.ServiceConfig()
	if err != nil {
		return err
	}
	svc, err := evaluation.NewService(evalCfg, nil, 0)
	if err != nil {
		return err
	}
	defer svc.Close()

	debounce := cfg.Watch.Debounce
	if watchDebounce > 0 {
		debounce = watchDebounce
	}
	w, err := watch.New(args[0], svc, debounce)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	return w.Run(ctx, func(u watch.Update) { printUpdate(out, u) })
}

func printUpdate(w io.Writer, u watch.Update) {
	fmt.Fprintf(w, "==> %s (%s) <==\n", u.Path, time.Now().Format(time.TimeOnly))
	if u.Err != nil {
		fmt.Fprintf(w, "error: %v\n", u.Err)
		return
	}
	fmt.Fprint(w, u.Outcome.Result)
	for _, e := range u.Outcome.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	if u.Diff != "" {
		fmt.Fprint(w, u.Diff)
	}
}
