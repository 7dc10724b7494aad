package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/xtal-lab/xtal/internal/evaluation"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	evalFormat  string
	evalTimeout time.Duration
)

// errScriptErrors makes the process exit non-zero when any file reported diagnostics.
var errScriptErrors = errors.New("one or more files reported errors")

var evalCmd = &cobra.Command{
	Use:   "eval FILE...",
	Short: "Evaluate files and print their inline results",
	Long: `Evaluates each file concurrently and prints the outcomes in argument order.
Use "-" to read a script from stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalFormat, "format", "f", formatText, "Output format: text, json or yaml")
	evalCmd.Flags().DurationVar(&evalTimeout, "timeout", 0, "Overall evaluation budget (overrides evaluation.timeout)")
}

// fileOutcome is one entry of json and yaml output.
type fileOutcome struct {
	File   string           `json:"file" yaml:"file"`
	Result string           `json:"result" yaml:"result"`
	Errors []string         `json:"errors" yaml:"errors"`
	State  evaluation.State `json:"state" yaml:"state"`
}

func runEval(cmd *cobra.Command, args []string) error {
	switch evalFormat {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unsupported --format %q (must be text, json or yaml)", evalFormat)
	}

	evalCfg, err := cfg.Evaluation.ServiceConfig()
	if err != nil {
		return err
	}
	if evalTimeout > 0 {
		evalCfg.Sandbox = cfg.Evaluation.WithTimeout(evalTimeout).SandboxOptions()
	}
	svc, err := evaluation.NewService(evalCfg, nil, 0)
	if err != nil {
		return err
	}
	defer svc.Close()

	reqs, err := readSources(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	outs, err := svc.EvaluateBatch(cmd.Context(), reqs)
	if err != nil {
		return err
	}

	results := make([]fileOutcome, len(outs))
	failed := false
	for i, out := range outs {
		results[i] = fileOutcome{File: args[i], Result: out.Result, Errors: out.Errors, State: out.State}
		failed = failed || len(out.Errors) > 0
	}

	if err := writeOutcomes(cmd.OutOrStdout(), evalFormat, results); err != nil {
		return err
	}
	if failed {
		return errScriptErrors
	}
	return nil
}

// readSources reads every file concurrently, keeping argument order.
func readSources(stdin io.Reader, paths []string) ([]evaluation.Request, error) {
	reqs := make([]evaluation.Request, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		if path == "-" {
			src, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			reqs[i] = evaluation.Request{SourceText: string(src), Name: "stdin.js"}
			continue
		}
		g.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			reqs[i] = evaluation.Request{SourceText: string(src), Name: filepath.Base(path)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reqs, nil
}

func writeOutcomes(w io.Writer, format string, results []fileOutcome) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	}

	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "==> %s <==\n", r.File)
		}
		fmt.Fprint(w, r.Result)
		if r.Result != "" && !strings.HasSuffix(r.Result, "\n") {
			fmt.Fprintln(w)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "error: %s\n", e)
		}
		if r.State == evaluation.StateTimedOut {
			fmt.Fprintln(w, "(timed out)")
		}
	}
	return nil
}
