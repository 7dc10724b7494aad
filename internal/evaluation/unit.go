package evaluation

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"

	"github.com/xtal-lab/xtal/internal/instrument"
	"github.com/xtal-lab/xtal/internal/jsprint"
	"github.com/xtal-lab/xtal/internal/sandbox"
)

// DefaultName is the script name used in stack traces when a request has none.
const DefaultName = "input.js"

// Fingerprint identifies a named source text.
func Fingerprint(name, src string) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

// Unit holds the immutable compile products of one source text. The
// instrumented build is produced on first use and shared afterwards.
type Unit struct {
	Fingerprint string
	Name        string
	Diagnostics []string
	Raw         *goja.Program

	src          string
	pass         *instrument.Pass
	instrumented func() (*instrumentedBuild, error)
}

type instrumentedBuild struct {
	text    string
	program *goja.Program
	stats   instrument.Stats
}

// Compile parses and compiles src. Parse and compile errors become diagnostics,
// never a Go error.
func Compile(name, src string, pass *instrument.Pass) *Unit {
	if name == "" {
		name = DefaultName
	}
	u := &Unit{
		Fingerprint: Fingerprint(name, src),
		Name:        name,
		src:         src,
		pass:        pass,
	}
	u.instrumented = sync.OnceValues(u.instrument)

	tree, err := parser.ParseFile(nil, name, src, 0)
	if err != nil {
		u.Diagnostics = syntaxDiagnostics(err)
		return u
	}
	raw, err := goja.CompileAST(tree, false)
	if err != nil {
		u.Diagnostics = []string{err.Error()}
		return u
	}
	u.Raw = raw
	return u
}

func syntaxDiagnostics(err error) []string {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		out := make([]string, len(list))
		for i, e := range list {
			out[i] = fmt.Sprintf("SyntaxError: Line %d:%d %s", e.Position.Line, e.Position.Column, e.Message)
		}
		return out
	}
	return []string{"SyntaxError: " + err.Error()}
}

// instrument parses a fresh tree, rewrites it and compiles the printed text.
func (u *Unit) instrument() (*instrumentedBuild, error) {
	tree, err := parser.ParseFile(nil, u.Name, u.src, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse for instrumentation: %w", err)
	}
	stats := u.pass.Rewrite(tree, u.src)

	text, err := jsprint.Print(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to print instrumented program: %w", err)
	}
	program, err := goja.Compile(u.Name, text, false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile instrumented program: %w", err)
	}

	slog.Debug("[Evaluation] Instrumented",
		"fingerprint", u.Fingerprint[:12],
		"rewritten", stats.Total(),
		"untouched", stats.Untouched)
	return &instrumentedBuild{text: text, program: program, stats: stats}, nil
}

// Instrumented returns the instrumented program text.
func (u *Unit) Instrumented() (string, error) {
	if len(u.Diagnostics) > 0 {
		return "", errors.New("source has syntax errors")
	}
	b, err := u.instrumented()
	if err != nil {
		return "", err
	}
	return b.text, nil
}

// Stats returns the instrumentation counts, building the instrumented program if needed.
func (u *Unit) Stats() (instrument.Stats, error) {
	b, err := u.instrumented()
	if err != nil {
		return instrument.Stats{}, err
	}
	return b.stats, nil
}

// Script returns the sandbox input for this unit.
func (u *Unit) Script() sandbox.Script {
	return sandbox.Script{
		Diagnostics: append([]string(nil), u.Diagnostics...),
		Raw:         u.Raw,
		Instrument: func() (*goja.Program, error) {
			b, err := u.instrumented()
			if err != nil {
				return nil, err
			}
			return b.program, nil
		},
	}
}
