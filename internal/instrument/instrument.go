// Package instrument rewrites expression statements of a parsed script into
// calls to a reporting hook that receives the statement's source line and the
// values it produced.
package instrument

import (
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
	"github.com/dop251/goja/unistring"
)

// DefaultHook is the identifier of the reporting hook bound inside the sandbox.
const DefaultHook = "__xtal__"

// Pass rewrites expression statements in place.
type Pass struct {
	hook  string
	kinds KindSet
	rules map[Kind]payloadFunc
}

// payloadFunc returns the hook arguments that follow the line number.
type payloadFunc func(e ast.Expression) []ast.Expression

// Stats counts what one Rewrite call did.
type Stats struct {
	Rewritten map[Kind]int
	Untouched int // expression statements left as they were
}

// Total is the number of statements that now report through the hook.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.Rewritten {
		n += c
	}
	return n
}

// New creates a pass for the given hook identifier and enabled kinds.
func New(hook string, kinds KindSet) *Pass {
	if hook == "" {
		hook = DefaultHook
	}
	wrap := func(e ast.Expression) []ast.Expression { return []ast.Expression{e} }
	return &Pass{
		hook:  hook,
		kinds: kinds,
		rules: map[Kind]payloadFunc{
			KindConditional:   wrap,
			KindTemplate:      wrap,
			KindArray:         wrap,
			KindParenthesized: wrap,
			KindBinary:        wrap,
			KindLogical:       wrap,
			KindLiteral:       wrap,
			KindIdentifier:    wrap,
			KindCall:          wrap,
			KindMember:        memberPath,
			KindConsole:       consoleArguments,
		},
	}
}

// Hook returns the identifier the pass calls.
func (p *Pass) Hook() string {
	return p.hook
}

// Rewrite instruments program, which must have been parsed from src.
// The tree is mutated in place.
func (p *Pass) Rewrite(program *ast.Program, src string) Stats {
	base := 1
	if program.File != nil {
		base = program.File.Base()
	}
	r := &rewriter{
		pass:  p,
		src:   src,
		base:  base,
		lines: NewLineIndex(src),
		stats: Stats{Rewritten: make(map[Kind]int)},
	}
	r.statements(program.Body, true)
	return r.stats
}

// Classify reports the kind Rewrite would assign to the expression of stmt.
func (p *Pass) Classify(stmt *ast.ExpressionStatement, src string) Kind {
	r := &rewriter{pass: p, src: src, base: 1}
	kind, _ := r.classify(stmt.Expression)
	return kind
}

type rewriter struct {
	pass  *Pass
	src   string
	base  int
	lines *LineIndex
	stats Stats
}

func (r *rewriter) offset(n ast.Node) int {
	return int(n.Idx0()) - r.base
}

// statements walks a statement list. withDirectives marks a program or function body,
// whose leading string-literal statements are directives and are left alone.
func (r *rewriter) statements(list []ast.Statement, withDirectives bool) {
	prologue := withDirectives
	for _, stmt := range list {
		if prologue {
			if r.isDirective(stmt) {
				continue
			}
			prologue = false
		}
		r.statement(stmt)
	}
}

func (r *rewriter) isDirective(stmt ast.Statement) bool {
	es, ok := stmt.(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	if _, ok := es.Expression.(*ast.StringLiteral); !ok {
		return false
	}
	_, parenthesized := r.parenthesized(es.Expression)
	return !parenthesized
}

func (r *rewriter) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		r.expressionStatement(s)
	case *ast.BlockStatement:
		r.statements(s.List, false)
	case *ast.IfStatement:
		r.expr(s.Test)
		r.statement(s.Consequent)
		if s.Alternate != nil {
			r.statement(s.Alternate)
		}
	case *ast.ForStatement:
		switch init := s.Initializer.(type) {
		case *ast.ForLoopInitializerExpression:
			r.expr(init.Expression)
		case *ast.ForLoopInitializerVarDeclList:
			r.bindings(init.List)
		case *ast.ForLoopInitializerLexicalDecl:
			r.bindings(init.LexicalDeclaration.List)
		}
		r.expr(s.Test)
		r.expr(s.Update)
		r.statement(s.Body)
	case *ast.ForInStatement:
		r.forInto(s.Into)
		r.expr(s.Source)
		r.statement(s.Body)
	case *ast.ForOfStatement:
		r.forInto(s.Into)
		r.expr(s.Source)
		r.statement(s.Body)
	case *ast.WhileStatement:
		r.expr(s.Test)
		r.statement(s.Body)
	case *ast.DoWhileStatement:
		r.statement(s.Body)
		r.expr(s.Test)
	case *ast.LabelledStatement:
		r.statement(s.Statement)
	case *ast.SwitchStatement:
		r.expr(s.Discriminant)
		for _, c := range s.Body {
			r.expr(c.Test)
			r.statements(c.Consequent, false)
		}
	case *ast.TryStatement:
		r.statements(s.Body.List, false)
		if s.Catch != nil {
			r.expr(s.Catch.Parameter)
			r.statements(s.Catch.Body.List, false)
		}
		if s.Finally != nil {
			r.statements(s.Finally.List, false)
		}
	case *ast.WithStatement:
		r.expr(s.Object)
		r.statement(s.Body)
	case *ast.VariableStatement:
		r.bindings(s.List)
	case *ast.LexicalDeclaration:
		r.bindings(s.List)
	case *ast.ReturnStatement:
		r.expr(s.Argument)
	case *ast.ThrowStatement:
		r.expr(s.Argument)
	case *ast.FunctionDeclaration:
		r.function(s.Function)
	case *ast.ClassDeclaration:
		r.class(s.Class)
	}
}

func (r *rewriter) expressionStatement(s *ast.ExpressionStatement) {
	kind, start := r.classify(s.Expression)
	line := r.lines.Line(start)

	if rule, ok := r.pass.rules[kind]; ok && r.pass.kinds.Has(kind) {
		s.Expression = r.hookCall(line, rule(s.Expression))
		r.stats.Rewritten[kind]++
	} else {
		r.stats.Untouched++
	}

	if r.isHookCall(s.Expression) {
		return
	}
	r.expr(s.Expression)
}

// classify returns the kind of e and the offset its statement starts at.
func (r *rewriter) classify(e ast.Expression) (Kind, int) {
	if open, ok := r.parenthesized(e); ok {
		return KindParenthesized, open
	}
	start := r.offset(e)

	switch x := e.(type) {
	case *ast.ConditionalExpression:
		return KindConditional, start
	case *ast.TemplateLiteral:
		if x.Tag != nil {
			return KindOther, start
		}
		return KindTemplate, start
	case *ast.ArrayLiteral:
		return KindArray, start
	case *ast.BinaryExpression:
		switch x.Operator {
		case token.LOGICAL_AND, token.LOGICAL_OR, token.COALESCE:
			return KindLogical, start
		}
		return KindBinary, start
	case *ast.BooleanLiteral, *ast.StringLiteral, *ast.NumberLiteral:
		return KindLiteral, start
	case *ast.Identifier:
		return KindIdentifier, start
	case *ast.DotExpression:
		return KindMember, start
	case *ast.CallExpression:
		if isConsoleCall(x) {
			return KindConsole, start
		}
		return KindCall, start
	default:
		return KindOther, start
	}
}

// parenthesized reports whether the statement expression e was written inside
// a pair of parentheses, and the offset of the opening one. The parser keeps no
// node for them, so the source around e is inspected.
func (r *rewriter) parenthesized(e ast.Expression) (int, bool) {
	start, end := int(e.Idx0())-r.base, int(e.Idx1())-r.base
	if start < 0 || end > len(r.src) || start > end {
		return 0, false
	}
	open := prevNonSpace(r.src, start)
	if open < 0 || r.src[open] != '(' {
		return 0, false
	}
	closing := nextNonSpace(r.src, end)
	if closing < 0 || r.src[closing] != ')' {
		return 0, false
	}

	// Brackets cannot absorb an unmatched parenthesis, so the inner text only
	// parses when the pair found above belongs together.
	probe := "(async function* () {[" + r.src[open+1:closing] + "\n]})"
	if _, err := parser.ParseFile(nil, "", probe, parser.IgnoreRegExpErrors); err != nil {
		return 0, false
	}
	return open, true
}

func prevNonSpace(s string, i int) int {
	for i--; i >= 0; i-- {
		if !isSpace(s[i]) {
			return i
		}
	}
	return -1
}

func nextNonSpace(s string, i int) int {
	for ; i < len(s); i++ {
		if !isSpace(s[i]) {
			return i
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isConsoleCall(call *ast.CallExpression) bool {
	dot, ok := call.Callee.(*ast.DotExpression)
	if !ok {
		return false
	}
	id, ok := dot.Left.(*ast.Identifier)
	return ok && id.Name == "console"
}

func (r *rewriter) isHookCall(e ast.Expression) bool {
	call, ok := e.(*ast.CallExpression)
	if !ok {
		return false
	}
	id, ok := call.Callee.(*ast.Identifier)
	return ok && id.Name.String() == r.pass.hook
}

func (r *rewriter) hookCall(line int, payload []ast.Expression) *ast.CallExpression {
	args := make([]ast.Expression, 0, len(payload)+1)
	args = append(args, &ast.NumberLiteral{
		Literal: strconv.Itoa(line),
		Value:   int64(line),
	})
	args = append(args, payload...)
	return &ast.CallExpression{
		Callee:       &ast.Identifier{Name: unistring.NewFromString(r.pass.hook)},
		ArgumentList: args,
	}
}

// memberPath replaces a static property chain with the dotted text of its path.
func memberPath(e ast.Expression) []ast.Expression {
	var segments []string
	dot := e.(*ast.DotExpression)
	for {
		segments = append(segments, dot.Identifier.Name.String())
		if inner, ok := dot.Left.(*ast.DotExpression); ok {
			dot = inner
			continue
		}
		if id, ok := dot.Left.(*ast.Identifier); ok {
			segments = append(segments, id.Name.String())
		}
		break
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	path := strings.Join(segments, ".")
	return []ast.Expression{&ast.StringLiteral{Value: unistring.NewFromString(path)}}
}

// consoleArguments forwards the arguments of console.<method>(...) to the hook.
func consoleArguments(e ast.Expression) []ast.Expression {
	return e.(*ast.CallExpression).ArgumentList
}

func (r *rewriter) bindings(list []*ast.Binding) {
	for _, b := range list {
		r.binding(b)
	}
}

func (r *rewriter) binding(b *ast.Binding) {
	if b == nil {
		return
	}
	r.expr(b.Target)
	r.expr(b.Initializer)
}

func (r *rewriter) forInto(into ast.ForInto) {
	switch x := into.(type) {
	case *ast.ForIntoVar:
		r.binding(x.Binding)
	case *ast.ForDeclaration:
		r.expr(x.Target)
	case *ast.ForIntoExpression:
		r.expr(x.Expression)
	}
}

func (r *rewriter) function(f *ast.FunctionLiteral) {
	if f == nil {
		return
	}
	r.params(f.ParameterList)
	if f.Body != nil {
		r.statements(f.Body.List, true)
	}
}

func (r *rewriter) params(list *ast.ParameterList) {
	if list == nil {
		return
	}
	r.bindings(list.List)
	r.expr(list.Rest)
}

func (r *rewriter) class(c *ast.ClassLiteral) {
	if c == nil {
		return
	}
	r.expr(c.SuperClass)
	for _, el := range c.Body {
		switch x := el.(type) {
		case *ast.FieldDefinition:
			if x.Computed {
				r.expr(x.Key)
			}
			r.expr(x.Initializer)
		case *ast.MethodDefinition:
			if x.Computed {
				r.expr(x.Key)
			}
			r.function(x.Body)
		case *ast.ClassStaticBlock:
			r.statements(x.Block.List, false)
		}
	}
}

// expr descends into an expression looking for nested function and class bodies.
func (r *rewriter) expr(e ast.Expression) {
	switch x := e.(type) {
	case nil:
	case *ast.FunctionLiteral:
		r.function(x)
	case *ast.ArrowFunctionLiteral:
		r.params(x.ParameterList)
		switch body := x.Body.(type) {
		case *ast.BlockStatement:
			r.statements(body.List, true)
		case *ast.ExpressionBody:
			r.expr(body.Expression)
		}
	case *ast.ClassLiteral:
		r.class(x)
	case *ast.ArrayLiteral:
		for _, v := range x.Value {
			r.expr(v)
		}
	case *ast.ArrayPattern:
		for _, v := range x.Elements {
			r.expr(v)
		}
		r.expr(x.Rest)
	case *ast.ObjectLiteral:
		for _, p := range x.Value {
			r.expr(p)
		}
	case *ast.ObjectPattern:
		for _, p := range x.Properties {
			r.expr(p)
		}
		r.expr(x.Rest)
	case *ast.PropertyKeyed:
		if x.Computed {
			r.expr(x.Key)
		}
		r.expr(x.Value)
	case *ast.PropertyShort:
		r.expr(x.Initializer)
	case *ast.Binding:
		r.binding(x)
	case *ast.SpreadElement:
		r.expr(x.Expression)
	case *ast.AssignExpression:
		r.expr(x.Left)
		r.expr(x.Right)
	case *ast.AwaitExpression:
		r.expr(x.Argument)
	case *ast.YieldExpression:
		r.expr(x.Argument)
	case *ast.BinaryExpression:
		r.expr(x.Left)
		r.expr(x.Right)
	case *ast.BracketExpression:
		r.expr(x.Left)
		r.expr(x.Member)
	case *ast.CallExpression:
		r.expr(x.Callee)
		for _, a := range x.ArgumentList {
			r.expr(a)
		}
	case *ast.NewExpression:
		r.expr(x.Callee)
		for _, a := range x.ArgumentList {
			r.expr(a)
		}
	case *ast.ConditionalExpression:
		r.expr(x.Test)
		r.expr(x.Consequent)
		r.expr(x.Alternate)
	case *ast.DotExpression:
		r.expr(x.Left)
	case *ast.PrivateDotExpression:
		r.expr(x.Left)
	case *ast.SequenceExpression:
		for _, v := range x.Sequence {
			r.expr(v)
		}
	case *ast.TemplateLiteral:
		r.expr(x.Tag)
		for _, v := range x.Expressions {
			r.expr(v)
		}
	case *ast.UnaryExpression:
		r.expr(x.Operand)
	case *ast.Optional:
		r.expr(x.Expression)
	case *ast.OptionalChain:
		r.expr(x.Expression)
	}
}
