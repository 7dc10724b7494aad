// Package jsprint serializes a goja syntax tree back to JavaScript source.
//
// The parser does not keep parentheses, so the printer derives them from
// operator precedence and a few syntactic positions where the grammar would
// otherwise read the text differently.
package jsprint

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

const indentUnit = "  "

// Print returns the source text of node.
func Print(node ast.Node) (string, error) {
	var sb strings.Builder
	if err := Fprint(&sb, node); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Fprint writes the source text of node to w.
func Fprint(w io.Writer, node ast.Node) error {
	p := &printer{}
	switch n := node.(type) {
	case *ast.Program:
		for _, s := range n.Body {
			p.statement(s)
			p.newline()
		}
	case ast.Statement:
		p.statement(n)
	case ast.Expression:
		p.expr(n, precLowest)
	default:
		p.fail(node)
	}
	if p.err != nil {
		return p.err
	}
	_, err := io.WriteString(w, p.sb.String())
	return err
}

type printer struct {
	sb    strings.Builder
	depth int
	noIn  bool // inside a for-statement initializer
	err   error
}

func (p *printer) s(text string) {
	p.sb.WriteString(text)
}

func (p *printer) newline() {
	p.sb.WriteByte('\n')
}

func (p *printer) indent() {
	for i := 0; i < p.depth; i++ {
		p.sb.WriteString(indentUnit)
	}
}

func (p *printer) fail(node ast.Node) {
	if p.err == nil {
		p.err = fmt.Errorf("jsprint: unsupported node %T", node)
	}
}

// ---- statements ----

func (p *printer) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		p.expr(s.Expression, precLowest, needsStatementParens(s.Expression))
		p.s(";")
	case *ast.BlockStatement:
		p.block(s.List)
	case *ast.EmptyStatement:
		p.s(";")
	case *ast.VariableStatement:
		p.s("var ")
		p.bindings(s.List)
		p.s(";")
	case *ast.LexicalDeclaration:
		p.s(s.Token.String())
		p.s(" ")
		p.bindings(s.List)
		p.s(";")
	case *ast.IfStatement:
		p.s("if (")
		p.expr(s.Test, precLowest)
		p.s(") ")
		if s.Alternate != nil && endsInOpenIf(s.Consequent) {
			p.block([]ast.Statement{s.Consequent})
		} else {
			p.statement(s.Consequent)
		}
		if s.Alternate != nil {
			p.s(" else ")
			p.statement(s.Alternate)
		}
	case *ast.ForStatement:
		p.s("for (")
		p.forInit(s.Initializer)
		p.s(";")
		if s.Test != nil {
			p.s(" ")
			p.expr(s.Test, precLowest)
		}
		p.s(";")
		if s.Update != nil {
			p.s(" ")
			p.expr(s.Update, precLowest)
		}
		p.s(") ")
		p.statement(s.Body)
	case *ast.ForInStatement:
		p.s("for (")
		p.forInto(s.Into)
		p.s(" in ")
		p.expr(s.Source, precLowest)
		p.s(") ")
		p.statement(s.Body)
	case *ast.ForOfStatement:
		p.s("for (")
		p.forInto(s.Into)
		p.s(" of ")
		p.expr(s.Source, precAssign)
		p.s(") ")
		p.statement(s.Body)
	case *ast.WhileStatement:
		p.s("while (")
		p.expr(s.Test, precLowest)
		p.s(") ")
		p.statement(s.Body)
	case *ast.DoWhileStatement:
		p.s("do ")
		p.statement(s.Body)
		p.s(" while (")
		p.expr(s.Test, precLowest)
		p.s(");")
	case *ast.LabelledStatement:
		p.s(s.Label.Name.String())
		p.s(": ")
		p.statement(s.Statement)
	case *ast.BranchStatement:
		p.s(s.Token.String())
		if s.Label != nil {
			p.s(" ")
			p.s(s.Label.Name.String())
		}
		p.s(";")
	case *ast.SwitchStatement:
		p.switchStatement(s)
	case *ast.TryStatement:
		p.s("try ")
		p.block(s.Body.List)
		if s.Catch != nil {
			p.s(" catch ")
			if s.Catch.Parameter != nil {
				p.s("(")
				p.expr(s.Catch.Parameter, precLowest)
				p.s(") ")
			}
			p.block(s.Catch.Body.List)
		}
		if s.Finally != nil {
			p.s(" finally ")
			p.block(s.Finally.List)
		}
	case *ast.WithStatement:
		p.s("with (")
		p.expr(s.Object, precLowest)
		p.s(") ")
		p.statement(s.Body)
	case *ast.ReturnStatement:
		p.s("return")
		if s.Argument != nil {
			p.s(" ")
			p.expr(s.Argument, precLowest)
		}
		p.s(";")
	case *ast.ThrowStatement:
		p.s("throw ")
		p.expr(s.Argument, precLowest)
		p.s(";")
	case *ast.DebuggerStatement:
		p.s("debugger;")
	case *ast.FunctionDeclaration:
		p.function(s.Function)
	case *ast.ClassDeclaration:
		p.class(s.Class)
	default:
		p.fail(stmt)
	}
}

func (p *printer) block(list []ast.Statement) {
	if len(list) == 0 {
		p.s("{}")
		return
	}
	p.s("{")
	p.newline()
	p.depth++
	for _, s := range list {
		p.indent()
		p.statement(s)
		p.newline()
	}
	p.depth--
	p.indent()
	p.s("}")
}

func (p *printer) switchStatement(s *ast.SwitchStatement) {
	p.s("switch (")
	p.expr(s.Discriminant, precLowest)
	p.s(") {")
	p.newline()
	p.depth++
	for _, c := range s.Body {
		p.indent()
		if c.Test == nil {
			p.s("default:")
		} else {
			p.s("case ")
			p.expr(c.Test, precLowest)
			p.s(":")
		}
		p.newline()
		p.depth++
		for _, stmt := range c.Consequent {
			p.indent()
			p.statement(stmt)
			p.newline()
		}
		p.depth--
	}
	p.depth--
	p.indent()
	p.s("}")
}

func (p *printer) forInit(init ast.ForLoopInitializer) {
	saved := p.noIn
	p.noIn = true
	defer func() { p.noIn = saved }()

	switch x := init.(type) {
	case nil:
	case *ast.ForLoopInitializerExpression:
		p.expr(x.Expression, precLowest, startsWithLetBracket(x.Expression))
	case *ast.ForLoopInitializerVarDeclList:
		p.s("var ")
		p.bindings(x.List)
	case *ast.ForLoopInitializerLexicalDecl:
		p.s(x.LexicalDeclaration.Token.String())
		p.s(" ")
		p.bindings(x.LexicalDeclaration.List)
	default:
		p.fail(init)
	}
}

func (p *printer) forInto(into ast.ForInto) {
	switch x := into.(type) {
	case *ast.ForIntoVar:
		p.s("var ")
		p.binding(x.Binding)
	case *ast.ForDeclaration:
		if x.IsConst {
			p.s("const ")
		} else {
			p.s("let ")
		}
		p.expr(x.Target, precLowest)
	case *ast.ForIntoExpression:
		p.expr(x.Expression, precCall, startsWithLetBracket(x.Expression))
	default:
		p.fail(into)
	}
}

func (p *printer) bindings(list []*ast.Binding) {
	for i, b := range list {
		if i > 0 {
			p.s(", ")
		}
		p.binding(b)
	}
}

func (p *printer) binding(b *ast.Binding) {
	p.expr(b.Target, precLowest)
	if b.Initializer != nil {
		p.s(" = ")
		p.expr(b.Initializer, precAssign)
	}
}

// endsInOpenIf reports whether s ends with an if statement that has no else,
// which would capture a following else.
func endsInOpenIf(s ast.Statement) bool {
	for {
		switch x := s.(type) {
		case *ast.IfStatement:
			if x.Alternate == nil {
				return true
			}
			s = x.Alternate
		case *ast.LabelledStatement:
			s = x.Statement
		case *ast.ForStatement:
			s = x.Body
		case *ast.ForInStatement:
			s = x.Body
		case *ast.ForOfStatement:
			s = x.Body
		case *ast.WhileStatement:
			s = x.Body
		case *ast.WithStatement:
			s = x.Body
		default:
			return false
		}
	}
}

// ---- functions and classes ----

func (p *printer) function(f *ast.FunctionLiteral) {
	if f.Async {
		p.s("async ")
	}
	p.s("function")
	if f.Generator {
		p.s("*")
	}
	if f.Name != nil {
		p.s(" ")
		p.s(f.Name.Name.String())
	}
	p.functionRest(f)
}

// functionRest prints the parameter list and body shared by functions and methods.
func (p *printer) functionRest(f *ast.FunctionLiteral) {
	p.params(f.ParameterList)
	p.s(" ")
	p.functionBody(f.Body)
}

func (p *printer) functionBody(body *ast.BlockStatement) {
	saved := p.noIn
	p.noIn = false
	if body == nil {
		p.s("{}")
	} else {
		p.block(body.List)
	}
	p.noIn = saved
}

func (p *printer) params(list *ast.ParameterList) {
	p.s("(")
	if list != nil {
		p.bindings(list.List)
		if list.Rest != nil {
			if len(list.List) > 0 {
				p.s(", ")
			}
			p.s("...")
			p.expr(list.Rest, precLowest)
		}
	}
	p.s(")")
}

func (p *printer) arrow(a *ast.ArrowFunctionLiteral) {
	if a.Async {
		p.s("async ")
	}
	p.params(a.ParameterList)
	p.s(" => ")
	switch body := a.Body.(type) {
	case *ast.BlockStatement:
		p.functionBody(body)
	case *ast.ExpressionBody:
		p.expr(body.Expression, precAssign, startsWithObject(body.Expression))
	default:
		p.fail(body)
	}
}

func (p *printer) method(key ast.Expression, computed bool, kind ast.PropertyKind, f *ast.FunctionLiteral) {
	switch kind {
	case ast.PropertyKindGet:
		p.s("get ")
	case ast.PropertyKindSet:
		p.s("set ")
	default:
		if f.Async {
			p.s("async ")
		}
		if f.Generator {
			p.s("*")
		}
	}
	p.propertyKey(key, computed)
	p.functionRest(f)
}

func (p *printer) class(c *ast.ClassLiteral) {
	p.s("class")
	if c.Name != nil {
		p.s(" ")
		p.s(c.Name.Name.String())
	}
	if c.SuperClass != nil {
		p.s(" extends ")
		p.expr(c.SuperClass, precCall)
	}
	if len(c.Body) == 0 {
		p.s(" {}")
		return
	}
	saved := p.noIn
	p.noIn = false
	p.s(" {")
	p.newline()
	p.depth++
	for _, el := range c.Body {
		p.indent()
		switch x := el.(type) {
		case *ast.FieldDefinition:
			if x.Static {
				p.s("static ")
			}
			p.propertyKey(x.Key, x.Computed)
			if x.Initializer != nil {
				p.s(" = ")
				p.expr(x.Initializer, precAssign)
			}
			p.s(";")
		case *ast.MethodDefinition:
			if x.Static {
				p.s("static ")
			}
			p.method(x.Key, x.Computed, x.Kind, x.Body)
		case *ast.ClassStaticBlock:
			p.s("static ")
			p.block(x.Block.List)
		default:
			p.fail(el)
		}
		p.newline()
	}
	p.depth--
	p.indent()
	p.s("}")
	p.noIn = saved
}

func (p *printer) propertyKey(key ast.Expression, computed bool) {
	if computed {
		p.s("[")
		p.expr(key, precAssign)
		p.s("]")
		return
	}
	switch k := key.(type) {
	case *ast.StringLiteral:
		p.stringLiteral(k)
	case *ast.NumberLiteral:
		p.numberLiteral(k)
	case *ast.PrivateIdentifier:
		p.s("#")
		p.s(k.Name.String())
	case *ast.Identifier:
		p.s(k.Name.String())
	default:
		p.expr(key, precAssign)
	}
}

// ---- expressions ----

// expr prints e, parenthesized when its precedence is below min or force is set.
func (p *printer) expr(e ast.Expression, min int, force ...bool) {
	wrap := precedence(e) < min
	for _, f := range force {
		wrap = wrap || f
	}
	if p.noIn && isIn(e) {
		wrap = true
	}
	if !wrap {
		p.node(e)
		return
	}
	saved := p.noIn
	p.noIn = false
	p.s("(")
	p.node(e)
	p.s(")")
	p.noIn = saved
}

func (p *printer) node(e ast.Expression) {
	switch x := e.(type) {
	case *ast.Identifier:
		p.s(x.Name.String())
	case *ast.PrivateIdentifier:
		p.s("#")
		p.s(x.Name.String())
	case *ast.ThisExpression:
		p.s("this")
	case *ast.SuperExpression:
		p.s("super")
	case *ast.NullLiteral:
		p.s("null")
	case *ast.BooleanLiteral:
		if x.Value {
			p.s("true")
		} else {
			p.s("false")
		}
	case *ast.NumberLiteral:
		p.numberLiteral(x)
	case *ast.StringLiteral:
		p.stringLiteral(x)
	case *ast.RegExpLiteral:
		if x.Literal != "" {
			p.s(x.Literal)
		} else {
			p.s("/" + x.Pattern + "/" + x.Flags)
		}
	case *ast.TemplateLiteral:
		p.template(x)
	case *ast.MetaProperty:
		p.s(x.Meta.Name.String())
		p.s(".")
		p.s(x.Property.Name.String())
	case *ast.ArrayLiteral:
		p.s("[")
		p.elements(x.Value, true)
		p.s("]")
	case *ast.ArrayPattern:
		p.s("[")
		// A trailing hole before the rest element is carried by the ", " separator.
		p.elements(x.Elements, x.Rest == nil)
		if x.Rest != nil {
			if len(x.Elements) > 0 {
				p.s(", ")
			}
			p.s("...")
			p.expr(x.Rest, precAssign)
		}
		p.s("]")
	case *ast.ObjectLiteral:
		p.properties(x.Value, nil)
	case *ast.ObjectPattern:
		p.properties(x.Properties, x.Rest)
	case *ast.PropertyShort:
		p.s(x.Name.Name.String())
		if x.Initializer != nil {
			p.s(" = ")
			p.expr(x.Initializer, precAssign)
		}
	case *ast.PropertyKeyed:
		p.property(x)
	case *ast.SpreadElement:
		p.s("...")
		p.expr(x.Expression, precAssign)
	case *ast.Binding:
		p.binding(x)
	case *ast.FunctionLiteral:
		p.function(x)
	case *ast.ArrowFunctionLiteral:
		p.arrow(x)
	case *ast.ClassLiteral:
		p.class(x)
	case *ast.SequenceExpression:
		for i, v := range x.Sequence {
			if i > 0 {
				p.s(", ")
			}
			p.expr(v, precAssign)
		}
	case *ast.AssignExpression:
		p.expr(x.Left, precCall)
		if x.Operator == token.ASSIGN {
			p.s(" = ")
		} else {
			p.s(" " + x.Operator.String() + "= ")
		}
		p.expr(x.Right, precAssign)
	case *ast.YieldExpression:
		p.s("yield")
		if x.Delegate {
			p.s("*")
		}
		if x.Argument != nil {
			p.s(" ")
			p.expr(x.Argument, precAssign)
		}
	case *ast.ConditionalExpression:
		p.expr(x.Test, precCoalesce)
		p.s(" ? ")
		p.expr(x.Consequent, precAssign)
		p.s(" : ")
		p.expr(x.Alternate, precAssign)
	case *ast.BinaryExpression:
		p.binary(x)
	case *ast.UnaryExpression:
		p.unary(x)
	case *ast.AwaitExpression:
		p.s("await ")
		p.expr(x.Argument, precUnary)
	case *ast.CallExpression:
		p.expr(x.Callee, precCall, isChainEnd(x.Callee))
		p.arguments(x.ArgumentList)
	case *ast.NewExpression:
		p.s("new ")
		p.expr(x.Callee, precCall, containsCall(x.Callee))
		p.arguments(x.ArgumentList)
	case *ast.DotExpression:
		p.memberObject(x.Left)
		if _, ok := x.Left.(*ast.Optional); !ok {
			p.s(".")
		}
		p.s(x.Identifier.Name.String())
	case *ast.PrivateDotExpression:
		p.memberObject(x.Left)
		if _, ok := x.Left.(*ast.Optional); !ok {
			p.s(".")
		}
		p.s("#")
		p.s(x.Identifier.Name.String())
	case *ast.BracketExpression:
		p.memberObject(x.Left)
		p.s("[")
		p.expr(x.Member, precLowest)
		p.s("]")
	case *ast.Optional:
		p.expr(x.Expression, precCall, isChainEnd(x.Expression))
		p.s("?.")
	case *ast.OptionalChain:
		p.node(x.Expression)
	default:
		p.fail(e)
	}
}

func (p *printer) memberObject(left ast.Expression) {
	_, number := left.(*ast.NumberLiteral)
	p.expr(left, precCall, number || isChainEnd(left))
}

func (p *printer) binary(x *ast.BinaryExpression) {
	prec := binaryPrecedence(x.Operator)
	lp, rp := precedence(x.Left), precedence(x.Right)

	leftWrap := lp < prec || mixesCoalesce(x.Operator, x.Left)
	rightWrap := rp < prec || mixesCoalesce(x.Operator, x.Right)
	if x.Operator == token.EXPONENT {
		leftWrap = leftWrap || lp <= prec || isPrefixUnary(x.Left)
	} else {
		rightWrap = rightWrap || rp == prec
	}

	p.expr(x.Left, prec, leftWrap)
	p.s(" ")
	p.s(x.Operator.String())
	p.s(" ")
	p.expr(x.Right, prec, rightWrap)
}

func (p *printer) unary(x *ast.UnaryExpression) {
	if x.Postfix {
		p.expr(x.Operand, precCall)
		p.s(x.Operator.String())
		return
	}
	p.s(x.Operator.String())
	switch x.Operator {
	case token.TYPEOF, token.VOID, token.DELETE:
		p.s(" ")
	case token.PLUS, token.MINUS:
		if inner, ok := x.Operand.(*ast.UnaryExpression); ok && !inner.Postfix && sameSign(x.Operator, inner.Operator) {
			p.s(" ")
		}
	}
	p.expr(x.Operand, precUnary)
}

func sameSign(outer, inner token.Token) bool {
	switch outer {
	case token.PLUS:
		return inner == token.PLUS || inner == token.INCREMENT
	case token.MINUS:
		return inner == token.MINUS || inner == token.DECREMENT
	}
	return false
}

func (p *printer) arguments(list []ast.Expression) {
	saved := p.noIn
	p.noIn = false
	p.s("(")
	for i, a := range list {
		if i > 0 {
			p.s(", ")
		}
		p.expr(a, precAssign)
	}
	p.s(")")
	p.noIn = saved
}

// elements prints a comma-separated element list. A final hole needs its own
// trailing comma unless more elements follow the list.
func (p *printer) elements(list []ast.Expression, last bool) {
	for i, v := range list {
		if i > 0 {
			p.s(", ")
		}
		if v != nil {
			p.expr(v, precAssign)
		}
	}
	if n := len(list); last && n > 0 && list[n-1] == nil {
		p.s(",")
	}
}

func (p *printer) properties(list []ast.Property, rest ast.Expression) {
	if len(list) == 0 && rest == nil {
		p.s("{}")
		return
	}
	p.s("{")
	for i, prop := range list {
		if i > 0 {
			p.s(",")
		}
		p.s(" ")
		p.node(prop)
	}
	if rest != nil {
		if len(list) > 0 {
			p.s(",")
		}
		p.s(" ...")
		p.expr(rest, precAssign)
	}
	p.s(" }")
}

func (p *printer) property(x *ast.PropertyKeyed) {
	switch x.Kind {
	case ast.PropertyKindGet, ast.PropertyKindSet, ast.PropertyKindMethod:
		if f, ok := x.Value.(*ast.FunctionLiteral); ok {
			p.method(x.Key, x.Computed, x.Kind, f)
			return
		}
	}
	p.propertyKey(x.Key, x.Computed)
	p.s(": ")
	p.expr(x.Value, precAssign)
}

func (p *printer) template(x *ast.TemplateLiteral) {
	if x.Tag != nil {
		p.expr(x.Tag, precCall, isChainEnd(x.Tag))
	}
	saved := p.noIn
	p.noIn = false
	p.s("`")
	for i, el := range x.Elements {
		p.s(el.Literal)
		if i < len(x.Expressions) {
			p.s("${")
			p.expr(x.Expressions[i], precLowest)
			p.s("}")
		}
	}
	p.s("`")
	p.noIn = saved
}

func (p *printer) stringLiteral(x *ast.StringLiteral) {
	if x.Literal != "" {
		p.s(x.Literal)
		return
	}
	quoted, _ := json.Marshal(x.Value.String())
	p.s(string(quoted))
}

func (p *printer) numberLiteral(x *ast.NumberLiteral) {
	if x.Literal != "" {
		p.s(x.Literal)
		return
	}
	p.s(fmt.Sprint(x.Value))
}
