package jsprint

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

// Binding strength of expression forms, loosest first.
const (
	precLowest = iota
	precComma
	precAssign
	precConditional
	precCoalesce // ?? and ||
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precExponent
	precUnary
	precUpdate
	precCall // member access, calls, new with arguments
	precPrimary
)

func precedence(e ast.Expression) int {
	switch x := e.(type) {
	case *ast.SequenceExpression:
		return precComma
	case *ast.AssignExpression, *ast.ArrowFunctionLiteral, *ast.YieldExpression:
		return precAssign
	case *ast.ConditionalExpression:
		return precConditional
	case *ast.BinaryExpression:
		return binaryPrecedence(x.Operator)
	case *ast.UnaryExpression:
		if x.Postfix {
			return precUpdate
		}
		return precUnary
	case *ast.AwaitExpression:
		return precUnary
	case *ast.CallExpression, *ast.NewExpression, *ast.DotExpression, *ast.PrivateDotExpression,
		*ast.BracketExpression, *ast.OptionalChain, *ast.Optional, *ast.MetaProperty:
		return precCall
	case *ast.TemplateLiteral:
		if x.Tag != nil {
			return precCall
		}
		return precPrimary
	default:
		return precPrimary
	}
}

func binaryPrecedence(op token.Token) int {
	switch op {
	case token.COALESCE, token.LOGICAL_OR:
		return precCoalesce
	case token.LOGICAL_AND:
		return precLogicalAnd
	case token.OR:
		return precBitOr
	case token.EXCLUSIVE_OR:
		return precBitXor
	case token.AND:
		return precBitAnd
	case token.EQUAL, token.NOT_EQUAL, token.STRICT_EQUAL, token.STRICT_NOT_EQUAL:
		return precEquality
	case token.LESS, token.GREATER, token.LESS_OR_EQUAL, token.GREATER_OR_EQUAL,
		token.INSTANCEOF, token.IN:
		return precRelational
	case token.SHIFT_LEFT, token.SHIFT_RIGHT, token.UNSIGNED_SHIFT_RIGHT:
		return precShift
	case token.PLUS, token.MINUS:
		return precAdditive
	case token.MULTIPLY, token.SLASH, token.REMAINDER:
		return precMultiplicative
	case token.EXPONENT:
		return precExponent
	default:
		return precLowest
	}
}

// mixesCoalesce reports whether child is a ?? operand of &&/|| or the reverse.
// The grammar rejects either mix without parentheses.
func mixesCoalesce(op token.Token, child ast.Expression) bool {
	b, ok := child.(*ast.BinaryExpression)
	if !ok {
		return false
	}
	logical := func(t token.Token) bool { return t == token.LOGICAL_AND || t == token.LOGICAL_OR }
	return (op == token.COALESCE && logical(b.Operator)) || (logical(op) && b.Operator == token.COALESCE)
}

func isPrefixUnary(e ast.Expression) bool {
	switch x := e.(type) {
	case *ast.UnaryExpression:
		return !x.Postfix
	case *ast.AwaitExpression:
		return true
	}
	return false
}

func isIn(e ast.Expression) bool {
	b, ok := e.(*ast.BinaryExpression)
	return ok && b.Operator == token.IN
}

// isChainEnd reports whether e closes an optional chain; using it as the object
// of a further access requires parentheses or the access would join the chain.
func isChainEnd(e ast.Expression) bool {
	_, ok := e.(*ast.OptionalChain)
	return ok
}

// containsCall reports whether a new-expression callee has a call in its
// member chain, which would otherwise be taken as the constructor arguments.
func containsCall(e ast.Expression) bool {
	for {
		switch x := e.(type) {
		case *ast.CallExpression, *ast.OptionalChain:
			return true
		case *ast.DotExpression:
			e = x.Left
		case *ast.PrivateDotExpression:
			e = x.Left
		case *ast.BracketExpression:
			e = x.Left
		case *ast.TemplateLiteral:
			if x.Tag == nil {
				return false
			}
			e = x.Tag
		default:
			return false
		}
	}
}

// leftmost returns the expression whose text starts e when printed without
// extra parentheses.
func leftmost(e ast.Expression) ast.Expression {
	for {
		switch x := e.(type) {
		case *ast.BinaryExpression:
			if mixesCoalesce(x.Operator, x.Left) || precedence(x.Left) < binaryPrecedence(x.Operator) {
				return x
			}
			e = x.Left
		case *ast.AssignExpression:
			e = x.Left
		case *ast.ConditionalExpression:
			if precedence(x.Test) < precCoalesce {
				return x
			}
			e = x.Test
		case *ast.SequenceExpression:
			if len(x.Sequence) == 0 {
				return x
			}
			e = x.Sequence[0]
		case *ast.CallExpression:
			e = x.Callee
		case *ast.DotExpression:
			e = x.Left
		case *ast.PrivateDotExpression:
			e = x.Left
		case *ast.BracketExpression:
			e = x.Left
		case *ast.UnaryExpression:
			if !x.Postfix {
				return x
			}
			e = x.Operand
		case *ast.Optional:
			e = x.Expression
		case *ast.OptionalChain:
			e = x.Expression
		case *ast.TemplateLiteral:
			if x.Tag == nil {
				return x
			}
			e = x.Tag
		default:
			return e
		}
	}
}

// needsStatementParens reports whether an expression statement would be read
// as a declaration, a block, or a lexical binding if printed bare.
func needsStatementParens(e ast.Expression) bool {
	switch x := leftmost(e).(type) {
	case *ast.ObjectLiteral, *ast.ObjectPattern, *ast.FunctionLiteral, *ast.ClassLiteral:
		return true
	case *ast.Identifier:
		return x.Name == "let"
	}
	return false
}

func startsWithObject(e ast.Expression) bool {
	switch leftmost(e).(type) {
	case *ast.ObjectLiteral, *ast.ObjectPattern:
		return true
	}
	return false
}

func startsWithLetBracket(e ast.Expression) bool {
	id, ok := leftmost(e).(*ast.Identifier)
	return ok && id.Name == "let"
}
