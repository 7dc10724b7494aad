package instrument

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies the expression of an expression statement.
type Kind int

const (
	KindOther Kind = iota
	KindConditional
	KindTemplate
	KindArray
	KindParenthesized
	KindBinary
	KindLogical
	KindLiteral
	KindIdentifier
	KindMember
	KindConsole
	KindCall
)

var kindNames = map[Kind]string{
	KindOther:         "other",
	KindConditional:   "conditional",
	KindTemplate:      "template",
	KindArray:         "array",
	KindParenthesized: "parenthesized",
	KindBinary:        "binary",
	KindLogical:       "logical",
	KindLiteral:       "literal",
	KindIdentifier:    "identifier",
	KindMember:        "member",
	KindConsole:       "console",
	KindCall:          "call",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a configuration name to a Kind. "other" is not accepted.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name && k != KindOther {
			return k, nil
		}
	}
	return KindOther, fmt.Errorf("unknown expression kind %q (known: %s)", name, strings.Join(KindNames(), ", "))
}

// KindNames lists every configurable kind name in a stable order.
func KindNames() []string {
	names := make([]string, 0, len(kindNames)-1)
	for k, n := range kindNames {
		if k != KindOther {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// KindSet is a set of kinds the pass is allowed to rewrite.
type KindSet uint32

// AllKinds enables every rewritable kind.
func AllKinds() KindSet {
	var s KindSet
	for k := range kindNames {
		if k != KindOther {
			s = s.With(k)
		}
	}
	return s
}

// ParseKinds builds a set from configuration names. An empty list means all kinds.
func ParseKinds(names []string) (KindSet, error) {
	if len(names) == 0 {
		return AllKinds(), nil
	}
	var s KindSet
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return 0, err
		}
		s = s.With(k)
	}
	return s, nil
}

func (s KindSet) With(k Kind) KindSet    { return s | 1<<uint(k) }
func (s KindSet) Without(k Kind) KindSet { return s &^ (1 << uint(k)) }

func (s KindSet) Has(k Kind) bool {
	return k != KindOther && s&(1<<uint(k)) != 0
}

func (s KindSet) String() string {
	var names []string
	for k, n := range kindNames {
		if s.Has(k) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
