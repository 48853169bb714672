package find

import (
	"fmt"

	"github.com/devicelab-dev/functest-core/pkg/core"
	"github.com/devicelab-dev/functest-core/pkg/driver/appium"
)

// AnyControl matches elements of any type in text locators.
const AnyControl = "*"

// Kind selects how a Locator is translated into a protocol query.
type Kind int

// Locator kinds
const (
	KindText Kind = iota
	KindType
	KindXPath
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindType:
		return "type"
	case KindXPath:
		return "xpath"
	default:
		return "unknown"
	}
}

// Locator describes an element lookup intent.
type Locator struct {
	Kind        Kind
	ControlType string   // KindText only; empty means any control
	Value       string   // text, control type or xpath expression
	Exact       bool     // KindText only
	Scope       *Element // restricts the lookup to descendants of a resolved element
}

// ByText locates controlType elements by text.
func ByText(controlType, value string, exact bool) Locator {
	return Locator{Kind: KindText, ControlType: controlType, Value: value, Exact: exact}
}

// ByType locates elements by exact control type.
func ByType(value string) Locator {
	return Locator{Kind: KindType, Value: value}
}

// ByXPath locates elements by a raw xpath expression.
func ByXPath(expr string) Locator {
	return Locator{Kind: KindXPath, Value: expr}
}

// Within returns a copy of the locator scoped to descendants of scope.
func (l Locator) Within(scope *Element) Locator {
	l.Scope = scope
	return l
}

// Query is a protocol-level locator: strategy plus expression.
type Query struct {
	Using string
	Value string
}

// String renders the query in element origin form, e.g. "xpath: //A".
func (q Query) String() string {
	return q.Using + ": " + q.Value
}

// Query translates the locator into a protocol query.
func (l Locator) Query() (Query, error) {
	if l.Value == "" && l.Kind != KindText {
		return Query{}, core.ErrInvalidLocator.WithMessage(fmt.Sprintf("empty %s locator", l.Kind))
	}

	var expr string
	switch l.Kind {
	case KindText:
		expr = TextXPath(l.ControlType, l.Value, l.Exact)
	case KindType:
		if l.Scope == nil {
			return Query{Using: appium.StrategyClassName, Value: l.Value}, nil
		}
		expr = "//" + l.Value
	case KindXPath:
		expr = l.Value
	default:
		return Query{}, core.ErrInvalidLocator.WithMessage(fmt.Sprintf("unknown locator kind %d", l.Kind))
	}

	if l.Scope != nil {
		scope, err := l.Scope.XPath()
		if err != nil {
			return Query{}, err
		}
		if expr, err = ComposeDescendant(scope, expr); err != nil {
			return Query{}, err
		}
	}
	return Query{Using: appium.StrategyXPath, Value: expr}, nil
}

// String describes the locator for logging.
func (l Locator) String() string {
	q, err := l.Query()
	if err != nil {
		return fmt.Sprintf("%s %q", l.Kind, l.Value)
	}
	return q.String()
}
