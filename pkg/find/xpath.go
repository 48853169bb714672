package find

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/functest-core/pkg/core"
)

// xpathMarker prefixes the origin string of elements resolved by xpath.
const xpathMarker = "xpath: "

// textAttribute is the element attribute matched by text locators.
const textAttribute = "text"

// ExtractXPath returns the expression recorded in an element origin string
// of the form "xpath: <expression>".
func ExtractXPath(foundBy string) (string, error) {
	idx := strings.Index(foundBy, xpathMarker)
	if idx < 0 {
		return "", core.ErrXPathUnavailable.WithDetails(map[string]interface{}{"foundBy": foundBy})
	}
	expr := strings.TrimSpace(foundBy[idx+len(xpathMarker):])
	if expr == "" {
		return "", core.ErrXPathUnavailable.WithMessage("empty xpath in element origin").
			WithDetails(map[string]interface{}{"foundBy": foundBy})
	}
	return expr, nil
}

// ComposeDescendant restricts child to descendants of scope by literal
// concatenation: "//A[1]" and "//*[@text='Save']" give "//A[1]//*[@text='Save']".
func ComposeDescendant(scope, child string) (string, error) {
	scope = strings.TrimRight(strings.TrimSpace(scope), "/")
	if scope == "" {
		return "", core.ErrInvalidLocator.WithMessage("empty scope expression")
	}
	child = strings.TrimLeft(strings.TrimSpace(child), "/")
	if child == "" {
		return "", core.ErrInvalidLocator.WithMessage("empty child expression")
	}
	return scope + "//" + child, nil
}

// ComposeParent returns the expression selecting the parent of expr.
func ComposeParent(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", core.ErrInvalidLocator.WithMessage("empty expression")
	}
	return expr + "/..", nil
}

// TextXPath builds an absolute expression matching controlType elements whose
// text equals value (exact) or contains it. An empty controlType matches any element.
func TextXPath(controlType, value string, exact bool) string {
	if controlType == "" {
		controlType = AnyControl
	}
	if exact {
		return fmt.Sprintf("//%s[@%s=%s]", controlType, textAttribute, xpathLiteral(value))
	}
	return fmt.Sprintf("//%s[contains(@%s,%s)]", controlType, textAttribute, xpathLiteral(value))
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if p != "" {
			args = append(args, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
