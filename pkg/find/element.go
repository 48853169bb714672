package find

import (
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/functest-core/pkg/core"
)

// Session is the remote automation session used for lookups.
// *appium.Client implements it.
type Session interface {
	FindElement(strategy, value string) (string, error)
	FindElements(strategy, value string) ([]string, error)
	SetImplicitWait(timeout time.Duration) error
	GetElementTagName(elementID string) (string, error)
	GetElementRect(elementID string) (x, y, w, h int, err error)
}

// Element is a resolved UI element. It records the query that produced it
// and is never mutated after resolution.
type Element struct {
	id      string
	foundBy string
	session Session

	descOnce sync.Once
	desc     string
}

func newElement(session Session, id string, q Query) *Element {
	return &Element{id: id, foundBy: q.String(), session: session}
}

// ID returns the remote element reference.
func (e *Element) ID() string {
	return e.id
}

// FoundBy returns the origin of the element, e.g. "xpath: //A/B[2]".
func (e *Element) FoundBy() string {
	return e.foundBy
}

// XPath returns the xpath expression that resolved the element.
// Elements resolved by another strategy return core.ErrXPathUnavailable.
func (e *Element) XPath() (string, error) {
	return ExtractXPath(e.foundBy)
}

// Bounds returns the element rectangle.
func (e *Element) Bounds() (core.Bounds, error) {
	x, y, w, h, err := e.session.GetElementRect(e.id)
	if err != nil {
		return core.Bounds{}, err
	}
	return core.Bounds{X: x, Y: y, Width: w, Height: h}, nil
}

// Description returns "<tag> at <x>:<y>" using the element center.
// Computed on first use.
func (e *Element) Description() string {
	e.descOnce.Do(func() {
		tag, _ := e.session.GetElementTagName(e.id)
		b, err := e.Bounds()
		if err != nil {
			e.desc = tag + " at unknown"
			return
		}
		x, y := b.Center()
		e.desc = fmt.Sprintf("%s at %d:%d", tag, x, y)
	})
	return e.desc
}

// String implements fmt.Stringer without remote calls.
func (e *Element) String() string {
	return fmt.Sprintf("element %s (%s)", e.id, e.foundBy)
}
