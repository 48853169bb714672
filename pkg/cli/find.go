package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/functest-core/pkg/core"
	"github.com/devicelab-dev/functest-core/pkg/driver/appium"
	"github.com/devicelab-dev/functest-core/pkg/find"
)

var findCommand = &cli.Command{
	Name:  "find",
	Usage: "Resolve an element in a running Appium session",
	Description: `Issues a single bounded lookup and prints the element ID, its
description and the query that found it.

Examples:
  functest find --session 5f2c --text Login
  functest find --session 5f2c --text Sav --contains --control-type XCUIElementTypeButton
  functest find --session 5f2c --within "//XCUIElementTypeWindow[1]" --text Save
  functest find --session 5f2c --type XCUIElementTypeCell --all
  functest find --session 5f2c --xpath "//XCUIElementTypeCell[2]" --parent`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Usage:   "Appium server URL",
			Value:   "http://127.0.0.1:4723/wd/hub",
			EnvVars: []string{"APPIUM_URL"},
		},
		&cli.StringFlag{
			Name:     "session",
			Usage:    "Existing Appium session ID",
			Required: true,
			EnvVars:  []string{"APPIUM_SESSION"},
		},
		&cli.StringFlag{Name: "text", Usage: "Match by element text"},
		&cli.StringFlag{Name: "type", Usage: "Match by control type"},
		&cli.StringFlag{Name: "xpath", Usage: "Match by xpath expression"},
		&cli.StringFlag{Name: "control-type", Usage: "Restrict --text to this control type"},
		&cli.BoolFlag{Name: "contains", Usage: "Match --text as a substring"},
		&cli.StringFlag{Name: "within", Usage: "Xpath of a scope element; matches only its descendants"},
		&cli.BoolFlag{Name: "parent", Usage: "Print the parent of the matched element"},
		&cli.BoolFlag{Name: "all", Usage: "Print every match"},
		&cli.BoolFlag{Name: "quiet", Usage: "Do not log misses as errors"},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Lookup timeout (default: defaultTimeout from config.yaml)",
		},
	},
	Action: runFind,
}

func runFind(c *cli.Context) error {
	loc, err := locatorFromFlags(c)
	if err != nil {
		return err
	}

	settings, err := readSettings(c)
	if err != nil {
		return err
	}

	client := appium.NewClient(c.String("url"))
	client.Attach(c.String("session"))
	finder := find.NewFinder(client, settings.FindTimeout())
	return runLookup(c, finder, loc)
}

// runLookup performs the lookup described by the flags and prints the result.
func runLookup(c *cli.Context, finder *find.Finder, loc find.Locator) error {
	if err := finder.Wait().Apply(); err != nil {
		return fmt.Errorf("failed to set implicit wait: %w", err)
	}

	opts := []find.Option{find.WithTimeout(c.Duration("timeout"))}
	if c.Bool("quiet") {
		opts = append(opts, find.Quiet())
	}

	if within := c.String("within"); within != "" {
		scope := finder.FindElementByLocator(find.ByXPath(within), opts...)
		if scope == nil {
			return core.ErrElementNotFound.WithMessage("scope element not found: " + within)
		}
		loc = loc.Within(scope)
	}

	out := c.App.Writer
	if c.Bool("all") {
		elements := finder.FindElementsByLocator(loc, opts...)
		if len(elements) == 0 {
			return core.ErrElementNotFound.WithMessage("no elements found: " + loc.String())
		}
		for _, el := range elements {
			printElement(out, el)
		}
		return nil
	}

	el := finder.FindElementByLocator(loc, opts...)
	if el == nil {
		return core.ErrElementNotFound.WithMessage("element not found: " + loc.String())
	}
	if c.Bool("parent") {
		if el = finder.Parent(el, opts...); el == nil {
			return core.ErrElementNotFound.WithMessage("parent not found")
		}
	}
	printElement(out, el)
	return nil
}

func locatorFromFlags(c *cli.Context) (find.Locator, error) {
	var (
		loc find.Locator
		n   int
	)
	if c.IsSet("text") {
		loc = find.ByText(c.String("control-type"), c.String("text"), !c.Bool("contains"))
		n++
	}
	if c.IsSet("type") {
		loc = find.ByType(c.String("type"))
		n++
	}
	if c.IsSet("xpath") {
		loc = find.ByXPath(c.String("xpath"))
		n++
	}
	if n != 1 {
		return find.Locator{}, core.ErrInvalidLocator.WithMessage("exactly one of --text, --type or --xpath is required")
	}
	return loc, nil
}

func printElement(w io.Writer, el *find.Element) {
	fmt.Fprintf(w, "%s\t%s\t%s\n", el.ID(), el.Description(), el.FoundBy())
}
