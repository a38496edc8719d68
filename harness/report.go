package harness

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Reporter prints run summaries to a terminal.
type Reporter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ReporterOption func(*Reporter)

func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

func WithVerbose(v bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = v
	}
}

func WithNoColor(nc bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = nc
	}
}

func (r *Reporter) paint(attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	if r.noColor {
		c.DisableColor()
	}
	return c.SprintFunc()
}

// Report writes one line per case followed by the totals.
func (r *Reporter) Report(title string, s *Summary) {
	green := r.paint(color.FgGreen)
	red := r.paint(color.FgRed)
	cyan := r.paint(color.FgCyan)
	bold := r.paint(color.Bold)

	fmt.Fprintf(r.writer, "\n%s\n\n", bold("Running: "+title))

	for _, res := range s.Results {
		if res.Err != nil {
			fmt.Fprintf(r.writer, "  %s %s %s\n", red("x"), res.Case.Name, red(fmt.Sprintf("(%v)", res.Err)))
			continue
		}

		symbol := green("✓")
		if !res.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(r.writer, "  %s %s %s\n", symbol, res.Case.Name, cyan(fmt.Sprintf("(%dms)", res.Duration.Milliseconds())))

		if !res.Passed {
			fmt.Fprintf(r.writer, "    Expected: %s\n", res.Case.Expect)
			fmt.Fprintf(r.writer, "    Actual:   %s\n", res.Outcome)
			if res.Message != "" {
				fmt.Fprintf(r.writer, "    %s\n", res.Message)
			}
		}

		if r.verbose {
			fmt.Fprintf(r.writer, "    Variant: %s, Interface: %s, Attempts: %d, NIC changes: %d\n",
				res.Case.Variant, res.Interface, res.Attempts, res.NicChanges)
			if res.HTTPStatus != 0 {
				fmt.Fprintf(r.writer, "    Status: %d\n", res.HTTPStatus)
			}
			for _, hop := range res.Redirects {
				fmt.Fprintf(r.writer, "    Redirect: %s\n", hop)
			}
		}
	}

	fmt.Fprintf(r.writer, "\nCases: ")
	if s.Passed > 0 {
		fmt.Fprintf(r.writer, "%s, ", green(fmt.Sprintf("%d passed", s.Passed)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(r.writer, "%s, ", red(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintf(r.writer, "%d total\n", len(s.Results))
	fmt.Fprintf(r.writer, "Time:  %dms\n", s.Duration.Milliseconds())
}
