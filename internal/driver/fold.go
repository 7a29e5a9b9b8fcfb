// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/epics-base/epics-ci/internal/cictx"
)

// printer writes the user-facing progress stream: section folds, headings
// and notices. Styles degrade to plain text when out is not a terminal.
type printer struct {
	out     io.Writer
	service cictx.Service
	heading lipgloss.Style
	notice  lipgloss.Style
	label   lipgloss.Style
	good    lipgloss.Style
}

func newPrinter(out io.Writer, service cictx.Service) *printer {
	r := lipgloss.NewRenderer(out)
	return &printer{
		out:     out,
		service: service,
		heading: r.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		notice:  r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		label:   r.NewStyle().Bold(true),
		good:    r.NewStyle().Foreground(lipgloss.Color("#10B981")),
	}
}

// FoldStart opens a collapsible log section in the CI service's syntax.
func (p *printer) FoldStart(tag, title string) {
	switch p.service {
	case cictx.ServiceTravis:
		fmt.Fprintf(p.out, "travis_fold:start:%s%s\n", tag, p.notice.Render(title))
	case cictx.ServiceAppVeyor:
		fmt.Fprintln(p.out, p.notice.Render(`===== \/ \/ \/ ===== START: `+title+` =====`))
	case cictx.ServiceGitHubActions:
		fmt.Fprintf(p.out, "::group::%s\n", title)
	default:
		fmt.Fprintln(p.out, p.notice.Render("==> "+title))
	}
}

// FoldEnd closes the section opened by FoldStart with the same tag.
func (p *printer) FoldEnd(tag, title string) {
	switch p.service {
	case cictx.ServiceTravis:
		fmt.Fprintf(p.out, "\ntravis_fold:end:%s\r", tag)
	case cictx.ServiceAppVeyor:
		fmt.Fprintln(p.out, p.notice.Render(`----- /\ /\ /\ -----   END: `+title+` -----`))
	case cictx.ServiceGitHubActions:
		fmt.Fprintln(p.out, "::endgroup::")
	}
}

// Heading prints an informational header line.
func (p *printer) Heading(format string, args ...any) {
	fmt.Fprintln(p.out, p.heading.Render(fmt.Sprintf(format, args...)))
}

// Notice prints a highlighted line.
func (p *printer) Notice(format string, args ...any) {
	fmt.Fprintln(p.out, p.notice.Render(fmt.Sprintf(format, args...)))
}

// Println prints plain text.
func (p *printer) Println(s string) {
	fmt.Fprintln(p.out, s)
}
