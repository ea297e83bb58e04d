// internal/tui/progress.go
//
// Progress view for a render loop. It follows The Elm Architecture like any
// bubbletea program: the loop runs on its own goroutine and reports back through
// messages, so the view animates while renders stay strictly sequential.
// Key presses never stop the loop; the view closes once every render is done.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/render-loop/internal/dispatch"
	"github.com/kingrea/render-loop/internal/plan"
)

type renderState int

const (
	statePending renderState = iota
	stateRunning
	stateDone
	stateFailed
)

type renderStartedMsg struct{ index int }

type renderFinishedMsg struct{ outcome dispatch.Outcome }

type loopDoneMsg struct{ report dispatch.Report }

// Progress is the bubbletea model for a running loop.
type Progress struct {
	invocations []plan.Invocation
	states      []renderState
	outcomes    []dispatch.Outcome
	spinner     spinner.Model
	report      dispatch.Report
	done        bool
}

// NewProgress builds a view over the planned invocations.
func NewProgress(invocations []plan.Invocation) *Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle
	return &Progress{
		invocations: invocations,
		states:      make([]renderState, len(invocations)),
		outcomes:    make([]dispatch.Outcome, len(invocations)),
		spinner:     s,
	}
}

// Init starts the spinner.
func (p *Progress) Init() tea.Cmd {
	return p.spinner.Tick
}

// Update applies loop events. Key presses are ignored.
func (p *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case renderStartedMsg:
		if msg.index >= 0 && msg.index < len(p.states) {
			p.states[msg.index] = stateRunning
		}
	case renderFinishedMsg:
		i := msg.outcome.Invocation.Index
		if i >= 0 && i < len(p.states) {
			p.outcomes[i] = msg.outcome
			if msg.outcome.Succeeded() {
				p.states[i] = stateDone
			} else {
				p.states[i] = stateFailed
			}
		}
	case loopDoneMsg:
		p.report = msg.report
		p.done = true
		return p, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}
	return p, nil
}

// View renders one line per invocation plus a footer.
func (p *Progress) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("renderloop"))
	b.WriteString("\n\n")
	finished := 0
	for i, inv := range p.invocations {
		var marker string
		switch p.states[i] {
		case statePending:
			marker = dimStyle.Render("·")
		case stateRunning:
			marker = p.spinner.View()
		case stateDone:
			marker = okStyle.Render("✓")
			finished++
		case stateFailed:
			marker = failStyle.Render("✗")
			finished++
		}
		line := fmt.Sprintf("%s %d  %s", marker, inv.Value, inv.Output)
		if p.states[i] == stateFailed {
			line += dimStyle.Render(fmt.Sprintf("  (exit %d)", p.outcomes[i].ExitCode))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d/%d finished", finished, len(p.invocations))))
	b.WriteString("\n")
	return b.String()
}

// Report returns the loop report once the view has finished.
func (p *Progress) Report() dispatch.Report { return p.report }

// programObserver forwards loop events into a running program.
type programObserver struct {
	program *tea.Program
}

func (o *programObserver) Started(_ string, inv plan.Invocation) {
	if o.program != nil {
		o.program.Send(renderStartedMsg{index: inv.Index})
	}
}

func (o *programObserver) Finished(_ string, outcome dispatch.Outcome) {
	if o.program != nil {
		o.program.Send(renderFinishedMsg{outcome: outcome})
	}
}

// RunProgress runs the loop built by newLoop behind the progress view and
// returns its report. newLoop receives the observer that feeds the view and
// must register it on the loop. RunProgress returns only after the loop has
// finished, even when the program stops early.
func RunProgress(invocations []plan.Invocation, newLoop func(dispatch.Observer) *dispatch.Loop, opts ...tea.ProgramOption) (dispatch.Report, error) {
	model := NewProgress(invocations)
	obs := &programObserver{}
	loop := newLoop(obs)

	program := tea.NewProgram(model, opts...)
	obs.program = program

	done := make(chan dispatch.Report, 1)
	go func() {
		report := loop.Run(invocations)
		done <- report
		program.Send(loopDoneMsg{report: report})
	}()

	_, err := program.Run()
	report := <-done
	if err != nil {
		return report, fmt.Errorf("tui: run progress: %w", err)
	}
	return report, nil
}
