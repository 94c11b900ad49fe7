package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

const eventBuffer = 32

// Program runs the model against a controller and forwards cycle events
// into it.
type Program struct {
	program *tea.Program
	events  chan domain.Event
}

// NewProgram creates a program. Inline programs keep the normal screen.
func NewProgram(controller ports.CycleController, initial *domain.CurrentState, opts Options) *Program {
	model := NewModel(controller, initial, opts)
	var programOpts []tea.ProgramOption
	if !opts.Inline {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	return &Program{
		program: tea.NewProgram(model, programOpts...),
		events:  make(chan domain.Event, eventBuffer),
	}
}

// Notify queues an event for display. It never blocks; events beyond
// the buffer are dropped.
func (p *Program) Notify(event domain.Event) {
	select {
	case p.events <- event:
	default:
	}
}

// Run blocks until the user quits or ctx is cancelled.
func (p *Program) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				p.program.Quit()
				return
			case e := <-p.events:
				p.program.Send(EventMsg(e))
			}
		}
	}()

	_, err := p.program.Run()
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
