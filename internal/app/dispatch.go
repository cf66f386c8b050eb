package app

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// RunMsg carries work posted from timers and network goroutines. Update runs
// it, so engine and client state only change on the Bubble Tea goroutine.
type RunMsg func()

// Dispatcher posts functions into a running program.
type Dispatcher struct {
	p atomic.Pointer[tea.Program]
}

// Attach binds the program. Posts made before Attach are dropped.
func (d *Dispatcher) Attach(p *tea.Program) { d.p.Store(p) }

// Post sends fn to the program. It returns without running fn once the
// program has exited.
func (d *Dispatcher) Post(fn func()) {
	if p := d.p.Load(); p != nil {
		p.Send(RunMsg(fn))
	}
}
