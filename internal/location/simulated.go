package location

import (
	"context"
	"sync"
)

// SimulatedProvider is a Provider fed by an external position source, such as
// a device bridge piping fixes into the tracker process. It fans each emitted
// position out to all active watches.
type SimulatedProvider struct {
	mu         sync.Mutex
	permission PermissionState
	last       *Position
	watches    map[WatchHandle]Callback
	nextHandle WatchHandle
}

// NewSimulatedProvider creates a provider with permission already granted.
func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{
		permission: PermissionGranted,
		watches:    make(map[WatchHandle]Callback),
	}
}

// SetPermission overrides the reported permission state.
func (p *SimulatedProvider) SetPermission(state PermissionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permission = state
}

// Emit delivers a position to every active watch and records it as the
// current fix. Callbacks run on the caller's goroutine, preserving the
// one-sample-at-a-time processing model.
func (p *SimulatedProvider) Emit(pos Position) {
	p.mu.Lock()
	p.last = &pos
	cbs := make([]Callback, 0, len(p.watches))
	for _, cb := range p.watches {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()

	for _, cb := range cbs {
		cb(pos)
	}
}

func (p *SimulatedProvider) RequestPermissions(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.permission == PermissionPrompt {
		p.permission = PermissionGranted
	}
	return p.permission, nil
}

func (p *SimulatedProvider) CheckPermissions(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission, nil
}

func (p *SimulatedProvider) GetCurrentPosition(ctx context.Context) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.permission == PermissionDenied {
		return nil, ErrPermissionDenied
	}
	if p.last == nil {
		return nil, ErrNoFix
	}

	pos := *p.last
	return &pos, nil
}

func (p *SimulatedProvider) WatchPosition(cb Callback) (WatchHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.permission == PermissionDenied {
		return 0, ErrPermissionDenied
	}

	p.nextHandle++
	handle := p.nextHandle
	p.watches[handle] = cb
	return handle, nil
}

func (p *SimulatedProvider) ClearWatch(handle WatchHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.watches, handle)
}

// WatchCount returns the number of active watches.
func (p *SimulatedProvider) WatchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watches)
}

// Ensure SimulatedProvider implements Provider.
var _ Provider = (*SimulatedProvider)(nil)
