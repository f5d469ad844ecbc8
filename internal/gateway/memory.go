package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/keshon/disbot/pkg/cmd"
)

// MemoryCatalog is an in-process Catalog. It backs dry runs and tests.
type MemoryCatalog struct {
	mu       sync.Mutex
	commands map[cmd.Scope][]cmd.RemoteCommand
	nextID   int
	fetches  int
	applied  []Change

	// BeforeFetch, when set, runs before every fetch; a non-nil error fails it.
	BeforeFetch func(ctx context.Context, scope cmd.Scope) error
	// BeforeApply, when set, runs before every change; a non-nil error fails it.
	BeforeApply func(ctx context.Context, scope cmd.Scope, ch Change) error
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{commands: make(map[cmd.Scope][]cmd.RemoteCommand)}
}

// Seed replaces the remote commands of scope.
func (m *MemoryCatalog) Seed(scope cmd.Scope, defs ...cmd.Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[scope] = nil
	for _, d := range defs {
		m.commands[scope] = append(m.commands[scope], cmd.RemoteCommand{ID: m.newID(), Definition: d})
	}
}

func (m *MemoryCatalog) FetchRemoteCommands(ctx context.Context, scope cmd.Scope) ([]cmd.RemoteCommand, error) {
	if m.BeforeFetch != nil {
		if err := m.BeforeFetch(ctx, scope); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	return append([]cmd.RemoteCommand(nil), m.commands[scope]...), nil
}

func (m *MemoryCatalog) ApplyRemoteCommand(ctx context.Context, scope cmd.Scope, ch Change) error {
	if m.BeforeApply != nil {
		if err := m.BeforeApply(ctx, scope, ch); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.commands[scope]
	switch ch.Op {
	case OpAdd:
		m.commands[scope] = append(list, cmd.RemoteCommand{ID: m.newID(), Definition: ch.Local})
	case OpUpdate, OpRemove:
		i := indexOf(list, ch.Remote.ID)
		if i < 0 {
			return fmt.Errorf("unknown command id %s", ch.Remote.ID)
		}
		if ch.Op == OpUpdate {
			list[i].Definition = ch.Local
		} else {
			m.commands[scope] = append(list[:i:i], list[i+1:]...)
		}
	default:
		return fmt.Errorf("unknown op %d", ch.Op)
	}
	m.applied = append(m.applied, ch)
	return nil
}

// Applied returns every change applied so far, in order.
func (m *MemoryCatalog) Applied() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Change(nil), m.applied...)
}

// Fetches returns how many successful fetches were served.
func (m *MemoryCatalog) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *MemoryCatalog) newID() string {
	m.nextID++
	return fmt.Sprintf("%d", m.nextID)
}

func indexOf(list []cmd.RemoteCommand, id string) int {
	for i, rc := range list {
		if rc.ID == id {
			return i
		}
	}
	return -1
}
