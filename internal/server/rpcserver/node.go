package rpcserver

import (
	"log/slog"
	"sync"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/pkg/arena"
)

// DefaultDeathQueue is the capacity of the death event channel.
const DefaultDeathQueue = 1024

// deathKinds is the order in which a dying node's links fire.
var deathKinds = []domain.DeathKind{
	domain.DeathServiceDied,
	domain.DeathPackageListenerDied,
	domain.DeathServiceListenerDied,
}

// Sink receives the notifications addressed to the objects it exported.
type Sink interface {
	Push(sink domain.Handle, reg domain.Registration) error
}

type node struct {
	owner Sink
	chain []string
	links map[domain.DeathKind]struct{}
}

// NodeTable holds every exported object and implements service.Binder.
type NodeTable struct {
	mu       sync.Mutex
	nodes    *arena.Arena[*node]
	deaths   chan domain.DeathEvent
	stop     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewNodeTable creates a table whose death channel buffers queue events.
func NewNodeTable(queue int, logger *slog.Logger) *NodeTable {
	if queue <= 0 {
		queue = DefaultDeathQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeTable{
		nodes:  arena.New[*node](),
		deaths: make(chan domain.DeathEvent, queue),
		stop:   make(chan struct{}),
		logger: logger,
	}
}

func keyOf(h domain.Handle) arena.Key {
	return arena.Key{Index: h.Index, Gen: h.Gen}
}

func handleOf(k arena.Key) domain.Handle {
	return domain.Handle{Index: k.Index, Gen: k.Gen}
}

// Deaths returns the channel death events are published on.
func (t *NodeTable) Deaths() <-chan domain.DeathEvent {
	return t.deaths
}

// Export creates an object owned by owner that implements chain, most
// derived interface first.
func (t *NodeTable) Export(owner Sink, chain []string) (domain.Handle, error) {
	if len(chain) == 0 {
		return domain.Handle{}, domain.ErrBadRequest.WithDetails("empty interface chain")
	}
	for _, iface := range chain {
		if _, err := domain.ParseFQName(iface); err != nil {
			return domain.Handle{}, err
		}
	}

	n := &node{
		owner: owner,
		chain: append([]string(nil), chain...),
		links: make(map[domain.DeathKind]struct{}),
	}
	return handleOf(t.nodes.Insert(n)), nil
}

// Drop kills h and publishes one death event per link it had. It blocks
// while the death channel is full, until Close.
func (t *NodeTable) Drop(h domain.Handle) bool {
	t.mu.Lock()
	n, ok := t.nodes.Remove(keyOf(h))
	var events []domain.DeathEvent
	if ok {
		for _, kind := range deathKinds {
			if _, linked := n.links[kind]; linked {
				events = append(events, domain.DeathEvent{Kind: kind, Ref: h.Weak()})
			}
		}
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	t.logger.Debug("object died", "handle", h, "links", len(events))
	t.publish(events)
	return true
}

func (t *NodeTable) publish(events []domain.DeathEvent) {
	for _, ev := range events {
		select {
		case t.deaths <- ev:
		case <-t.stop:
			return
		}
	}
}

// Alive reports whether h names a live object.
func (t *NodeTable) Alive(h domain.Handle) bool {
	return t.nodes.Contains(keyOf(h))
}

// Len returns the number of live objects.
func (t *NodeTable) Len() int {
	return t.nodes.Len()
}

// Close stops death delivery. Pending Drop calls return.
func (t *NodeTable) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// InterfaceChain implements service.Binder.
func (t *NodeTable) InterfaceChain(ref domain.Handle) ([]string, error) {
	n, ok := t.nodes.Get(keyOf(ref))
	if !ok {
		return nil, domain.ErrNodeNotFound.WithDetails(ref.String())
	}
	return append([]string(nil), n.chain...), nil
}

// LinkToDeath implements service.Binder. Linking to an object that is
// already gone fails with ErrNodeDead and still publishes the death, so
// a registration racing with the death gets cleaned up.
func (t *NodeTable) LinkToDeath(ref domain.Handle, kind domain.DeathKind) error {
	t.mu.Lock()
	n, ok := t.nodes.Get(keyOf(ref))
	if ok {
		n.links[kind] = struct{}{}
	}
	t.mu.Unlock()

	if ok {
		return nil
	}
	if !ref.IsZero() {
		go t.publish([]domain.DeathEvent{{Kind: kind, Ref: ref.Weak()}})
	}
	return domain.ErrNodeDead.WithDetails(ref.String())
}

// UnlinkToDeath implements service.Binder.
func (t *NodeTable) UnlinkToDeath(ref domain.Handle, kind domain.DeathKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes.Get(keyOf(ref)); ok {
		delete(n.links, kind)
	}
}

// Notify implements service.Notifier.
func (t *NodeTable) Notify(sink domain.Handle, reg domain.Registration) error {
	n, ok := t.nodes.Get(keyOf(sink))
	if !ok {
		return domain.ErrNodeDead.WithDetails(sink.String())
	}
	if err := n.owner.Push(sink, reg); err != nil {
		return domain.ErrDeliveryFailed.WithDetails(sink.String()).WithCause(err)
	}
	return nil
}
