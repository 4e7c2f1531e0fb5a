package handler

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"firestige.xyz/netcodec/internal/log"
	"firestige.xyz/netcodec/pkg/packet"
)

type entry struct {
	name    string
	handler Handler
	prev    *entry
	next    *entry
}

// Pipeline is a doubly linked list of named handlers. Mutations may run
// concurrently with Start; each Start sees the list as it was when the
// call began.
type Pipeline struct {
	mu     sync.Mutex
	head   *entry
	tail   *entry
	byName map[string]*entry

	// snapshot is rebuilt on every mutation and read without locking.
	snapshot *atomic.Pointer[[]*entry]
	logger   log.Logger
}

func NewPipeline() *Pipeline {
	head, tail := &entry{}, &entry{}
	head.next, tail.prev = tail, head
	empty := []*entry{}
	return &Pipeline{
		head:     head,
		tail:     tail,
		byName:   make(map[string]*entry),
		snapshot: atomic.NewPointer(&empty),
	}
}

// SetLogger overrides the process logger for handler failures.
func (p *Pipeline) SetLogger(l log.Logger) { p.logger = l }

func (p *Pipeline) log() log.Logger {
	if p.logger != nil {
		return p.logger
	}
	return log.GetLogger()
}

func (p *Pipeline) AddFirst(name string, h Handler) error {
	return p.insert(name, h, func() *entry { return p.head })
}

func (p *Pipeline) AddLast(name string, h Handler) error {
	return p.insert(name, h, func() *entry { return p.tail.prev })
}

// AddBefore inserts h ahead of the handler named base.
func (p *Pipeline) AddBefore(base, name string, h Handler) error {
	return p.insertAt(base, name, h, func(e *entry) *entry { return e.prev })
}

// AddAfter inserts h behind the handler named base.
func (p *Pipeline) AddAfter(base, name string, h Handler) error {
	return p.insertAt(base, name, h, func(e *entry) *entry { return e })
}

func (p *Pipeline) insertAt(base, name string, h Handler, anchor func(*entry) *entry) error {
	var err error
	ierr := p.insert(name, h, func() *entry {
		e, ok := p.byName[base]
		if !ok {
			err = fmt.Errorf("%w: %q", ErrHandlerNotFound, base)
			return nil
		}
		return anchor(e)
	})
	if err != nil {
		return err
	}
	return ierr
}

// insert links a new entry after the entry chosen by after, which runs
// with the lock held.
func (p *Pipeline) insert(name string, h Handler, after func() *entry) error {
	if h == nil {
		return ErrNilHandler
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkAdd(name, h, nil); err != nil {
		return err
	}
	prev := after()
	if prev == nil {
		return nil
	}
	e := &entry{name: name, handler: h, prev: prev, next: prev.next}
	prev.next.prev = e
	prev.next = e
	p.byName[name] = e
	p.publish()
	return nil
}

// checkAdd enforces name uniqueness and, for non-sharable handlers, type
// uniqueness. skip is ignored, for Replace.
func (p *Pipeline) checkAdd(name string, h Handler, skip *entry) error {
	if e, ok := p.byName[name]; ok && e != skip {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if isSharable(h) {
		return nil
	}
	typ := reflect.TypeOf(h)
	for e := p.head.next; e != p.tail; e = e.next {
		if e != skip && reflect.TypeOf(e.handler) == typ {
			return fmt.Errorf("%w: %s already added as %q", ErrDuplicateHandler, typ, e.name)
		}
	}
	return nil
}

// Remove unlinks the handler named name and returns it.
func (p *Pipeline) Remove(name string) (Handler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(p.byName, name)
	p.publish()
	return e.handler, nil
}

// Replace swaps the handler named old for h, registered as name, keeping
// its position. It returns the replaced handler.
func (p *Pipeline) Replace(old, name string, h Handler) (Handler, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byName[old]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, old)
	}
	if err := p.checkAdd(name, h, e); err != nil {
		return nil, err
	}
	prev := e.handler
	delete(p.byName, old)
	e.name, e.handler = name, h
	p.byName[name] = e
	p.publish()
	return prev, nil
}

func (p *Pipeline) Get(name string) (Handler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return e.handler, true
}

// Names lists handler names in dispatch order.
func (p *Pipeline) Names() []string {
	entries := *p.snapshot.Load()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

func (p *Pipeline) Len() int { return len(*p.snapshot.Load()) }

func (p *Pipeline) publish() {
	entries := make([]*entry, 0, len(p.byName))
	for e := p.head.next; e != p.tail; e = e.next {
		entries = append(entries, &entry{name: e.name, handler: e.handler})
	}
	p.snapshot.Store(&entries)
}

// Start materializes the chain under root and fires it. A decode failure
// does not stop dispatch: handlers see the headers decoded before it, and
// the decode error leads the returned error.
func (p *Pipeline) Start(root packet.Packet) error {
	chain, err := packet.Chain(root)
	if err != nil {
		p.log().WithError(err).Debug("header chain truncated")
	}
	return multierr.Append(err, p.Fire(chain))
}

// Fire hands each handler, in order, every header of its type. Handler
// failures and panics are logged and collected; every handler runs.
func (p *Pipeline) Fire(chain []packet.Packet) error {
	var errs error
	for _, e := range *p.snapshot.Load() {
		want := e.handler.Type()
		for _, pkt := range chain {
			if want != packet.TypeAny && pkt.Type() != want {
				continue
			}
			if err := invoke(e, pkt); err != nil {
				p.log().WithFields(map[string]interface{}{
					"handler": e.name,
					"type":    pkt.Type().String(),
				}).WithError(err).Warn("handler failed")
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func invoke(e *entry, pkt packet.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Handler: e.name, Type: pkt.Type(), Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()
	if err := e.handler.Handle(pkt); err != nil {
		return &Error{Handler: e.name, Type: pkt.Type(), Err: err}
	}
	return nil
}
