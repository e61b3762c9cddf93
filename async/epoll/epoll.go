// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

// Package epoll provides a reactor for the async package built on epoll.
//
// A single goroutine waits on the epoll fd and marks registered fds ready.
// Handlers attached with [Reactor.Watch] are dispatched through an ants
// goroutine pool.
package epoll

import (
	"context"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	gpiolib "github.com/warthog618/go-gpiolib"
	"github.com/warthog618/go-gpiolib/async"
	"github.com/warthog618/go-gpiolib/logging"
	"golang.org/x/sys/unix"
)

const (
	// DefaultHandlerPoolSize is the capacity of the handler pool created
	// when no pool is provided.
	DefaultHandlerPoolSize = 64

	// ExpiryDuration is the interval after which idle handler goroutines
	// are released.
	ExpiryDuration = 10 * time.Second

	maxEvents = 64
)

// Reactor waits on registered fds with epoll.
//
// A Reactor is safe for concurrent use.
type Reactor struct {
	epfd int
	wfd  int

	pool    *ants.Pool
	ownPool bool

	mu      sync.Mutex
	regs    map[int32]*Registration
	closed  bool
	stopped chan struct{}
}

// Option defines the interface required to provide an option to New.
type Option interface {
	applyOption(*options)
}

type options struct {
	pool     *ants.Pool
	poolSize int
}

// PoolOption provides the pool used to dispatch handlers.
type PoolOption struct {
	pool *ants.Pool
}

// WithPool dispatches handlers through the provided pool.
//
// The pool remains owned by the caller and is not released by Close.  A
// blocking pool stalls the event loop while the pool is full, so the pool
// should be created with ants.WithNonblocking.
func WithPool(p *ants.Pool) PoolOption {
	return PoolOption{p}
}

func (o PoolOption) applyOption(opts *options) {
	opts.pool = o.pool
}

// HandlerPoolSizeOption sets the size of the handler pool.
type HandlerPoolSizeOption int

// WithHandlerPoolSize sets the capacity of the pool created to dispatch
// handlers.
//
// Ignored if WithPool is also provided.
func WithHandlerPoolSize(size int) HandlerPoolSizeOption {
	return HandlerPoolSizeOption(size)
}

func (o HandlerPoolSizeOption) applyOption(opts *options) {
	opts.poolSize = int(o)
}

// New creates a Reactor and starts its event loop.
func New(opts ...Option) (*Reactor, error) {
	o := options{poolSize: DefaultHandlerPoolSize}
	for _, opt := range opts {
		opt.applyOption(&o)
	}
	r := &Reactor{
		regs:    make(map[int32]*Registration),
		stopped: make(chan struct{}),
		pool:    o.pool,
	}
	var err error
	if r.epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	if r.wfd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		unix.Close(r.epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r.wfd)}
	if err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, r.wfd, &ev); err != nil {
		r.closeFds()
		return nil, os.NewSyscallError("epoll_ctl add", err)
	}
	if r.pool == nil {
		r.pool, err = ants.NewPool(o.poolSize, ants.WithOptions(ants.Options{
			ExpiryDuration: ExpiryDuration,
			Nonblocking:    true,
		}))
		if err != nil {
			r.closeFds()
			return nil, err
		}
		r.ownPool = true
	}
	go r.run()
	return r, nil
}

// Close stops the event loop and closes all registrations.
//
// Watched requests are not closed.
func (r *Reactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return gpiolib.ErrClosed
	}
	r.closed = true
	regs := r.regs
	r.regs = nil
	r.mu.Unlock()

	r.wake()
	<-r.stopped
	for _, reg := range regs {
		reg.shutdown()
	}
	if r.ownPool {
		r.pool.Release()
	}
	return r.closeFds()
}

// Register adds the fd to the reactor.
func (r *Reactor) Register(fd uintptr) (async.Readiness, error) {
	reg, err := r.register(fd, nil)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Watch registers the request with the reactor and calls the handler, from
// the handler pool, for each edge event read from the request.
//
// Events from a single request are delivered in order.  Close the returned
// Registration to stop watching.
func (r *Reactor) Watch(req *gpiolib.Request, handler func(gpiolib.EdgeEvent)) (*Registration, error) {
	w := &watcher{req: req, handler: handler}
	return r.register(req.Fd(), w)
}

func (r *Reactor) register(fd uintptr, w *watcher) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, gpiolib.ErrClosed
	}
	if _, ok := r.regs[int32(fd)]; ok {
		return nil, errors.Errorf("fd %d already registered", fd)
	}
	reg := &Registration{
		r:      r,
		fd:     int32(fd),
		notify: make(chan struct{}, 1),
		w:      w,
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return nil, os.NewSyscallError("epoll_ctl add", err)
	}
	r.regs[reg.fd] = reg
	logging.Debugf("registered fd %d with reactor", fd)
	return reg, nil
}

func (r *Reactor) unregister(reg *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.regs[reg.fd] != reg {
		return gpiolib.ErrClosed
	}
	delete(r.regs, reg.fd)
	return os.NewSyscallError("epoll_ctl del",
		unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(reg.fd), nil))
}

// eventfd requires a native endian uint64.
var (
	one     uint64 = 1
	wakeBuf        = (*(*[8]byte)(unsafe.Pointer(&one)))[:]
)

func (r *Reactor) wake() {
	for {
		_, err := unix.Write(r.wfd, wakeBuf)
		if err != unix.EINTR {
			return
		}
	}
}

func (r *Reactor) run() {
	defer close(r.stopped)
	events := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, 8)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			logging.Errorf("error occurs in epoll: %v", os.NewSyscallError("epoll_wait", err))
			return
		}
		for i := 0; i < n; i++ {
			fd := events[i].Fd
			if int(fd) == r.wfd {
				unix.Read(r.wfd, buf)
				continue
			}
			r.mu.Lock()
			reg := r.regs[fd]
			r.mu.Unlock()
			if reg != nil {
				reg.setReady()
			}
		}
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}
	}
}

// dispatch drains the watcher from the handler pool.
//
// The event loop never waits for a handler.  If the pool is saturated the
// drain runs on its own goroutine instead, so no edge is left undrained.
func (r *Reactor) dispatch(fd int32, w *watcher) {
	err := r.pool.Submit(w.drain)
	if err == nil {
		return
	}
	if errors.Is(err, ants.ErrPoolOverload) {
		logging.Warnf("handler pool overloaded, draining fd %d outside the pool", fd)
	} else {
		logging.Warnf("failed to dispatch handler for fd %d: %v", fd, err)
	}
	go w.drain()
}

func (r *Reactor) closeFds() error {
	err := unix.Close(r.wfd)
	if cerr := unix.Close(r.epfd); err == nil {
		err = cerr
	}
	return err
}

// Registration is an fd registered with a Reactor.
type Registration struct {
	r      *Reactor
	fd     int32
	notify chan struct{}
	w      *watcher

	mu     sync.Mutex
	ready  bool
	tick   uint64
	seen   uint64
	closed bool
}

// WaitReadable blocks until the fd is readable, the context is done, or the
// registration is closed.
func (reg *Registration) WaitReadable(ctx context.Context) error {
	for {
		reg.mu.Lock()
		if reg.closed {
			reg.mu.Unlock()
			return gpiolib.ErrClosed
		}
		if reg.ready {
			reg.seen = reg.tick
			reg.mu.Unlock()
			return nil
		}
		reg.mu.Unlock()
		select {
		case <-reg.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ClearReady clears the readable state, unless the reactor has marked the
// fd ready again since the last WaitReadable.
func (reg *Registration) ClearReady() {
	reg.mu.Lock()
	if reg.tick == reg.seen {
		reg.ready = false
	}
	reg.mu.Unlock()
}

// Close removes the fd from the reactor.  The fd itself is not closed.
func (reg *Registration) Close() error {
	err := reg.r.unregister(reg)
	reg.shutdown()
	return err
}

func (reg *Registration) setReady() {
	reg.mu.Lock()
	reg.ready = true
	reg.tick++
	reg.mu.Unlock()
	select {
	case reg.notify <- struct{}{}:
	default:
	}
	if reg.w != nil {
		reg.r.dispatch(reg.fd, reg.w)
	}
}

func (reg *Registration) shutdown() {
	reg.mu.Lock()
	reg.closed = true
	reg.mu.Unlock()
	select {
	case reg.notify <- struct{}{}:
	default:
	}
}

// watcher drains edge events from a request into a handler.
type watcher struct {
	// mu serialises drains so events are delivered in order.
	mu      sync.Mutex
	req     *gpiolib.Request
	handler func(gpiolib.EdgeEvent)
}

func (w *watcher) drain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		ok, err := w.req.HasEdgeEvent()
		if err != nil {
			logging.Warnf("error occurs checking edge events: %v", err)
			return
		}
		if !ok {
			return
		}
		evt, err := w.req.ReadEdgeEvent()
		if err != nil {
			logging.Warnf("error occurs reading edge event: %v", err)
			return
		}
		w.handler(evt)
	}
}
