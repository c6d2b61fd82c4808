// Package dispatch provides ordered per-peer callback delivery on top of
// gopool. A reactor fans inbound frames from many peers into user
// callbacks; spec.md requires that frames from the same peer are
// delivered to on_received in the order they arrived, while frames from
// different peers may run concurrently. Plain gopool.Go doesn't give
// that directly: a worker pool hands tasks to whichever goroutine is
// free next, so two callbacks for the same peer can race if each
// callback is submitted as its own task. Dispatch gets ordering back
// cheaply by hashing the peer id (hash/xfnv, the same hash the teacher's
// concurrent map sharding uses) onto a fixed set of lanes, each lane a
// single long-lived loop draining its own queue in order; that loop
// itself is the one long-running task each lane submits to gopool, so
// the lane's goroutine lifecycle and any panic it doesn't recover from
// are managed the same way every other background callback in this
// module is.
package dispatch

import (
	"github.com/particlenet/particle/gopool"
	"github.com/particlenet/particle/hash/xfnv"
	"github.com/particlenet/particle/xlog"
)

// Dispatcher delivers per-peer-ordered callbacks across a fixed pool of
// lanes.
type Dispatcher struct {
	lanes []chan func()
	pool  *gopool.GoPool
	log   *xlog.Logger
	done  chan struct{}
}

// New creates a Dispatcher with the given lane count and per-lane queue
// depth. laneCount is rounded up to at least 1.
func New(laneCount, queueDepth int, logger *xlog.Logger) *Dispatcher {
	if laneCount < 1 {
		laneCount = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	opt := gopool.DefaultOption()
	// one permanently-busy worker per lane: each lane's task never
	// returns, so MaxIdleWorkers only needs to cover laneCount to avoid
	// gopool's "drain and exit without waiting" path for any of them.
	opt.MaxIdleWorkers = laneCount
	d := &Dispatcher{
		lanes: make([]chan func(), laneCount),
		pool:  gopool.NewGoPool("dispatch", opt, logger),
		log:   xlog.Named(logger, "dispatch"),
		done:  make(chan struct{}),
	}
	for i := range d.lanes {
		lane := make(chan func(), queueDepth)
		d.lanes[i] = lane
		d.pool.Go(func() { d.runLane(lane) })
	}
	return d
}

func (d *Dispatcher) runLane(lane chan func()) {
	for {
		select {
		case f, ok := <-lane:
			if !ok {
				return
			}
			d.runOne(f)
		case <-d.done:
			return
		}
	}
}

func (d *Dispatcher) runOne(f func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("panic in dispatched callback", "recovered", r)
		}
	}()
	f()
}

func (d *Dispatcher) laneFor(peerID string) chan func() {
	return d.lanes[xfnv.HashStr(peerID)%uint64(len(d.lanes))]
}

// Dispatch enqueues f onto the lane owned by peerID. Blocks if that
// lane's queue is full, applying backpressure to the caller rather than
// silently reordering or dropping.
func (d *Dispatcher) Dispatch(peerID string, f func()) {
	select {
	case d.laneFor(peerID) <- f:
	case <-d.done:
	}
}

// TryDispatch is the non-blocking form of Dispatch; returns false if the
// peer's lane is full or the Dispatcher is closed.
func (d *Dispatcher) TryDispatch(peerID string, f func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.laneFor(peerID) <- f:
		return true
	default:
		return false
	}
}

// Close stops all lanes. Queued callbacks that have not yet run are
// dropped.
func (d *Dispatcher) Close() {
	select {
	case <-d.done:
		return
	default:
		close(d.done)
	}
}
