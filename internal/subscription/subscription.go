package subscription

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/tomb.v2"

	"github.com/otbe/factcast/internal/fact"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// State is the lifecycle position of a Subscription.
type State int32

const (
	StateCreated State = iota
	StateCatchup
	StateTailing
	StateComplete
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCatchup:
		return "catchup"
	case StateTailing:
		return "tailing"
	case StateComplete:
		return "complete"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// errStopped unwinds the delivery goroutine once the subscription is dying.
var errStopped = errors.New("subscription stopped")

// Subscription is the handle of one running delivery.
type Subscription struct {
	id       string
	req      fact.Request
	specs    []fact.Spec
	obs      Observer
	store    Store
	notifier *Notifier
	pageSize int
	fallback time.Duration
	logger   logpkg.Logger
	onDone   func(*Subscription)

	tomb *tomb.Tomb
	ctx  context.Context

	// cursor is owned by the delivery goroutine.
	cursor    uint64
	delivered uint64

	state      atomic.Int32
	lastSerial atomic.Uint64
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id }

// State reports the current lifecycle state.
func (s *Subscription) State() State { return State(s.state.Load()) }

// LastSerial is the serial of the last fact handed to the observer, or the
// starting cursor if nothing was delivered yet. Re-subscribing with
// SinceSerial(LastSerial()) resumes without gaps.
func (s *Subscription) LastSerial() uint64 { return s.lastSerial.Load() }

// Kill requests cancellation and returns immediately. It is safe to call
// from inside observer callbacks.
func (s *Subscription) Kill() { s.tomb.Kill(nil) }

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.tomb.Dead() }

// Wait blocks until delivery has stopped and returns the store failure that
// ended it, if any. Cancellation is not an error.
func (s *Subscription) Wait() error {
	err := s.tomb.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, tomb.ErrDying) {
		return nil
	}
	return err
}

// Close cancels delivery and waits for the delivery goroutine to exit. No
// observer method is called after Close returns. Close is idempotent.
func (s *Subscription) Close() error {
	s.Kill()
	_ = s.Wait()
	return nil
}

func (s *Subscription) alive() bool {
	select {
	case <-s.tomb.Dying():
		return false
	default:
		return true
	}
}

func (s *Subscription) run() error {
	defer func() {
		if s.State() != StateComplete {
			s.state.Store(int32(StateClosed))
		}
		s.logger.Debug("subscription.closed",
			logpkg.Uint64("delivered", s.delivered),
			logpkg.Uint64("cursor", s.cursor),
			logpkg.Str("state", s.State().String()))
		if s.onDone != nil {
			s.onDone(s)
		}
	}()

	s.state.Store(int32(StateCatchup))
	start := time.Now()
	upper, err := s.store.LatestSerial(s.ctx)
	if err != nil {
		return s.fail(storeErr(err, "latest serial"))
	}
	if err := s.catchup(upper); err != nil {
		return s.fail(err)
	}
	catchupSeconds.Observe(time.Since(start).Seconds())
	s.logger.Debug("subscription.catchup",
		logpkg.Uint64("delivered", s.delivered),
		logpkg.Uint64("upper", upper),
		logpkg.Dur("took", time.Since(start)))

	if !s.alive() {
		return nil
	}
	s.obs.OnCatchup()

	if !s.req.Continuous() {
		if !s.alive() {
			return nil
		}
		s.state.Store(int32(StateComplete))
		s.obs.OnComplete()
		return nil
	}

	s.state.Store(int32(StateTailing))
	return s.fail(s.tail())
}

// fail reports err to the observer once, unless the subscription is already
// being cancelled. A scan that failed because the context ended counts as
// cancellation.
func (s *Subscription) fail(err error) error {
	if err == nil || errors.Is(err, errStopped) || !s.alive() || s.ctx.Err() != nil {
		return nil
	}
	subscriptionErrors.Inc()
	s.logger.Warn("subscription.error", logpkg.Err(err), logpkg.Uint64("cursor", s.cursor))
	s.obs.OnError(err)
	return err
}

// catchup replays every matching fact with a serial in (cursor, upper] and
// leaves the cursor at upper.
func (s *Subscription) catchup(upper uint64) error {
	for s.cursor < upper {
		if !s.alive() {
			return errStopped
		}
		page, err := s.store.ScanFrom(s.ctx, s.cursor, s.specs, s.pageSize)
		if err != nil {
			return storeErr(err, "scan")
		}
		for i := range page {
			if page[i].Serial > upper {
				s.advance(upper)
				return nil
			}
			if err := s.deliver(&page[i]); err != nil {
				return err
			}
		}
		if len(page) < s.pageSize {
			break
		}
	}
	s.advance(upper)
	return nil
}

// tail waits for append signals or the fallback timer and drains the store
// from the cursor after each wake-up.
func (s *Subscription) tail() error {
	for {
		// Take the channel before scanning so an append that lands after the
		// scan still wakes us.
		ch, err := s.notifier.Channel()
		if err != nil {
			return storeErr(err, "subscribe to appends")
		}
		if err := s.drain(); err != nil {
			return err
		}
		timer := time.NewTimer(s.fallback)
		select {
		case <-s.tomb.Dying():
			timer.Stop()
			return errStopped
		case <-ch:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (s *Subscription) drain() error {
	for {
		if !s.alive() {
			return errStopped
		}
		page, err := s.store.ScanFrom(s.ctx, s.cursor, s.specs, s.pageSize)
		if err != nil {
			return storeErr(err, "scan")
		}
		for i := range page {
			if err := s.deliver(&page[i]); err != nil {
				return err
			}
		}
		if len(page) < s.pageSize {
			return nil
		}
	}
}

// deliver hands f to the observer if it matches, then moves the cursor.
// Facts at or below the cursor are dropped so delivery stays strictly
// increasing even if a store returns overlapping pages.
func (s *Subscription) deliver(f *fact.Fact) error {
	if f.Serial <= s.cursor {
		return nil
	}
	if !fact.Matches(f, s.specs) {
		s.cursor = f.Serial
		return nil
	}
	if !s.alive() {
		return errStopped
	}
	item := Item{Serial: f.Serial, ID: f.ID}
	if !s.req.IDOnly() {
		c := f.Clone()
		item.Fact = &c
	}
	s.obs.OnNext(item)
	s.cursor = f.Serial
	s.delivered++
	s.lastSerial.Store(f.Serial)
	factsDelivered.WithLabelValues(deliveryMode(s.req.IDOnly())).Inc()
	return nil
}

func (s *Subscription) advance(to uint64) {
	if s.cursor < to {
		s.cursor = to
	}
}
