package factsvc

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store"
	"github.com/otbe/factcast/internal/subscription"
	"github.com/otbe/factcast/pkg/id"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// DefaultSubBufLen is the per-subscriber queue length between the engine
// and the transport writer.
const DefaultSubBufLen = 1024

// maxFlushBatch bounds how many queued notifications are written before a
// Flush.
const maxFlushBatch = 64

// Options configures a Service.
type Options struct {
	Logger logpkg.Logger
	// Properties are reported by ServerConfig.
	Properties map[string]string
	// SubBufLen overrides DefaultSubBufLen.
	SubBufLen int
}

// Service implements the fact store operations used by the transports.
type Service struct {
	store   store.Store
	manager *subscription.Manager
	ids     *id.Generator
	logger  logpkg.Logger

	props     map[string]string
	subBufLen int
}

// New returns a Service over st. Subscriptions run on manager, which must
// read from st.
func New(st store.Store, manager *subscription.Manager, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.SubBufLen <= 0 {
		opts.SubBufLen = DefaultSubBufLen
	}
	props := make(map[string]string, len(opts.Properties))
	for k, v := range opts.Properties {
		props[k] = v
	}
	return &Service{
		store:     st,
		manager:   manager,
		ids:       id.NewGenerator(),
		logger:    opts.Logger.WithComponent("facts"),
		props:     props,
		subBufLen: opts.SubBufLen,
	}
}

// Publish assigns time-ordered ids to facts that have none and appends the
// batch atomically. The returned facts carry their serials.
func (s *Service) Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error) {
	t0 := time.Now()
	batch := make([]fact.Fact, len(facts))
	for i := range facts {
		batch[i] = facts[i]
		if batch[i].ID == uuid.Nil {
			batch[i].ID = s.ids.Next()
		}
	}
	out, err := s.store.Publish(ctx, batch)
	if err != nil {
		s.logger.Warn("facts.publish.failed", logpkg.Err(err), logpkg.Int("count", len(batch)))
		return nil, err
	}
	if len(out) > 0 {
		s.logger.With(
			logpkg.Int("count", len(out)),
			logpkg.Uint64("first", out[0].Serial),
			logpkg.Uint64("last", out[len(out)-1].Serial),
			logpkg.Int64("dur_ms", time.Since(t0).Milliseconds()),
		).Debug("facts.publish")
	}
	return out, nil
}

// Subscribe runs req and streams its notifications to sink until the
// subscription completes, fails, or sink's context ends. A store failure is
// sent to the sink as a KindError notification and then returned.
// Cancellation returns nil.
func (s *Service) Subscribe(ctx context.Context, req fact.Request, sink SubscribeSink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sink.Context().Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	queue := make(chan Notification, s.subBufLen)
	obs := &queueObserver{ctx: ctx, out: queue, idOnly: req.IDOnly()}
	sub, err := s.manager.Subscribe(ctx, req, obs)
	if err != nil {
		return err
	}
	// Cancel first: a delivery goroutine blocked in push only wakes on ctx.
	defer func() {
		cancel()
		_ = sub.Close()
	}()
	logger := s.logger.With(logpkg.Str(logpkg.SubscriptionKey, sub.ID()))
	logger.Debug("facts.subscribe", logpkg.Bool("continuous", req.Continuous()), logpkg.Bool("idOnly", req.IDOnly()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-queue:
			done, err := s.write(sink, n)
			// coalesce whatever is already queued into one flush
			for i := 1; !done && err == nil && i < maxFlushBatch; i++ {
				select {
				case n = <-queue:
					done, err = s.write(sink, n)
				default:
					i = maxFlushBatch
				}
			}
			if ferr := sink.Flush(); err == nil {
				err = ferr
			}
			if err != nil {
				logger.Debug("facts.subscribe.closed", logpkg.Err(err))
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// write sends n and reports whether it ended the subscription. For error
// notifications the carried error is returned after sending.
func (s *Service) write(sink SubscribeSink, n Notification) (bool, error) {
	if err := sink.Send(n); err != nil {
		return true, err
	}
	switch n.Kind {
	case KindComplete:
		return true, nil
	case KindError:
		return true, n.Err
	}
	return false, nil
}

// queueObserver turns engine callbacks into queued notifications. A full
// queue blocks the subscription's delivery goroutine only.
type queueObserver struct {
	ctx    context.Context
	out    chan<- Notification
	idOnly bool
}

func (o *queueObserver) push(n Notification) {
	select {
	case o.out <- n:
	case <-o.ctx.Done():
	}
}

func (o *queueObserver) OnNext(it subscription.Item) {
	n := Notification{Kind: KindFact, Serial: it.Serial, ID: it.ID, Fact: it.Fact}
	if o.idOnly {
		n.Kind = KindID
	}
	o.push(n)
}

func (o *queueObserver) OnCatchup()        { o.push(Notification{Kind: KindCatchup}) }
func (o *queueObserver) OnComplete()       { o.push(Notification{Kind: KindComplete}) }
func (o *queueObserver) OnError(err error) { o.push(Notification{Kind: KindError, Err: err}) }

// SerialOf maps a fact id to its serial.
func (s *Service) SerialOf(ctx context.Context, factID uuid.UUID) (uint64, bool, error) {
	return s.store.SerialOf(ctx, factID)
}

// LatestSerial returns the highest committed serial.
func (s *Service) LatestSerial(ctx context.Context) (uint64, error) {
	return s.store.LatestSerial(ctx)
}

// FetchByID loads one fact.
func (s *Service) FetchByID(ctx context.Context, factID uuid.UUID) (fact.Fact, bool, error) {
	return s.store.FetchByID(ctx, factID)
}

func (s *Service) EnumerateNamespaces(ctx context.Context) ([]string, error) {
	return s.store.EnumerateNamespaces(ctx)
}

func (s *Service) EnumerateTypes(ctx context.Context, ns string) ([]string, error) {
	return s.store.EnumerateTypes(ctx, ns)
}

// ServerConfig reports the protocol version and configured properties.
func (s *Service) ServerConfig() ServerConfig {
	props := make(map[string]string, len(s.props))
	for k, v := range s.props {
		props[k] = v
	}
	return ServerConfig{Version: CurrentProtocol, Properties: props}
}

// ActiveSubscriptions reports the number of running subscriptions.
func (s *Service) ActiveSubscriptions() int { return s.manager.Active() }
