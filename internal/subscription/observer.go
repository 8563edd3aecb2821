package subscription

import (
	"github.com/google/uuid"

	"github.com/otbe/factcast/internal/fact"
)

// Item is one delivery. Fact is nil for id-only subscriptions.
type Item struct {
	Serial uint64
	ID     uuid.UUID
	Fact   *fact.Fact
}

// Observer receives the notifications of one subscription. Calls are made
// from a single goroutine, one at a time, in delivery order. A slow OnNext
// slows only its own subscription.
//
// Observers must not call Subscription.Close from inside a callback since
// Close waits for the delivery goroutine; use Kill instead.
type Observer interface {
	OnNext(Item)
	OnCatchup()
	OnComplete()
	OnError(error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are no-ops.
type ObserverFuncs struct {
	Next     func(Item)
	Catchup  func()
	Complete func()
	Error    func(error)
}

func (o ObserverFuncs) OnNext(it Item) {
	if o.Next != nil {
		o.Next(it)
	}
}

func (o ObserverFuncs) OnCatchup() {
	if o.Catchup != nil {
		o.Catchup()
	}
}

func (o ObserverFuncs) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}
