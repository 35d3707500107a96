package store

import (
	"testing"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
)

func TestFirestoreSubscription_OverflowLeavesAReset(t *testing.T) {
	sub := &firestoreSubscription{ch: make(chan order.Change, 2)}

	sub.deliver(order.Change{Kind: order.ChangeCreated, Order: &order.Order{ID: "o1"}})
	sub.deliver(order.Change{Kind: order.ChangeCreated, Order: &order.Order{ID: "o2"}})
	// Buffer full: the overflowing change must not vanish silently; the
	// oldest buffered entry is evicted in favour of a reset.
	sub.deliver(order.Change{Kind: order.ChangeCreated, Order: &order.Order{ID: "o3"}})

	var got []order.Change
	for {
		select {
		case c := <-sub.ch:
			got = append(got, c)
			continue
		default:
		}
		break
	}
	if len(got) != 2 {
		t.Fatalf("buffered changes = %d, want 2", len(got))
	}
	if got[0].Kind != order.ChangeCreated || got[0].Order.ID != "o2" {
		t.Errorf("first change = %+v, want the surviving o2 create", got[0])
	}
	if got[1].Kind != order.ChangeReset {
		t.Errorf("last change kind = %d, want reset", got[1].Kind)
	}
}

func TestFirestoreSubscription_RepeatedOverflowStillEndsInReset(t *testing.T) {
	sub := &firestoreSubscription{ch: make(chan order.Change, 1)}

	sub.deliver(order.Change{Kind: order.ChangeCreated, Order: &order.Order{ID: "o1"}})
	sub.deliver(order.Change{Kind: order.ChangeUpdated, Order: &order.Order{ID: "o1"}})
	sub.deliver(order.Change{Kind: order.ChangeUpdated, Order: &order.Order{ID: "o1"}})

	c := <-sub.ch
	if c.Kind != order.ChangeReset {
		t.Fatalf("kind = %d, want reset", c.Kind)
	}
	select {
	case extra := <-sub.ch:
		t.Fatalf("unexpected extra change %+v", extra)
	default:
	}
}
