package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/projection"
	"github.com/MetricCode/yetueats-orders/internal/store"
)

func create(t *testing.T, m *store.Memory, o *order.Order) *order.Order {
	t.Helper()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if _, err := m.Create(context.Background(), o); err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

// waitFor consumes snapshots until one satisfies the predicate. Intermediate
// snapshots may be skipped; that is the latest-value contract.
func waitFor(t *testing.T, v *projection.View, desc string, ok func([]*order.Order) bool) []*order.Order {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case list, open := <-v.Updates():
			if !open {
				t.Fatalf("view closed waiting for %s (err: %v)", desc, v.Err())
			}
			if ok(list) {
				return list
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func TestView_InitialSnapshotFirst(t *testing.T) {
	m := store.NewMemory()
	existing := create(t, m, &order.Order{CustomerID: "c1", Status: order.StatusPlaced})

	v, err := projection.ForCustomer(context.Background(), m, "c1")
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	defer v.Close()

	list := waitFor(t, v, "initial snapshot", func(l []*order.Order) bool { return len(l) == 1 })
	if list[0].ID != existing.ID {
		t.Errorf("snapshot contains %s, want %s", list[0].ID, existing.ID)
	}
}

func TestView_ConvergesAfterWrites(t *testing.T) {
	m := store.NewMemory()
	v, err := projection.ForRestaurant(context.Background(), m, "r1")
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	defer v.Close()

	waitFor(t, v, "empty initial snapshot", func(l []*order.Order) bool { return len(l) == 0 })

	create(t, m, &order.Order{RestaurantID: "r1", Status: order.StatusPlaced})
	create(t, m, &order.Order{RestaurantID: "r1", Status: order.StatusPlaced})
	create(t, m, &order.Order{RestaurantID: "other", Status: order.StatusPlaced})

	list := waitFor(t, v, "two matching orders", func(l []*order.Order) bool { return len(l) == 2 })
	for _, o := range list {
		if o.RestaurantID != "r1" {
			t.Errorf("foreign order %s leaked into the view", o.ID)
		}
	}
}

func TestView_NewestFirstDeterministic(t *testing.T) {
	m := store.NewMemory()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	create(t, m, &order.Order{CustomerID: "c1", Status: order.StatusPlaced, CreatedAt: base})
	create(t, m, &order.Order{CustomerID: "c1", Status: order.StatusPlaced, CreatedAt: base.Add(time.Minute)})
	create(t, m, &order.Order{CustomerID: "c1", Status: order.StatusPlaced, CreatedAt: base.Add(time.Minute)})

	v, err := projection.ForCustomer(context.Background(), m, "c1")
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	defer v.Close()

	list := waitFor(t, v, "three orders", func(l []*order.Order) bool { return len(l) == 3 })
	if list[2].CreatedAt != base {
		t.Error("oldest order is not last")
	}
	// Equal timestamps break ties on id so repeated snapshots are identical.
	if list[0].CreatedAt.Equal(list[1].CreatedAt) && list[0].ID > list[1].ID {
		t.Error("tie-break ordering violated")
	}
}

func TestView_CourierCandidatesExcludeClaimed(t *testing.T) {
	m := store.NewMemory()
	ready := create(t, m, &order.Order{RestaurantID: "r1", Status: order.StatusReadyForPickup})
	create(t, m, &order.Order{RestaurantID: "r1", Status: order.StatusReadyForPickup, CourierID: "k1"})
	create(t, m, &order.Order{RestaurantID: "r1", Status: order.StatusPreparing})

	v, err := projection.ForCourierCandidates(context.Background(), m)
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	defer v.Close()

	list := waitFor(t, v, "one candidate", func(l []*order.Order) bool { return len(l) == 1 })
	if list[0].ID != ready.ID {
		t.Errorf("candidate = %s, want %s", list[0].ID, ready.ID)
	}

	// Claiming the last candidate empties the pool.
	claimed := list[0]
	claimed.CourierID = "k2"
	claimed.Status = order.StatusPickedUp
	if _, err := m.ConditionalUpdate(context.Background(), claimed, claimed.Version); err != nil {
		t.Fatalf("claim: %v", err)
	}
	waitFor(t, v, "empty pool", func(l []*order.Order) bool { return len(l) == 0 })
}

func TestView_LaggingConsumerStillConverges(t *testing.T) {
	m := store.NewMemory()
	v, err := projection.ForRestaurant(context.Background(), m, "r1")
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	defer v.Close()

	// Write a burst without reading a single snapshot.
	const writes = 20
	for i := 0; i < writes; i++ {
		create(t, m, &order.Order{RestaurantID: "r1", Status: order.StatusPlaced})
	}

	waitFor(t, v, "converged snapshot", func(l []*order.Order) bool { return len(l) == writes })
}

func TestView_CloseClosesUpdates(t *testing.T) {
	m := store.NewMemory()
	v, err := projection.ForCustomer(context.Background(), m, "c1")
	if err != nil {
		t.Fatalf("open view: %v", err)
	}

	v.Close()
	v.Close() // idempotent

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-v.Updates():
			if !open {
				if v.Err() != nil {
					t.Errorf("clean close reported error: %v", v.Err())
				}
				return
			}
		case <-deadline:
			t.Fatal("updates channel did not close")
		}
	}
}
