// README: Order state-event journal backed by PostgreSQL.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Journal persists the append-only transition audit trail. Orders themselves
// live in the document store; the journal only exists for timelines and
// offline analysis, so writers treat it as best-effort.
type Journal struct {
	db *pgxpool.Pool
}

func NewJournal(db *pgxpool.Pool) *Journal {
	return &Journal{db: db}
}

// Schema is the DDL the journal expects; applied by deploy tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS order_state_events (
    id          BIGSERIAL PRIMARY KEY,
    order_id    TEXT        NOT NULL,
    from_status TEXT        NOT NULL DEFAULT '',
    to_status   TEXT        NOT NULL,
    actor_role  TEXT        NOT NULL,
    actor_id    TEXT        NOT NULL DEFAULT '',
    reason      TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS order_state_events_order_id_idx
    ON order_state_events (order_id, id);
`

func (j *Journal) Append(ctx context.Context, e order.Event) error {
	_, err := j.db.Exec(ctx, `
        INSERT INTO order_state_events (
            order_id, from_status, to_status, actor_role, actor_id, reason, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorRole),
		string(e.ActorID),
		e.Reason,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending state event for order %s: %w", e.OrderID, err)
	}
	return nil
}

// ListByOrder returns an order's transition timeline, oldest first.
func (j *Journal) ListByOrder(ctx context.Context, orderID types.ID) ([]order.Event, error) {
	rows, err := j.db.Query(ctx, `
        SELECT id, order_id, from_status, to_status, actor_role, actor_id, reason, created_at
        FROM order_state_events
        WHERE order_id = $1
        ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, fmt.Errorf("listing state events for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []order.Event
	for rows.Next() {
		var e order.Event
		var oid, from, to, role, actorID string
		if err := rows.Scan(&e.ID, &oid, &from, &to, &role, &actorID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.OrderID = types.ID(oid)
		e.FromStatus = order.Status(from)
		e.ToStatus = order.Status(to)
		e.ActorRole = order.Role(role)
		e.ActorID = types.ID(actorID)
		out = append(out, e)
	}
	return out, rows.Err()
}
