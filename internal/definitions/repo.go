package definitions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/lib/pq"
)

// Repo reads definitions from PostgreSQL
type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) RingGroups(ctx context.Context) ([]types.RingGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, number, name, strategy, ring_time, fallback_type, fallback_value
  FROM ring_groups
 ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ring groups: %w", err)
	}
	defer rows.Close()

	var groups []types.RingGroup
	for rows.Next() {
		var g types.RingGroup
		if err := rows.Scan(&g.ID, &g.Number, &g.Name, &g.Strategy, &g.RingTime, &g.Fallback.Type, &g.Fallback.Value); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	members, err := r.groupMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Members = members[groups[i].ID]
	}
	return groups, nil
}

func (r *Repo) RingGroup(ctx context.Context, id int64) (types.RingGroup, error) {
	var g types.RingGroup
	err := r.db.QueryRowContext(ctx, `
SELECT id, number, name, strategy, ring_time, fallback_type, fallback_value
  FROM ring_groups
 WHERE id = $1
`, id).Scan(&g.ID, &g.Number, &g.Name, &g.Strategy, &g.RingTime, &g.Fallback.Type, &g.Fallback.Value)
	if err == sql.ErrNoRows {
		return types.RingGroup{}, apperr.NotFound("ring group", fmt.Sprintf("ring group %d", id))
	}
	if err != nil {
		return types.RingGroup{}, fmt.Errorf("failed to get ring group: %w", err)
	}

	members, err := r.groupMembers(ctx, []int64{id})
	if err != nil {
		return types.RingGroup{}, err
	}
	g.Members = members[id]
	return g, nil
}

// groupMembers loads members for several groups, each in position order
func (r *Repo) groupMembers(ctx context.Context, ids []int64) (map[int64][]types.RingGroupMember, error) {
	out := make(map[int64][]types.RingGroupMember, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT group_id, type, value, enabled
  FROM ring_group_members
 WHERE group_id = ANY($1)
 ORDER BY group_id, position
`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list ring group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int64
			m  types.RingGroupMember
		)
		if err := rows.Scan(&id, &m.Type, &m.Value, &m.Enabled); err != nil {
			return nil, err
		}
		out[id] = append(out[id], m)
	}
	return out, rows.Err()
}

const queueColumns = `id, name, strategy, timeout, retry, max_wait, max_len, sl_threshold, department`

func scanQueue(row interface{ Scan(...any) error }) (types.Queue, error) {
	var q types.Queue
	err := row.Scan(&q.ID, &q.Name, &q.Strategy, &q.Timeout, &q.Retry, &q.MaxWait, &q.MaxLen, &q.SLThreshold, &q.Department)
	return q, err
}

func (r *Repo) Queues(ctx context.Context) ([]types.Queue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+queueColumns+` FROM queues ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	defer rows.Close()

	var queues []types.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

func (r *Repo) Queue(ctx context.Context, name string) (types.Queue, error) {
	q, err := scanQueue(r.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM queues WHERE name = $1`, name))
	if err == sql.ErrNoRows {
		return types.Queue{}, apperr.NotFound("queue", "queue "+name)
	}
	if err != nil {
		return types.Queue{}, fmt.Errorf("failed to get queue: %w", err)
	}
	return q, nil
}

func (r *Repo) QueueMembers(ctx context.Context, queues []string) (map[string][]types.QueueMember, error) {
	out := make(map[string][]types.QueueMember, len(queues))
	if len(queues) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT queue_name, interface, member_name, penalty, paused, enabled
  FROM queue_members
 WHERE queue_name = ANY($1)
 ORDER BY queue_name, position, interface
`, pq.Array(queues))
	if err != nil {
		return nil, fmt.Errorf("failed to list queue members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m types.QueueMember
		if err := rows.Scan(&m.Queue, &m.Interface, &m.Name, &m.Penalty, &m.Paused, &m.Enabled); err != nil {
			return nil, err
		}
		out[m.Queue] = append(out[m.Queue], m)
	}
	return out, rows.Err()
}
