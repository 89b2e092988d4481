package mqtt

import "go.uber.org/zap"

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool

	// supersedes names the state this message sets. A newer message with
	// the same key replaces the queued one. Empty keys never collapse.
	supersedes string
}

// supersedeKey returns the key for state-setting messages, which are
// retained status and player volume or power. Everything else is
// replayed one by one.
func supersedeKey(topic string, retained bool, action string) string {
	switch {
	case retained:
		return "retained:" + topic
	case action == ActionVolume, action == ActionPower:
		return topic + ":" + action
	}
	return ""
}

// offlineQueue holds messages published while the broker is unreachable.
// When full the oldest message is dropped. Not safe for concurrent use.
type offlineQueue struct {
	items    []pending
	limit    int
	warned   bool
	dropped  int
	replaced int
	log      *zap.Logger
}

func newOfflineQueue(limit int, log *zap.Logger) *offlineQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &offlineQueue{limit: limit, log: log}
}

func (q *offlineQueue) add(m pending) {
	if m.supersedes != "" {
		for i := range q.items {
			if q.items[i].supersedes == m.supersedes {
				q.items = append(q.items[:i], q.items[i+1:]...)
				q.replaced++
				break
			}
		}
	}

	if len(q.items) >= q.limit {
		if !q.warned {
			q.log.Warn("offline queue full, dropping oldest", zap.Int("limit", q.limit))
			q.warned = true
		}
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, m)
}

// requeue puts ms back in front of the queued messages. A message whose
// state was superseded while it was out of the queue is discarded.
func (q *offlineQueue) requeue(ms []pending) {
	queued := make(map[string]bool)
	for _, m := range q.items {
		if m.supersedes != "" {
			queued[m.supersedes] = true
		}
	}
	var front []pending
	for _, m := range ms {
		if m.supersedes != "" && queued[m.supersedes] {
			q.replaced++
			continue
		}
		front = append(front, m)
	}
	q.items = append(front, q.items...)
	if over := len(q.items) - q.limit; over > 0 {
		q.items = q.items[over:]
		q.dropped += over
	}
}

// take empties the queue, oldest first.
func (q *offlineQueue) take() []pending {
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	q.warned = false
	return out
}

func (q *offlineQueue) size() int { return len(q.items) }
