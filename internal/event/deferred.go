package event

// pendingOp is one buffered subscribe or unsubscribe request.
type pendingOp struct {
	id EventID
	h  handle
}

// deferredQueues buffer table mutations requested while a broadcast is in
// progress. They are applied once dispatch depth returns to zero.
type deferredQueues struct {
	adds    []pendingOp
	removes []pendingOp
}

// queueAdd buffers a subscription. Repeated requests collapse into one.
func (q *deferredQueues) queueAdd(id EventID, h handle) {
	op := pendingOp{id: id, h: h}
	for _, existing := range q.adds {
		if existing == op {
			return
		}
	}
	q.adds = append(q.adds, op)
}

// queueRemove buffers an unsubscription. The observer need not be present
// when the request is applied.
func (q *deferredQueues) queueRemove(id EventID, h handle) {
	q.removes = append(q.removes, pendingOp{id: id, h: h})
}

// len returns the number of buffered requests.
func (q *deferredQueues) len() int {
	return len(q.adds) + len(q.removes)
}

// take returns the buffered removals and additions and empties both queues.
func (q *deferredQueues) take() (removes, adds []pendingOp) {
	removes, adds = q.removes, q.adds
	q.removes, q.adds = nil, nil
	return removes, adds
}

// clear drops every buffered request.
func (q *deferredQueues) clear() {
	q.adds = nil
	q.removes = nil
}
