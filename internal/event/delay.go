package event

// delayedPost is a broadcast parked by the suspend gate.
type delayedPost struct {
	id      EventID
	payload []any
}

// delayQueue holds delayed posts in arrival order.
type delayQueue struct {
	posts []delayedPost
}

// push appends a post, copying the payload slice so later changes by the
// caller do not alter what is replayed.
func (q *delayQueue) push(id EventID, payload []any) {
	var snapshot []any
	if len(payload) > 0 {
		snapshot = append(make([]any, 0, len(payload)), payload...)
	}
	q.posts = append(q.posts, delayedPost{id: id, payload: snapshot})
}

// take returns every queued post and leaves the queue empty, so posts
// queued while the result is replayed wait for the next flush.
func (q *delayQueue) take() []delayedPost {
	posts := q.posts
	q.posts = nil
	return posts
}

// len returns the number of queued posts.
func (q *delayQueue) len() int {
	return len(q.posts)
}

// clear drops every queued post.
func (q *delayQueue) clear() {
	q.posts = nil
}
