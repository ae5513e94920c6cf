package entity

// QueueMessage is a message received from a queue backend.
// Receipt is an opaque, backend-specific handle used to complete or abandon
// the message; callers never inspect it.
type QueueMessage struct {
	ID           string
	Queue        string
	Body         []byte
	DequeueCount int64
	Receipt      any
}
