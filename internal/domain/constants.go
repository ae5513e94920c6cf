package domain

import "time"

const (
	// ProcessItemWebhook tags tasks that originate from the item webhook.
	ProcessItemWebhook = "item_webhook"

	// SignatureHeader carries the base64 HMAC of the webhook body.
	SignatureHeader = "X-Exl-Signature"

	// MaxFetchAttempts is the total number of catalog fetch attempts.
	MaxFetchAttempts = 3

	// FetchBackoffStep is multiplied by the attempt number to get the wait
	// before the next attempt (2s, then 4s).
	FetchBackoffStep = 2 * time.Second

	// DefaultMaxDequeueCount matches the Functions host default before a
	// message is moved to the poison queue.
	DefaultMaxDequeueCount = 5

	// PoisonQueueSuffix is appended to a queue name to form its poison queue.
	PoisonQueueSuffix = "-poison"
)
