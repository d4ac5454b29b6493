package domain

import "time"

// PairingEntry is one waiting user on the random-pairing queue.
// Entries expire on the store side; EnqueuedAt lets consumers drop
// entries that outlived the queue TTL between sweeps.
type PairingEntry struct {
	UserID      UserID    `json:"userId"`
	DisplayName string    `json:"displayName"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}
