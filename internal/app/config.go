package app

import (
	"context"
	"time"
)

// Config carries the engine knobs. Defaults match the retention policy:
// everything ephemeral, rooms reaped shortly after they empty.
type Config struct {
	HistoryLimit       int
	MaxTextBytes       int
	MaxAudioBytes      int // decoded size of an audio payload
	JoinWait           time.Duration
	DisconnectDebounce time.Duration
	ReaperInterval     time.Duration
	GracePeriod        time.Duration
	MinRoomAge         time.Duration
	PresenceInterval   time.Duration
	PairingRetries     int
	PairingBackoff     time.Duration
	StoreTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:       50,
		MaxTextBytes:       4096,
		MaxAudioBytes:      5 << 20,
		JoinWait:           2 * time.Second,
		DisconnectDebounce: 200 * time.Millisecond,
		ReaperInterval:     60 * time.Second,
		GracePeriod:        60 * time.Second,
		MinRoomAge:         30 * time.Second,
		PresenceInterval:   60 * time.Second,
		PairingRetries:     5,
		PairingBackoff:     300 * time.Millisecond,
		StoreTimeout:       3 * time.Second,
	}
}

// storeCtx bounds a store round trip so an unreachable store fails the
// operation instead of hanging it.
func (c Config) storeCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.StoreTimeout)
}
