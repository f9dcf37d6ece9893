package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-lms-registration/pkg/helpers"
)

const (
	ticketKeyPrefix = "activation:used:"
	missKeyPrefix   = "activation:misses:"
)

// TicketLedger remembers consumed activation token ids and wrong-code
// attempts until the token expires.
type TicketLedger struct {
	rdb goredis.Cmdable
}

func NewTicketLedger(rdb goredis.Cmdable) *TicketLedger {
	return &TicketLedger{rdb: rdb}
}

func ticketKey(tokenID string) string { return ticketKeyPrefix + tokenID }

// Claim atomically marks tokenID as used. It returns false when another
// request claimed it first.
func (l *TicketLedger) Claim(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if tokenID == "" {
		return false, errors.New("token id is required")
	}
	return helpers.RedisSetOnce(ctx, l.rdb, ticketKey(tokenID), time.Now().UTC().Format(time.RFC3339), ttl)
}

// Release forgets a claim so the token can be used again.
func (l *TicketLedger) Release(ctx context.Context, tokenID string) error {
	return helpers.RedisDel(ctx, l.rdb, ticketKey(tokenID))
}

// RecordMiss counts a wrong code for tokenID and returns the running total.
func (l *TicketLedger) RecordMiss(ctx context.Context, tokenID string, ttl time.Duration) (int64, error) {
	if tokenID == "" {
		return 0, errors.New("token id is required")
	}
	return helpers.RedisIncrWithTTL(ctx, l.rdb, missKeyPrefix+tokenID, ttl)
}
