package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"

	"github.com/dkeye/livestage/internal/domain"
)

const keyPrefix = "livestage:lock:"

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another instance is left alone.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Valkey is a lease-based lock shared by every instance pointing at the same
// server. A lease expires after ttl even if its holder dies.
type Valkey struct {
	client valkey.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewValkey(addr, password string, ttl time.Duration) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Valkey{client: client, ttl: ttl, retry: 25 * time.Millisecond}, nil
}

func (v *Valkey) Lock(ctx context.Context, key string) (func(), error) {
	k := keyPrefix + key
	token := uuid.NewString()
	for {
		err := v.client.Do(ctx, v.client.B().Set().Key(k).Value(token).Nx().PxMilliseconds(v.ttl.Milliseconds()).Build()).Error()
		if err == nil {
			break
		}
		if !valkey.IsValkeyNil(err) {
			return nil, domain.Unavailable("lock store unavailable", err)
		}
		select {
		case <-ctx.Done():
			return nil, domain.Unavailable("lock wait cancelled", ctx.Err())
		case <-time.After(v.retry):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Exec(ctx, v.client, []string{k}, []string{token}).Error(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.lock").Str("key", key).Msg("lease release failed")
		}
	}, nil
}

func (v *Valkey) Close() {
	v.client.Close()
}
