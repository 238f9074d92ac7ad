package storage

import (
	"context"
	"time"

	redis2 "GProject/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ctx = context.Background()

// presence key: gw:presence:<user>
// Value: gateway node id, TTL controls the online validity period. The mirror
// is a diagnostic side-channel; delivery decisions never read it.
func presenceKey(user string) string { return "gw:presence:" + user }

// Ready reports whether the mirror can be used.
func Ready() bool { return redis2.Ready() }

// PresenceOnline sets the user as online on this gateway and renews the TTL.
func PresenceOnline(user, gatewayID string, ttl time.Duration) error {
	if !redis2.Ready() {
		return errors.New("redis not initialized")
	}
	return redis2.GetRedis().Set(ctx, presenceKey(user), gatewayID, ttl).Err()
}

// PresenceOffline actively sets the user offline (deletes the key).
func PresenceOffline(user string) error {
	if !redis2.Ready() {
		return errors.New("redis not initialized")
	}
	return redis2.GetRedis().Del(ctx, presenceKey(user)).Err()
}

// PresenceLookup checks whether the user is online and on which gateway.
func PresenceLookup(user string) (gatewayID string, online bool, err error) {
	if !redis2.Ready() {
		return "", false, errors.New("redis not initialized")
	}
	val, err := redis2.GetRedis().Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
