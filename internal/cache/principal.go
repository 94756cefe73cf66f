package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/facturo/facturo/internal/model"
)

const (
	// principalPrefix is the Redis key prefix for cached users.
	principalPrefix = "auth:user:"
	// DefaultPrincipalTTL applies when no TTL is configured.
	DefaultPrincipalTTL = 30 * time.Second
	// tombstoneVersion outranks every real row version.
	tombstoneVersion = math.MaxInt64
)

// ErrTombstoned means the user was deleted after it was cached.
var ErrTombstoned = errors.New("cached principal deleted")

// setIfNewerScript writes a principal only when its version is greater than
// the stored one, so a slow writer can never replace a newer row with an
// older one. Fields: v (version), d (JSON payload, empty for tombstones and
// invalidation markers). A payload may fill a marker of the same version.
var setIfNewerScript = redis.NewScript(`
	local key = KEYS[1]
	local version = tonumber(ARGV[1])
	local data = ARGV[2]
	local ttl = tonumber(ARGV[3])  -- milliseconds

	local current = tonumber(redis.call('HGET', key, 'v'))
	if current then
		if current > version then
			return 0
		end
		if current == version and (data == '' or redis.call('HGET', key, 'd') ~= '') then
			return 0
		end
	end

	redis.call('HSET', key, 'v', ARGV[1], 'd', data)
	redis.call('PEXPIRE', key, ttl)
	return 1
`)

// cachedPrincipal is the stored form of a user. It carries the password
// hash and generation id because the pipeline needs the latter and
// credential checks read the former through the same lookup.
type cachedPrincipal struct {
	ID                string    `json:"id"`
	AccountID         *string   `json:"account_id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"password_hash"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Phone             string    `json:"phone"`
	State             string    `json:"state"`
	CompanyName       string    `json:"company_name"`
	Admin             bool      `json:"admin"`
	Active            bool      `json:"active"`
	TokenGenerationID string    `json:"token_generation_id"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func principalKey(userID string) string {
	return principalPrefix + userID
}

func encodePrincipal(u *model.User) ([]byte, error) {
	return json.Marshal(cachedPrincipal{
		ID:                u.ID,
		AccountID:         u.AccountID,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Phone:             u.Phone,
		State:             u.State,
		CompanyName:       u.CompanyName,
		Admin:             u.Admin,
		Active:            u.Active,
		TokenGenerationID: u.TokenGenerationID,
		Version:           u.Version,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	})
}

func decodePrincipal(data []byte) (*model.User, error) {
	var c cachedPrincipal
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &model.User{
		ID:                c.ID,
		AccountID:         c.AccountID,
		Email:             c.Email,
		PasswordHash:      c.PasswordHash,
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		Phone:             c.Phone,
		State:             c.State,
		CompanyName:       c.CompanyName,
		Admin:             c.Admin,
		Active:            c.Active,
		TokenGenerationID: c.TokenGenerationID,
		Version:           c.Version,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}, nil
}

// GetPrincipal returns the cached user. A miss returns (nil, nil); a
// deleted user returns ErrTombstoned.
func (c *Cache) GetPrincipal(ctx context.Context, userID string) (*model.User, error) {
	fields, err := c.client.HMGet(ctx, principalKey(userID), "v", "d").Result()
	if err != nil {
		return nil, fmt.Errorf("get cached principal: %w", err)
	}
	if len(fields) != 2 || fields[0] == nil {
		return nil, nil
	}

	version, _ := fields[0].(string)
	if version == strconv.FormatInt(tombstoneVersion, 10) {
		return nil, ErrTombstoned
	}

	data, _ := fields[1].(string)
	if data == "" {
		// Invalidation marker: the row at this version must be re-read.
		return nil, nil
	}
	user, err := decodePrincipal([]byte(data))
	if err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}
	return user, nil
}

// PutPrincipal stores u unless a newer version is already cached.
// It reports whether the write was applied.
func (c *Cache) PutPrincipal(ctx context.Context, u *model.User) (bool, error) {
	data, err := encodePrincipal(u)
	if err != nil {
		return false, fmt.Errorf("marshal principal: %w", err)
	}
	return c.setIfNewer(ctx, u.ID, u.Version, string(data))
}

// TombstonePrincipal marks a user as deleted for the cache TTL.
func (c *Cache) TombstonePrincipal(ctx context.Context, userID string) error {
	_, err := c.setIfNewer(ctx, userID, tombstoneVersion, "")
	return err
}

// InvalidatePrincipal replaces the cached entry with an empty marker at
// version. Reads miss until the row is cached again, and fills older than
// version are refused.
func (c *Cache) InvalidatePrincipal(ctx context.Context, userID string, version int64) error {
	_, err := c.setIfNewer(ctx, userID, version, "")
	return err
}

// DeletePrincipal drops the cached entry outright. Used when a write
// through failed and the entry may be stale.
func (c *Cache) DeletePrincipal(ctx context.Context, userID string) error {
	return c.client.Del(ctx, principalKey(userID)).Err()
}

func (c *Cache) setIfNewer(ctx context.Context, userID string, version int64, data string) (bool, error) {
	res, err := setIfNewerScript.Run(ctx, c.client,
		[]string{principalKey(userID)},
		version, data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("write cached principal: %w", err)
	}
	return res == 1, nil
}
