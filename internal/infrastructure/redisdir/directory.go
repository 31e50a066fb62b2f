package redisdir

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/savorly/savorly-api/internal/domain/directory"
	"github.com/savorly/savorly-api/pkg/helpers"
)

// Directory is the Redis-backed credential store. Each username owns one
// hash; the password is kept only as a bcrypt hash, so every comparison
// happens inside this package.
type Directory struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Directory {
	return &Directory{rdb: rdb}
}

func credKey(username string) string {
	return "cred:user:" + username
}

func (d *Directory) LoadByUsername(ctx context.Context, username string) (*directory.Entry, error) {
	data, err := d.rdb.HGetAll(ctx, credKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("load credential %q: %w", username, err)
	}
	if len(data) == 0 {
		return nil, directory.ErrNotFound
	}
	return &directory.Entry{
		Username:     data["username"],
		PasswordHash: data["password"],
		Roles:        splitRoles(data["roles"]),
	}, nil
}

func (d *Directory) Create(ctx context.Context, username, password string, roles []string) error {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return err
	}
	key := credKey(username)

	// HSetNX on the username field is the atomic claim: two concurrent
	// signups for the same name cannot both win it.
	claimed, err := d.rdb.HSetNX(ctx, key, "username", username).Result()
	if err != nil {
		return fmt.Errorf("claim credential %q: %w", username, err)
	}
	if !claimed {
		return directory.ErrExists
	}

	err = d.rdb.HSet(ctx, key, map[string]any{
		"password":   hash,
		"roles":      strings.Join(roles, ","),
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("store credential %q: %w", username, err)
	}
	return nil
}

func (d *Directory) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	entry, err := d.LoadByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !helpers.CompareHashAndPassword(entry.PasswordHash, oldPassword) {
		return directory.ErrInvalidCredentials
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	err = d.rdb.HSet(ctx, credKey(username), map[string]any{
		"password":   hash,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("update credential %q: %w", username, err)
	}
	return nil
}

func (d *Directory) Rewrite(ctx context.Context, username, password string, roles []string) error {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return err
	}
	err = d.rdb.HSet(ctx, credKey(username), map[string]any{
		"username":   username,
		"password":   hash,
		"roles":      strings.Join(roles, ","),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("rewrite credential %q: %w", username, err)
	}
	return nil
}

func (d *Directory) Verify(ctx context.Context, username, password string) (*directory.Entry, error) {
	entry, err := d.LoadByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, directory.ErrInvalidCredentials
		}
		return nil, err
	}
	if !helpers.CompareHashAndPassword(entry.PasswordHash, password) {
		return nil, directory.ErrInvalidCredentials
	}
	return entry, nil
}

func splitRoles(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

var _ directory.CredentialDirectory = (*Directory)(nil)
