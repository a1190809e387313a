package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/linkguard/internal/dependencies/clock"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/storage"
)

// Profile hash fields
const (
	fieldName        = "name"
	fieldKind        = "platform_kind"
	fieldLastAddress = "last_confirmed_address"
	fieldUpdatedAt   = "updated_at"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	clock  clock.Clock
	keys   keys
}

// New creates a new Redis storage instance
func New(cfg Config, clock clock.Clock) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg, clock), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clock clock.Clock) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if cfg.ActivateRetries <= 0 {
		cfg.ActivateRetries = DefaultConfig().ActivateRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clock,
		keys:   keys{prefix: cfg.KeyPrefix},
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account link operations

func (s *Storage) ReserveLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error {
	data, err := json.Marshal(model.AccountLink{
		ChatUserID: chatUserID,
		PlayerID:   playerID,
		LinkedAt:   s.clock.Now(),
	})
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, s.keys.playerLinks(playerID), string(chatUserID), data)
		pipe.SAdd(ctx, s.keys.chatLinks(chatUserID), string(playerID))
		return nil
	})
	return err
}

func (s *Storage) ActivateLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error {
	key := s.keys.playerLinks(playerID)

	activate := func(tx *redis.Tx) error {
		links, err := decodeLinks(tx.HGetAll(ctx, key))
		if err != nil {
			return err
		}

		updates := make(map[string]any)
		found := false
		for _, link := range links {
			switch {
			case link.ChatUserID == chatUserID:
				found = true
				if !link.Active {
					link.Active = true
					updates[string(link.ChatUserID)] = mustJSON(link)
				}
			case link.Active:
				link.Active = false
				updates[string(link.ChatUserID)] = mustJSON(link)
			}
		}
		if !found {
			updates[string(chatUserID)] = mustJSON(model.AccountLink{
				ChatUserID: chatUserID,
				PlayerID:   playerID,
				Active:     true,
				LinkedAt:   s.clock.Now(),
			})
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(updates) > 0 {
				pipe.HSet(ctx, key, updates)
			}
			pipe.SAdd(ctx, s.keys.chatLinks(chatUserID), string(playerID))
			return nil
		})
		return err
	}

	for i := 0; i < s.cfg.ActivateRetries; i++ {
		err := s.client.Watch(ctx, activate, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("activate link for %s: %w", playerID, redis.TxFailedErr)
}

func (s *Storage) FindActiveLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error) {
	links, err := decodeLinks(s.client.HGetAll(ctx, s.keys.playerLinks(playerID)))
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if link.Active {
			return &link, nil
		}
	}
	return nil, model.ErrLinkNotFound
}

func (s *Storage) FindAnyLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error) {
	links, err := decodeLinks(s.client.HGetAll(ctx, s.keys.playerLinks(playerID)))
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, model.ErrLinkNotFound
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Active != links[j].Active {
			return links[i].Active
		}
		return links[i].LinkedAt.After(links[j].LinkedAt)
	})
	return &links[0], nil
}

func (s *Storage) ListLinksForChatUser(ctx context.Context, chatUserID model.ChatUserID) ([]model.AccountLink, error) {
	playerIDs, err := s.client.SMembers(ctx, s.keys.chatLinks(chatUserID)).Result()
	if err != nil {
		return nil, err
	}
	if len(playerIDs) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(playerIDs))
	for i, id := range playerIDs {
		cmds[i] = pipe.HGet(ctx, s.keys.playerLinks(model.PlayerID(id)), string(chatUserID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var links []model.AccountLink
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var link model.AccountLink
		if err := json.Unmarshal(data, &link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].LinkedAt.Before(links[j].LinkedAt) })
	return links, nil
}

func (s *Storage) CountLinks(ctx context.Context, chatUserID model.ChatUserID, kind model.PlatformKind, includeReserved bool) (int, error) {
	links, err := s.ListLinksForChatUser(ctx, chatUserID)
	if err != nil {
		return 0, err
	}

	pipe := s.client.Pipeline()
	var cmds []*redis.StringCmd
	for _, link := range links {
		if link.Active || includeReserved {
			cmds = append(cmds, pipe.HGet(ctx, s.keys.profile(link.PlayerID), fieldKind))
		}
	}
	if len(cmds) == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	count := 0
	for _, cmd := range cmds {
		if model.PlatformKind(cmd.Val()) == kind {
			count++
		}
	}
	return count, nil
}

func (s *Storage) UnlinkPlayer(ctx context.Context, playerID model.PlayerID) (int, error) {
	key := s.keys.playerLinks(playerID)
	chatIDs, err := s.client.HKeys(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range chatIDs {
			pipe.SRem(ctx, s.keys.chatLinks(model.ChatUserID(id)), string(playerID))
		}
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(chatIDs), nil
}

func (s *Storage) UnlinkChatUser(ctx context.Context, chatUserID model.ChatUserID) (int, error) {
	setKey := s.keys.chatLinks(chatUserID)
	playerIDs, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, err
	}

	cmds := make([]*redis.IntCmd, len(playerIDs))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range playerIDs {
			cmds[i] = pipe.HDel(ctx, s.keys.playerLinks(model.PlayerID(id)), string(chatUserID))
		}
		pipe.Del(ctx, setKey)
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, cmd := range cmds {
		removed += int(cmd.Val())
	}
	return removed, nil
}

func (s *Storage) UnlinkPair(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) (int, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.HDel(ctx, s.keys.playerLinks(playerID), string(chatUserID))
		pipe.SRem(ctx, s.keys.chatLinks(chatUserID), string(playerID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(del.Val()), nil
}

// decodeLinks decodes a player's link hash
func decodeLinks(cmd *redis.MapStringStringCmd) ([]model.AccountLink, error) {
	raw, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	links := make([]model.AccountLink, 0, len(raw))
	for _, data := range raw {
		var link model.AccountLink
		if err := json.Unmarshal([]byte(data), &link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

// mustJSON marshals values whose encoding cannot fail
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Profile operations

func (s *Storage) UpsertProfile(ctx context.Context, playerID model.PlayerID, name string, kind model.PlatformKind) error {
	key := s.keys.profile(playerID)
	oldName, err := s.client.HGet(ctx, key, fieldName).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if oldName != "" && oldName != name {
			pipe.Del(ctx, s.keys.nameIndex(oldName))
		}
		pipe.HSet(ctx, key,
			fieldName, name,
			fieldKind, string(kind),
			fieldUpdatedAt, s.clock.Now().Format(time.RFC3339Nano))
		pipe.Set(ctx, s.keys.nameIndex(name), string(playerID), 0)
		return nil
	})
	return err
}

func (s *Storage) GetProfile(ctx context.Context, playerID model.PlayerID) (*model.ProfileRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.profile(playerID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, model.ErrProfileNotFound
	}

	profile := &model.ProfileRecord{
		PlayerID:             playerID,
		Name:                 fields[fieldName],
		PlatformKind:         model.PlatformKind(fields[fieldKind]),
		LastConfirmedAddress: model.Address(fields[fieldLastAddress]),
	}
	if ts := fields[fieldUpdatedAt]; ts != "" {
		if profile.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func (s *Storage) GetProfileByName(ctx context.Context, name string) (*model.ProfileRecord, error) {
	id, err := s.client.Get(ctx, s.keys.nameIndex(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}
	return s.GetProfile(ctx, model.PlayerID(id))
}

func (s *Storage) SetLastConfirmedAddress(ctx context.Context, playerID model.PlayerID, address model.Address) error {
	return s.setProfileField(ctx, playerID, fieldLastAddress, string(address))
}

func (s *Storage) SetPlatformKind(ctx context.Context, playerID model.PlayerID, kind model.PlatformKind) error {
	return s.setProfileField(ctx, playerID, fieldKind, string(kind))
}

// setProfileField updates one field of an existing profile
func (s *Storage) setProfileField(ctx context.Context, playerID model.PlayerID, field, value string) error {
	key := s.keys.profile(playerID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrProfileNotFound
	}
	return s.client.HSet(ctx, key,
		field, value,
		fieldUpdatedAt, s.clock.Now().Format(time.RFC3339Nano)).Err()
}

// Chat user operations

func (s *Storage) SaveChatUser(ctx context.Context, user *model.ChatUser) error {
	u := *user
	u.UpdatedAt = s.clock.Now()
	return s.setJSON(ctx, s.keys.chatUser(user.ID), u, 0)
}

func (s *Storage) GetChatUser(ctx context.Context, id model.ChatUserID) (*model.ChatUser, error) {
	var user model.ChatUser
	if err := s.getJSON(ctx, s.keys.chatUser(id), &user, model.ErrChatUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

// Token operations

func (s *Storage) SaveTokens(ctx context.Context, tokens *model.TokenSet) error {
	return s.setJSON(ctx, s.keys.tokens(tokens.ChatUserID), tokens, 0)
}

func (s *Storage) GetTokens(ctx context.Context, chatUserID model.ChatUserID) (*model.TokenSet, error) {
	var tokens model.TokenSet
	if err := s.getJSON(ctx, s.keys.tokens(chatUserID), &tokens, model.ErrTokensNotFound); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Ban progress operations

func (s *Storage) GetBanProgress(ctx context.Context, address model.Address) (*model.BanProgress, error) {
	var progress model.BanProgress
	if err := s.getJSON(ctx, s.keys.ban(address), &progress, model.ErrBanNotFound); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (s *Storage) SaveBanProgress(ctx context.Context, progress *model.BanProgress) error {
	return s.setJSON(ctx, s.keys.ban(progress.Address), progress, s.cfg.BanRetention)
}

func (s *Storage) ResetBanProgress(ctx context.Context, address model.Address) error {
	return s.client.Del(ctx, s.keys.ban(address)).Err()
}

// JSON helpers

func (s *Storage) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *Storage) getJSON(ctx context.Context, key string, v any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}
