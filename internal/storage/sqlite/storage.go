package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/linkguard/internal/dependencies/clock"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/storage"
)

//go:embed schema.sql
var schema string

// Storage is a SQLite-backed implementation of the storage interface
type Storage struct {
	db    *sql.DB
	clock clock.Clock
}

// New opens (creating if needed) the database at path
func New(path string, clock clock.Clock) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Storage{db: db, clock: clock}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Timestamps are stored as Unix milliseconds
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// --- Account link methods ---

func (s *Storage) ReserveLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_links (chat_user_id, player_id, active, linked_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(chat_user_id, player_id) DO NOTHING
	`, string(chatUserID), string(playerID), toMillis(s.clock.Now()))
	return err
}

func (s *Storage) ActivateLink(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE account_links SET active = 0
		WHERE player_id = ? AND chat_user_id <> ? AND active = 1
	`, string(playerID), string(chatUserID)); err != nil {
		return fmt.Errorf("deactivating links: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_links (chat_user_id, player_id, active, linked_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(chat_user_id, player_id) DO UPDATE SET active = 1
	`, string(chatUserID), string(playerID), toMillis(s.clock.Now())); err != nil {
		return fmt.Errorf("activating link: %w", err)
	}

	return tx.Commit()
}

func (s *Storage) FindActiveLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error) {
	return s.scanLink(s.db.QueryRowContext(ctx, `
		SELECT chat_user_id, player_id, active, linked_at FROM account_links
		WHERE player_id = ? AND active = 1
	`, string(playerID)))
}

func (s *Storage) FindAnyLink(ctx context.Context, playerID model.PlayerID) (*model.AccountLink, error) {
	return s.scanLink(s.db.QueryRowContext(ctx, `
		SELECT chat_user_id, player_id, active, linked_at FROM account_links
		WHERE player_id = ?
		ORDER BY active DESC, linked_at DESC
		LIMIT 1
	`, string(playerID)))
}

func (s *Storage) scanLink(row *sql.Row) (*model.AccountLink, error) {
	var link model.AccountLink
	var chatID, playerID string
	var linkedAt int64
	if err := row.Scan(&chatID, &playerID, &link.Active, &linkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrLinkNotFound
		}
		return nil, err
	}
	link.ChatUserID = model.ChatUserID(chatID)
	link.PlayerID = model.PlayerID(playerID)
	link.LinkedAt = fromMillis(linkedAt)
	return &link, nil
}

func (s *Storage) ListLinksForChatUser(ctx context.Context, chatUserID model.ChatUserID) ([]model.AccountLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_user_id, player_id, active, linked_at FROM account_links
		WHERE chat_user_id = ?
		ORDER BY linked_at
	`, string(chatUserID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.AccountLink
	for rows.Next() {
		var link model.AccountLink
		var chatID, playerID string
		var linkedAt int64
		if err := rows.Scan(&chatID, &playerID, &link.Active, &linkedAt); err != nil {
			return nil, err
		}
		link.ChatUserID = model.ChatUserID(chatID)
		link.PlayerID = model.PlayerID(playerID)
		link.LinkedAt = fromMillis(linkedAt)
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *Storage) CountLinks(ctx context.Context, chatUserID model.ChatUserID, kind model.PlatformKind, includeReserved bool) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM account_links l
		JOIN profiles p ON p.player_id = l.player_id
		WHERE l.chat_user_id = ? AND p.platform_kind = ? AND (l.active = 1 OR ?)
	`, string(chatUserID), string(kind), includeReserved).Scan(&count)
	return count, err
}

func (s *Storage) UnlinkPlayer(ctx context.Context, playerID model.PlayerID) (int, error) {
	return s.execCount(ctx, "DELETE FROM account_links WHERE player_id = ?", string(playerID))
}

func (s *Storage) UnlinkChatUser(ctx context.Context, chatUserID model.ChatUserID) (int, error) {
	return s.execCount(ctx, "DELETE FROM account_links WHERE chat_user_id = ?", string(chatUserID))
}

func (s *Storage) UnlinkPair(ctx context.Context, chatUserID model.ChatUserID, playerID model.PlayerID) (int, error) {
	return s.execCount(ctx, "DELETE FROM account_links WHERE chat_user_id = ? AND player_id = ?",
		string(chatUserID), string(playerID))
}

func (s *Storage) execCount(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- Profile methods ---

func (s *Storage) UpsertProfile(ctx context.Context, playerID model.PlayerID, name string, kind model.PlatformKind) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (player_id, name, name_lower, platform_kind, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			name = excluded.name,
			name_lower = excluded.name_lower,
			platform_kind = excluded.platform_kind,
			updated_at = excluded.updated_at
	`, string(playerID), name, strings.ToLower(name), string(kind), toMillis(s.clock.Now()))
	return err
}

func (s *Storage) GetProfile(ctx context.Context, playerID model.PlayerID) (*model.ProfileRecord, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT player_id, name, platform_kind, last_confirmed_address, updated_at
		FROM profiles WHERE player_id = ?
	`, string(playerID)))
}

func (s *Storage) GetProfileByName(ctx context.Context, name string) (*model.ProfileRecord, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT player_id, name, platform_kind, last_confirmed_address, updated_at
		FROM profiles WHERE name_lower = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, strings.ToLower(name)))
}

func (s *Storage) scanProfile(row *sql.Row) (*model.ProfileRecord, error) {
	var p model.ProfileRecord
	var playerID, kind, address string
	var updatedAt int64
	if err := row.Scan(&playerID, &p.Name, &kind, &address, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}
	p.PlayerID = model.PlayerID(playerID)
	p.PlatformKind = model.PlatformKind(kind)
	p.LastConfirmedAddress = model.Address(address)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func (s *Storage) SetLastConfirmedAddress(ctx context.Context, playerID model.PlayerID, address model.Address) error {
	n, err := s.execCount(ctx, `
		UPDATE profiles SET last_confirmed_address = ?, updated_at = ? WHERE player_id = ?
	`, string(address), toMillis(s.clock.Now()), string(playerID))
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrProfileNotFound
	}
	return nil
}

func (s *Storage) SetPlatformKind(ctx context.Context, playerID model.PlayerID, kind model.PlatformKind) error {
	n, err := s.execCount(ctx, `
		UPDATE profiles SET platform_kind = ?, updated_at = ? WHERE player_id = ?
	`, string(kind), toMillis(s.clock.Now()), string(playerID))
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrProfileNotFound
	}
	return nil
}

// --- Chat user methods ---

func (s *Storage) SaveChatUser(ctx context.Context, user *model.ChatUser) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_users (id, username, global_name, email, avatar, commands_installed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			global_name = excluded.global_name,
			email = excluded.email,
			avatar = excluded.avatar,
			commands_installed = excluded.commands_installed,
			updated_at = excluded.updated_at
	`, string(user.ID), user.Username, user.GlobalName, user.Email, user.Avatar,
		user.CommandsInstalled, toMillis(s.clock.Now()))
	return err
}

func (s *Storage) GetChatUser(ctx context.Context, id model.ChatUserID) (*model.ChatUser, error) {
	var u model.ChatUser
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT username, global_name, email, avatar, commands_installed, updated_at
		FROM chat_users WHERE id = ?
	`, string(id)).Scan(&u.Username, &u.GlobalName, &u.Email, &u.Avatar, &u.CommandsInstalled, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrChatUserNotFound
		}
		return nil, err
	}
	u.ID = id
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

// --- Token methods ---

func (s *Storage) SaveTokens(ctx context.Context, tokens *model.TokenSet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (chat_user_id, access_token, refresh_token, scope, expires_at, sealed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			scope = excluded.scope,
			expires_at = excluded.expires_at,
			sealed = excluded.sealed
	`, string(tokens.ChatUserID), tokens.AccessToken, tokens.RefreshToken, tokens.Scope,
		toMillis(tokens.ExpiresAt), tokens.Sealed)
	return err
}

func (s *Storage) GetTokens(ctx context.Context, chatUserID model.ChatUserID) (*model.TokenSet, error) {
	var t model.TokenSet
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, scope, expires_at, sealed
		FROM tokens WHERE chat_user_id = ?
	`, string(chatUserID)).Scan(&t.AccessToken, &t.RefreshToken, &t.Scope, &expiresAt, &t.Sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTokensNotFound
		}
		return nil, err
	}
	t.ChatUserID = chatUserID
	t.ExpiresAt = fromMillis(expiresAt)
	return &t, nil
}

// --- Ban progress methods ---

func (s *Storage) GetBanProgress(ctx context.Context, address model.Address) (*model.BanProgress, error) {
	var b model.BanProgress
	var lastAttempt, bannedUntil int64
	err := s.db.QueryRowContext(ctx, `
		SELECT attempts, last_attempt, banned_until FROM ban_progress WHERE address = ?
	`, string(address)).Scan(&b.Attempts, &lastAttempt, &bannedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBanNotFound
		}
		return nil, err
	}
	b.Address = address
	b.LastAttempt = fromMillis(lastAttempt)
	b.BannedUntil = fromMillis(bannedUntil)
	return &b, nil
}

func (s *Storage) SaveBanProgress(ctx context.Context, progress *model.BanProgress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ban_progress (address, attempts, last_attempt, banned_until)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			attempts = excluded.attempts,
			last_attempt = excluded.last_attempt,
			banned_until = excluded.banned_until
	`, string(progress.Address), progress.Attempts, toMillis(progress.LastAttempt), toMillis(progress.BannedUntil))
	return err
}

func (s *Storage) ResetBanProgress(ctx context.Context, address model.Address) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM ban_progress WHERE address = ?", string(address))
	return err
}
