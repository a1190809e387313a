package redis

import (
	"fmt"
	"strings"

	"github.com/mcoot/linkguard/internal/model"
)

// keys builds Redis keys under a prefix
type keys struct {
	prefix string
}

// playerLinks is a HASH of chat user id -> JSON AccountLink for one player
func (k keys) playerLinks(id model.PlayerID) string {
	return fmt.Sprintf("%s:links:player:%s", k.prefix, id)
}

// chatLinks is a SET of player ids linked (active or reserved) to a chat user
func (k keys) chatLinks(id model.ChatUserID) string {
	return fmt.Sprintf("%s:links:chat:%s", k.prefix, id)
}

// profile is a HASH of profile fields
func (k keys) profile(id model.PlayerID) string {
	return fmt.Sprintf("%s:profile:%s", k.prefix, id)
}

// nameIndex maps a lower-cased player name to a player id
func (k keys) nameIndex(name string) string {
	return fmt.Sprintf("%s:idx:name:%s", k.prefix, strings.ToLower(name))
}

func (k keys) chatUser(id model.ChatUserID) string {
	return fmt.Sprintf("%s:chatuser:%s", k.prefix, id)
}

func (k keys) tokens(id model.ChatUserID) string {
	return fmt.Sprintf("%s:tokens:%s", k.prefix, id)
}

func (k keys) ban(address model.Address) string {
	return fmt.Sprintf("%s:ban:%s", k.prefix, address)
}
