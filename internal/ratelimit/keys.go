package ratelimit

import (
	"fmt"
	"strconv"
)

// Identity is the minimal context a key strategy reads. Zero fields mean
// "not present" (e.g. a guildless direct message has GuildID == 0).
type Identity struct {
	GuildID   int64
	ChannelID int64
	UserID    int64
}

// KeyFunc derives the bucket key for an identity.
//
// Strategies panic with *MissingContextError when a required field is absent:
// invoking, say, a per-guild bucket on a guildless context is a programming
// error at the call site, not a runtime condition to handle.
type KeyFunc func(id Identity) string

// MissingContextError reports a key strategy invoked without a required
// identity field.
type MissingContextError struct {
	Bucket string
	Field  string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("ratelimit: %s bucket requires %s", e.Bucket, e.Field)
}

// Kind enumerates the built-in key strategies.
type Kind int

const (
	KindGlobal Kind = iota
	KindGuild
	KindChannel
	KindUser
	KindMember // (user, guild) composite
)

func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindGuild:
		return "guild"
	case KindChannel:
		return "channel"
	case KindUser:
		return "user"
	case KindMember:
		return "member"
	default:
		return "unknown"
	}
}

// KeyFunc returns the strategy for the kind.
func (k Kind) KeyFunc() KeyFunc {
	switch k {
	case KindGuild:
		return GuildKey
	case KindChannel:
		return ChannelKey
	case KindUser:
		return UserKey
	case KindMember:
		return MemberKey
	default:
		return GlobalKey
	}
}

func GlobalKey(Identity) string { return "global" }

func GuildKey(id Identity) string {
	if id.GuildID == 0 {
		panic(&MissingContextError{Bucket: "guild", Field: "guild_id"})
	}
	return "guild:" + strconv.FormatInt(id.GuildID, 10)
}

func ChannelKey(id Identity) string {
	if id.ChannelID == 0 {
		panic(&MissingContextError{Bucket: "channel", Field: "channel_id"})
	}
	return "channel:" + strconv.FormatInt(id.ChannelID, 10)
}

func UserKey(id Identity) string {
	if id.UserID == 0 {
		panic(&MissingContextError{Bucket: "user", Field: "user_id"})
	}
	return "user:" + strconv.FormatInt(id.UserID, 10)
}

func MemberKey(id Identity) string {
	if id.GuildID == 0 || id.UserID == 0 {
		panic(&MissingContextError{Bucket: "member", Field: "guild_id and user_id"})
	}
	return "member:" + strconv.FormatInt(id.GuildID, 10) + ":" + strconv.FormatInt(id.UserID, 10)
}

// ParseKind maps a config string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "global", "":
		return KindGlobal, nil
	case "guild":
		return KindGuild, nil
	case "channel":
		return KindChannel, nil
	case "user":
		return KindUser, nil
	case "member":
		return KindMember, nil
	default:
		return 0, fmt.Errorf("unknown bucket kind %q", s)
	}
}
