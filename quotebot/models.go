package quotebot

import (
	"fmt"
)

const (
	// HighlightScopeGlobal is the guild scope value for highlights that
	// match in every mutual guild.
	HighlightScopeGlobal = ""

	maxSavedQuotes   = 50
	maxAliasLength   = 50
	maxHighlights    = 10
	maxPatternLength = 50
	maxPrefixLength  = 3
)

var (
	columnGuildPrefix         = "prefix"
	columnGuildQuoteReactions = "quote_reactions"
	columnGuildQuoteLinks     = "quote_links"
	columnGuildDeleteCommands = "delete_commands"
	columnGuildSnipeRequires  = "snipe_requires_manage_messages"
)

// Guild holds the per-guild settings. A row is created lazily the first
// time a guild's settings are read or written.
//
//nolint:lll // struct tags can't be split
type Guild struct {
	// ID is the Discord guild ID
	ID string `json:"id" gorm:"primaryKey;type:string"`

	// Prefix is the guild's command prefix. Empty means the configured
	// default prefix applies.
	Prefix string `json:"prefix" gorm:"type:string"`

	// QuoteReactions enables quoting a message by reacting with 💬
	QuoteReactions bool `json:"quote_reactions" gorm:"column:quote_reactions;default:true"`

	// QuoteLinks enables automatic quoting of bare message links
	QuoteLinks bool `json:"quote_links" gorm:"column:quote_links;default:false"`

	// DeleteCommands removes the invoking command message after a
	// successful quote
	DeleteCommands bool `json:"delete_commands" gorm:"column:delete_commands;default:false"`

	// SnipeRequiresManageMessages restricts snipe commands to members
	// holding the Manage Messages permission
	SnipeRequiresManageMessages bool `json:"snipe_requires_manage_messages" gorm:"column:snipe_requires_manage_messages;default:true"`

	ModelUnixTime
}

func (g *Guild) String() string {
	return fmt.Sprintf("Guild [%s]", g.ID)
}

// ChannelRef pins a known channel to its guild so that message rows (and
// through them, saved quotes) are swept when the guild goes away.
type ChannelRef struct {
	// ID is the Discord channel ID
	ID string `json:"id" gorm:"primaryKey;type:string"`

	GuildID string `json:"guild_id" gorm:"index;not null"`
	Guild   Guild  `json:"-" gorm:"foreignKey:GuildID;references:ID;constraint:OnDelete:CASCADE"`

	ModelUnixTime
}

func (ChannelRef) TableName() string {
	return "channels"
}

// MessageRef records a message that at least one saved quote points at.
// Deleting the channel cascades here, and deleting a message cascades to
// the saved quotes bound to it. ChannelID is nil for DM messages, which
// have no channel row.
type MessageRef struct {
	// ID is the Discord message ID
	ID string `json:"id" gorm:"primaryKey;type:string"`

	ChannelID *string    `json:"channel_id" gorm:"index"`
	Channel   ChannelRef `json:"-" gorm:"foreignKey:ChannelID;references:ID;constraint:OnDelete:CASCADE"`

	ModelUnixTime
}

func (MessageRef) TableName() string {
	return "messages"
}

// SavedQuote is a personal (user-owned) or server (guild-owned) alias for
// a message. OwnerID is a user ID for personal quotes and a guild ID for
// server quotes; the two namespaces never collide because snowflakes are
// unique across both.
//
//nolint:lll // struct tags can't be split
type SavedQuote struct {
	OwnerID string `json:"owner_id" gorm:"primaryKey;type:string"`
	Alias   string `json:"alias" gorm:"primaryKey;type:string"`

	MessageID string     `json:"message_id" gorm:"index;not null"`
	Message   MessageRef `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnDelete:CASCADE"`

	ModelUnixTime
}

func (s *SavedQuote) String() string {
	return fmt.Sprintf("SavedQuote %s [owner %s]", s.Alias, s.OwnerID)
}

// Highlight is a regex pattern that triggers a DM notification when a
// message matching it is posted. GuildID scopes the pattern to one guild;
// HighlightScopeGlobal means it matches in every guild shared with the
// user. No foreign key on GuildID: the global scope has no guild row, so
// guild-scoped rows are swept explicitly in DeleteGuild.
type Highlight struct {
	UserID  string `json:"user_id" gorm:"primaryKey;type:string"`
	Pattern string `json:"pattern" gorm:"primaryKey;type:string"`
	GuildID string `json:"guild_id" gorm:"primaryKey;type:string"`

	ModelUnixTime
}

func (h *Highlight) String() string {
	scope := h.GuildID
	if scope == HighlightScopeGlobal {
		scope = "global"
	}
	return fmt.Sprintf("Highlight %q [user %s, scope %s]", h.Pattern, h.UserID, scope)
}

// BlockedGuild is a guild the bot refuses to join, set by a bot owner.
type BlockedGuild struct {
	// ID is the Discord guild ID
	ID string `json:"id" gorm:"primaryKey;type:string"`

	ModelUnixTime
}
