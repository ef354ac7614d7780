package quotebot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetGuild returns the settings row for a guild, or ErrGuildNotFound.
func (d *database) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	var guild Guild
	err := d.db.WithContext(ctx).Where("id = ?", guildID).First(&guild).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGuildNotFound
		}
		return nil, err
	}
	return &guild, nil
}

// GetOrCreateGuild returns a guild's settings row, creating it with
// defaults if it doesn't exist yet.
func (d *database) GetOrCreateGuild(ctx context.Context, guildID string) (*Guild, error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	guild := Guild{
		ID:                          guildID,
		QuoteReactions:              true,
		SnipeRequiresManageMessages: true,
	}
	err := d.db.WithContext(ctx).Where("id = ?", guildID).FirstOrCreate(&guild).Error
	if err != nil {
		return nil, err
	}
	return &guild, nil
}

// DeleteGuild removes a guild row and everything hanging off it. Channel
// and message rows go via the foreign key cascade; guild-owned saved
// quotes and guild-scoped highlights have no foreign key to the guild
// table, so they're swept in the same transaction.
func (d *database) DeleteGuild(ctx context.Context, guildID string) error {
	return d.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where(
			"guild_id = ?", guildID,
		).Delete(&Highlight{}).Error; err != nil {
			return err
		}
		if err := tx.Where(
			"owner_id = ?", guildID,
		).Delete(&SavedQuote{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", guildID).Delete(&Guild{}).Error
	})
}

// SyncGuilds reconciles the guild table against the set of guilds the bot
// is actually in, run once after the gateway is ready. Guilds that no
// longer exist are deleted with full cleanup; missing ones are created.
func (d *database) SyncGuilds(ctx context.Context, guildIDs []string) error {
	var known []string
	if err := d.db.WithContext(ctx).Model(&Guild{}).Pluck("id", &known).Error; err != nil {
		return err
	}
	current := make(map[string]bool, len(guildIDs))
	for _, id := range guildIDs {
		current[id] = true
	}
	for _, id := range known {
		if !current[id] {
			if err := d.DeleteGuild(ctx, id); err != nil {
				return fmt.Errorf("error removing stale guild %s: %w", id, err)
			}
		}
	}
	for _, id := range guildIDs {
		if _, err := d.GetOrCreateGuild(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// SetPrefix sets a guild's command prefix.
func (d *database) SetPrefix(ctx context.Context, guildID string, prefix string) error {
	if len([]rune(prefix)) > maxPrefixLength {
		return ErrPrefixTooLong
	}
	if _, err := d.GetOrCreateGuild(ctx, guildID); err != nil {
		return err
	}
	_, err := d.Updates(
		ctx,
		&Guild{ID: guildID},
		map[string]any{columnGuildPrefix: prefix},
	)
	return err
}

// SetGuildToggle flips one of the guild's boolean settings columns.
func (d *database) SetGuildToggle(
	ctx context.Context,
	guildID string,
	column string,
	enabled bool,
) error {
	if _, err := d.GetOrCreateGuild(ctx, guildID); err != nil {
		return err
	}
	_, err := d.Updates(
		ctx,
		&Guild{ID: guildID},
		map[string]any{column: enabled},
	)
	return err
}

// EnsureChannel creates the channel row (and its guild row) if missing.
func (d *database) EnsureChannel(ctx context.Context, guildID string, channelID string) error {
	if _, err := d.GetOrCreateGuild(ctx, guildID); err != nil {
		return err
	}
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	channel := ChannelRef{ID: channelID, GuildID: guildID}
	return d.db.WithContext(ctx).Where("id = ?", channelID).FirstOrCreate(&channel).Error
}

// DeleteChannel removes a channel row. Message rows and their saved
// quotes go via the cascade.
func (d *database) DeleteChannel(ctx context.Context, channelID string) error {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	return d.db.WithContext(ctx).Where("id = ?", channelID).Delete(&ChannelRef{}).Error
}

// EnsureMessage creates the message row (and its channel and guild rows)
// if missing. An empty channelID records a DM message, which has no
// channel row to hang off.
func (d *database) EnsureMessage(
	ctx context.Context,
	guildID string,
	channelID string,
	messageID string,
) error {
	var channelRef *string
	if channelID != "" {
		if err := d.EnsureChannel(ctx, guildID, channelID); err != nil {
			return err
		}
		channelRef = &channelID
	}
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	msg := MessageRef{ID: messageID, ChannelID: channelRef}
	return d.db.WithContext(ctx).Where("id = ?", messageID).FirstOrCreate(&msg).Error
}

// DeleteMessage removes a message row, cascading to the saved quotes
// bound to it. Used when a quoted message turns out to be gone.
func (d *database) DeleteMessage(ctx context.Context, messageID string) error {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	return d.db.WithContext(ctx).Where("id = ?", messageID).Delete(&MessageRef{}).Error
}

// MessageChannel returns the channel a known message lives in, and
// whether the message is known at all. Known DM messages report an empty
// channel ID.
func (d *database) MessageChannel(ctx context.Context, messageID string) (
	string,
	bool,
	error,
) {
	var msg MessageRef
	err := d.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if msg.ChannelID == nil {
		return "", true, nil
	}
	return *msg.ChannelID, true, nil
}

// GetSavedQuote returns the saved quote for an owner and alias, or
// ErrSavedQuoteNotFound.
func (d *database) GetSavedQuote(ctx context.Context, ownerID string, alias string) (
	*SavedQuote,
	error,
) {
	var quote SavedQuote
	err := d.db.WithContext(ctx).Where(
		"owner_id = ? AND alias = ?", ownerID, alias,
	).First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSavedQuoteNotFound
		}
		return nil, err
	}
	return &quote, nil
}

// ListSavedQuotes returns all saved quotes for an owner, sorted by alias.
func (d *database) ListSavedQuotes(ctx context.Context, ownerID string) ([]SavedQuote, error) {
	var quotes []SavedQuote
	err := d.db.WithContext(ctx).Where(
		"owner_id = ?", ownerID,
	).Order("alias").Find(&quotes).Error
	return quotes, err
}

// SetSavedQuote binds an alias to a message, creating the guild, channel
// and message rows as needed. Overwrites an existing alias; creating a
// new one past the per-owner limit returns ErrSavedQuoteLimit.
func (d *database) SetSavedQuote(
	ctx context.Context,
	ownerID string,
	alias string,
	guildID string,
	channelID string,
	messageID string,
) error {
	alias = escapeMarkdown(alias)
	if len([]rune(alias)) > maxAliasLength {
		return ErrAliasTooLong
	}
	if err := d.EnsureMessage(ctx, guildID, channelID, messageID); err != nil {
		return err
	}
	return d.Transaction(ctx, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&SavedQuote{}).Where(
			"owner_id = ? AND alias = ?", ownerID, alias,
		).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			var total int64
			if err := tx.Model(&SavedQuote{}).Where(
				"owner_id = ?", ownerID,
			).Count(&total).Error; err != nil {
				return err
			}
			if total >= maxSavedQuotes {
				return ErrSavedQuoteLimit
			}
		}
		quote := SavedQuote{OwnerID: ownerID, Alias: alias, MessageID: messageID}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "alias"}},
			DoUpdates: clause.AssignmentColumns([]string{"message_id", "updated_at"}),
		}).Create(&quote).Error
	})
}

// CopySavedQuote copies one alias from another owner, overwriting the
// destination's own binding for that alias. Creating a new alias past
// the per-owner limit returns ErrSavedQuoteLimit; a source owner without
// that alias returns ErrSavedQuoteNotFound.
func (d *database) CopySavedQuote(
	ctx context.Context,
	fromOwnerID string,
	alias string,
	toOwnerID string,
) error {
	return d.Transaction(ctx, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&SavedQuote{}).Where(
			"owner_id = ? AND alias = ?", toOwnerID, alias,
		).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			var total int64
			if err := tx.Model(&SavedQuote{}).Where(
				"owner_id = ?", toOwnerID,
			).Count(&total).Error; err != nil {
				return err
			}
			if total >= maxSavedQuotes {
				return ErrSavedQuoteLimit
			}
		}

		var source SavedQuote
		err := tx.Where(
			"owner_id = ? AND alias = ?", fromOwnerID, alias,
		).First(&source).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSavedQuoteNotFound
			}
			return err
		}

		quote := SavedQuote{OwnerID: toOwnerID, Alias: alias, MessageID: source.MessageID}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "alias"}},
			DoUpdates: clause.AssignmentColumns([]string{"message_id", "updated_at"}),
		}).Create(&quote).Error
	})
}

// RemoveSavedQuote deletes one alias, or returns ErrSavedQuoteNotFound.
func (d *database) RemoveSavedQuote(ctx context.Context, ownerID string, alias string) error {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	rv := d.db.WithContext(ctx).Where(
		"owner_id = ? AND alias = ?", ownerID, alias,
	).Delete(&SavedQuote{})
	if rv.Error != nil {
		return rv.Error
	}
	if rv.RowsAffected == 0 {
		return ErrSavedQuoteNotFound
	}
	return nil
}

// ClearSavedQuotes deletes all of an owner's aliases, returning the count.
func (d *database) ClearSavedQuotes(ctx context.Context, ownerID string) (int64, error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	rv := d.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&SavedQuote{})
	return rv.RowsAffected, rv.Error
}

// ListHighlights returns all of a user's highlight patterns.
func (d *database) ListHighlights(ctx context.Context, userID string) ([]Highlight, error) {
	var highlights []Highlight
	err := d.db.WithContext(ctx).Where(
		"user_id = ?", userID,
	).Order("pattern").Find(&highlights).Error
	return highlights, err
}

// GuildHighlights returns every highlight that can fire in the given
// guild: patterns scoped to it, plus global patterns.
func (d *database) GuildHighlights(ctx context.Context, guildID string) ([]Highlight, error) {
	var highlights []Highlight
	err := d.db.WithContext(ctx).Where(
		"guild_id = ? OR guild_id = ?", guildID, HighlightScopeGlobal,
	).Find(&highlights).Error
	return highlights, err
}

// AddHighlight registers a highlight pattern for a user. A pattern can be
// global or guild-scoped, never both: adding in one scope while the same
// pattern exists in the other returns a HighlightConflictError. Adding a
// pattern the user already has in the same scope is a no-op.
func (d *database) AddHighlight(
	ctx context.Context,
	userID string,
	pattern string,
	guildID string,
) error {
	if len([]rune(pattern)) > maxPatternLength {
		return ErrPatternTooLong
	}
	return d.Transaction(ctx, func(tx *gorm.DB) error {
		var existing []Highlight
		if err := tx.Where(
			"user_id = ? AND pattern = ?", userID, pattern,
		).Find(&existing).Error; err != nil {
			return err
		}
		var conflicting []string
		for _, h := range existing {
			if h.GuildID == guildID {
				return nil
			}
			conflicting = append(conflicting, h.GuildID)
		}
		if len(conflicting) > 0 {
			return &HighlightConflictError{Pattern: pattern, GuildIDs: conflicting}
		}

		var total int64
		if err := tx.Model(&Highlight{}).Where(
			"user_id = ?", userID,
		).Count(&total).Error; err != nil {
			return err
		}
		if total >= maxHighlights {
			return ErrHighlightLimit
		}

		highlight := Highlight{UserID: userID, Pattern: pattern, GuildID: guildID}
		return tx.Create(&highlight).Error
	})
}

// likePrefix builds a LIKE argument matching strings that start with s,
// with LIKE metacharacters escaped.
func likePrefix(s string) string {
	return strings.NewReplacer(
		`\`, `\\`, `%`, `\%`, `_`, `\_`,
	).Replace(s) + "%"
}

// RemoveHighlight deletes a user's pattern in every scope it exists in,
// returning the pattern removed. An argument matching nothing exactly
// falls back to a unique prefix match; no match, or an ambiguous prefix,
// returns ErrHighlightNotFound.
func (d *database) RemoveHighlight(ctx context.Context, userID string, pattern string) (
	string,
	error,
) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	rv := d.db.WithContext(ctx).Where(
		"user_id = ? AND pattern = ?", userID, pattern,
	).Delete(&Highlight{})
	if rv.Error != nil {
		return "", rv.Error
	}
	if rv.RowsAffected > 0 {
		return pattern, nil
	}

	var prefixed []string
	err := d.db.WithContext(ctx).Model(&Highlight{}).Distinct("pattern").Where(
		`user_id = ? AND pattern LIKE ? ESCAPE '\'`, userID, likePrefix(pattern),
	).Pluck("pattern", &prefixed).Error
	if err != nil {
		return "", err
	}
	if len(prefixed) != 1 {
		return "", ErrHighlightNotFound
	}
	rv = d.db.WithContext(ctx).Where(
		"user_id = ? AND pattern = ?", userID, prefixed[0],
	).Delete(&Highlight{})
	if rv.Error != nil {
		return "", rv.Error
	}
	return prefixed[0], nil
}

// ClearHighlights deletes all of a user's patterns, returning the count.
func (d *database) ClearHighlights(ctx context.Context, userID string) (int64, error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	rv := d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Highlight{})
	return rv.RowsAffected, rv.Error
}

// BlockGuild adds a guild to the blocklist. Idempotent.
func (d *database) BlockGuild(ctx context.Context, guildID string) error {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	blocked := BlockedGuild{ID: guildID}
	return d.db.WithContext(ctx).Where("id = ?", guildID).FirstOrCreate(&blocked).Error
}

// UnblockGuild removes a guild from the blocklist. Idempotent.
func (d *database) UnblockGuild(ctx context.Context, guildID string) error {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	return d.db.WithContext(ctx).Where("id = ?", guildID).Delete(&BlockedGuild{}).Error
}

// IsGuildBlocked reports whether a guild is on the blocklist.
func (d *database) IsGuildBlocked(ctx context.Context, guildID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&BlockedGuild{}).Where(
		"id = ?", guildID,
	).Count(&count).Error
	return count > 0, err
}
