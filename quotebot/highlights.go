package quotebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// ValidateHighlightPattern checks that a pattern compiles as a regular
// expression, returning ErrInvalidPattern if not. Patterns are matched
// case-insensitively.
func ValidateHighlightPattern(pattern string) error {
	if _, err := regexp.Compile("(?i)" + pattern); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return nil
}

// HighlightMatcher watches guild messages and DMs users whose highlight
// patterns match. Compiled patterns are cached; patterns are validated
// at registration time, so ones that fail to compile here are skipped.
type HighlightMatcher struct {
	client PlatformClient
	db     DBI
	logger *slog.Logger

	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

func NewHighlightMatcher(
	client PlatformClient,
	db DBI,
	logger *slog.Logger,
) *HighlightMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HighlightMatcher{
		client:   client,
		db:       db,
		logger:   logger.With(loggerNameKey, "highlights"),
		compiled: map[string]*regexp.Regexp{},
	}
}

func (h *HighlightMatcher) pattern(p string) *regexp.Regexp {
	h.mu.RLock()
	re, ok := h.compiled[p]
	h.mu.RUnlock()
	if ok {
		return re
	}
	re, err := regexp.Compile("(?i)" + p)
	if err != nil {
		return nil
	}
	h.mu.Lock()
	h.compiled[p] = re
	h.mu.Unlock()
	return re
}

// Forget drops a pattern from the compile cache. Called when a highlight
// is removed.
func (h *HighlightMatcher) Forget(pattern string) {
	h.mu.Lock()
	delete(h.compiled, pattern)
	h.mu.Unlock()
}

// Notify matches a freshly posted guild message against every applicable
// highlight and DMs the owners of matching patterns. A user gets at most
// one notification per message, regardless of how many of their patterns
// match. The author's own patterns never fire, and users who can't see
// the channel are skipped. Returns the number of notifications sent.
func (h *HighlightMatcher) Notify(ctx context.Context, msg *discordgo.Message) (int, error) {
	if msg == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return 0, nil
	}

	highlights, err := h.db.GuildHighlights(ctx, msg.GuildID)
	if err != nil {
		return 0, err
	}
	if len(highlights) == 0 {
		return 0, nil
	}

	matched := map[string]string{}
	for _, highlight := range highlights {
		if highlight.UserID == msg.Author.ID {
			continue
		}
		if _, already := matched[highlight.UserID]; already {
			continue
		}
		re := h.pattern(highlight.Pattern)
		if re == nil {
			h.logger.Warn(
				"skipping uncompilable highlight",
				"pattern", highlight.Pattern,
				"user_id", highlight.UserID,
			)
			continue
		}
		if re.MatchString(msg.Content) {
			matched[highlight.UserID] = highlight.Pattern
		}
	}

	var notified int
	for userID, pattern := range matched {
		sent, sendErr := h.notifyUser(ctx, userID, pattern, msg)
		switch {
		case errors.Is(sendErr, ErrForbidden):
			// The user's DMs are closed, so they can never be reached
			// again: drop all of their highlights.
			cleared, clearErr := h.db.ClearHighlights(ctx, userID)
			if clearErr != nil {
				h.logger.ErrorContext(
					ctx,
					"failed clearing highlights for unreachable user",
					"user_id", userID,
					tint.Err(clearErr),
				)
				continue
			}
			h.logger.InfoContext(
				ctx,
				"cleared highlights for user with closed DMs",
				"user_id", userID,
				"cleared", cleared,
			)
		case sendErr != nil:
			h.logger.WarnContext(
				ctx,
				"highlight notification failed",
				"user_id", userID,
				"pattern", pattern,
				tint.Err(sendErr),
			)
		case sent:
			notified++
		}
	}
	return notified, nil
}

// notifyUser delivers one highlight DM. Users who left the guild or who
// can't see the channel are silently skipped (sent=false, nil error). An
// ErrForbidden return means the DM itself was refused.
func (h *HighlightMatcher) notifyUser(
	ctx context.Context,
	userID string,
	pattern string,
	msg *discordgo.Message,
) (bool, error) {
	if _, err := h.client.Member(msg.GuildID, userID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return false, nil
		}
		return false, err
	}
	perms, err := h.client.Permissions(userID, msg.ChannelID)
	if err != nil {
		return false, err
	}
	if perms&discordgo.PermissionViewChannel == 0 {
		return false, nil
	}

	qc, err := buildQuoteContext(h.client, msg, nil)
	if err != nil {
		return false, err
	}
	qc.DestIsDM = true
	rendered, err := RenderQuote(msg, QuoteTypeHighlight, qc)
	if err != nil {
		return false, err
	}

	dm, err := h.client.UserChannel(userID)
	if err != nil {
		return false, err
	}
	_, err = h.client.SendComplex(dm.ID, &discordgo.MessageSend{
		Content: fmt.Sprintf(
			"Your highlight `%s` matched in %s:", pattern, jumpURL(
				msg.GuildID, msg.ChannelID, msg.ID,
			),
		),
		Embeds: []*discordgo.MessageEmbed{rendered.Embed},
	})
	if err != nil {
		return false, err
	}
	h.logger.InfoContext(
		ctx,
		"sent highlight notification",
		append(messageLogAttrs(msg), "user_id", userID, "pattern", pattern)...,
	)
	return true, nil
}
