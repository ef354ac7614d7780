package quotebot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// cmdHighlightAdd registers a highlight pattern. Invoked in a guild the
// pattern is scoped to that guild; invoked over DM it's global. The
// confirmation goes over DM so a user with closed DMs finds out now, not
// when a highlight silently can't be delivered: if the DM bounces the
// pattern is rolled back.
func cmdHighlightAdd(ctx context.Context, cc *commandContext) error {
	pattern := stripCodeBlock(cc.args)
	if pattern == "" {
		return ErrInvalidQuery
	}
	if err := ValidateHighlightPattern(pattern); err != nil {
		return err
	}

	scope := HighlightScopeGlobal
	if cc.guildID() != "" {
		scope = cc.guildID()
	}

	if err := cc.bot.writeDB.AddHighlight(ctx, cc.author().ID, pattern, scope); err != nil {
		return err
	}

	client := cc.bot.discord.session
	dm, err := client.UserChannel(cc.author().ID)
	if err == nil {
		_, err = client.SendMessage(
			dm.ID,
			successResponse(msgHighlightAdded, pattern),
		)
	}
	if err != nil {
		// can't deliver notifications, so don't keep the pattern
		_, _ = cc.bot.writeDB.RemoveHighlight(ctx, cc.author().ID, pattern)
		return cc.reply(errorResponse(msgHighlightDMsDisabled))
	}
	return nil
}

// cmdHighlightList DMs the user their patterns, with scopes.
func cmdHighlightList(ctx context.Context, cc *commandContext) error {
	highlights, err := cc.bot.writeDB.ListHighlights(ctx, cc.author().ID)
	if err != nil {
		return err
	}
	if len(highlights) == 0 {
		return cc.reply(msgHighlightsNone)
	}

	lines := make([]string, len(highlights))
	for i, highlight := range highlights {
		scope := "global"
		if highlight.GuildID != HighlightScopeGlobal {
			scope = "this server"
			if guild, guildErr := cc.bot.discord.session.Guild(
				highlight.GuildID,
			); guildErr == nil {
				scope = guild.Name
			}
		}
		lines[i] = fmt.Sprintf("`%s` (%s)", highlight.Pattern, scope)
	}

	embed := &discordgo.MessageEmbed{
		Title:       msgHighlightListAuthor,
		Description: truncate(strings.Join(lines, "\n"), embedDescriptionLimit),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d/%d", len(highlights), maxHighlights),
		},
	}

	client := cc.bot.discord.session
	dm, err := client.UserChannel(cc.author().ID)
	if err != nil {
		return cc.reply(errorResponse(msgHighlightDMsDisabled))
	}
	_, err = client.SendComplex(dm.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	return err
}

func cmdHighlightRemove(ctx context.Context, cc *commandContext) error {
	pattern := stripCodeBlock(cc.args)
	if pattern == "" {
		return ErrInvalidQuery
	}
	removed, err := cc.bot.writeDB.RemoveHighlight(ctx, cc.author().ID, pattern)
	if err != nil {
		return err
	}
	cc.bot.highlights.Forget(removed)
	return cc.reply(successResponse(msgHighlightRemoved, removed))
}

func cmdHighlightClear(ctx context.Context, cc *commandContext) error {
	highlights, err := cc.bot.writeDB.ListHighlights(ctx, cc.author().ID)
	if err != nil {
		return err
	}
	if _, err = cc.bot.writeDB.ClearHighlights(ctx, cc.author().ID); err != nil {
		return err
	}
	for _, highlight := range highlights {
		cc.bot.highlights.Forget(highlight.Pattern)
	}
	return cc.reply(successResponse(msgHighlightsCleared))
}
