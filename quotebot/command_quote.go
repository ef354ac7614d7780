package quotebot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const cloneMessageLimit = 50

var channelMentionPattern = regexp.MustCompile(`^<#(\d+)>$`)

// cmdQuote resolves the query through the locator and posts the quote.
func cmdQuote(ctx context.Context, cc *commandContext) error {
	msg, err := cc.bot.locator.Resolve(ctx, cc.args, cc.resolveContext())
	if err != nil {
		return err
	}
	return cc.bot.sendQuote(ctx, cc.channelID(), msg, QuoteTypeQuote, cc.author())
}

// cmdClone copies the most recent messages from another channel into the
// invoking channel through a temporary webhook, preserving author names
// and avatars. Oldest first, paced so a big clone doesn't trip rate
// limits.
func cmdClone(ctx context.Context, cc *commandContext) error {
	sourceID, limit, err := parseCloneArgs(cc.args)
	if err != nil {
		return err
	}

	client := cc.bot.discord.session

	source, err := client.Channel(sourceID)
	if err != nil {
		return err
	}
	if source.GuildID != cc.guildID() {
		return ErrChannelNotFound
	}
	if source.NSFW {
		dest, destErr := client.Channel(cc.channelID())
		if destErr != nil {
			return destErr
		}
		if !dest.NSFW {
			return ErrForbidden
		}
	}

	bot := client.BotUser()
	if bot != nil {
		perms, permErr := client.Permissions(bot.ID, cc.channelID())
		if permErr != nil {
			return permErr
		}
		if perms&discordgo.PermissionManageWebhooks == 0 {
			return cc.reply(errorResponse(msgNoWebhookPerms))
		}
	}

	history, err := client.ChannelMessages(sourceID, limit, "", "", "")
	if err != nil {
		return err
	}

	webhook, err := client.CreateWebhook(cc.channelID(), "quote-clone")
	if err != nil {
		return err
	}
	defer func() {
		if deleteErr := client.DeleteWebhook(webhook.ID); deleteErr != nil {
			cc.bot.logger.Warn("error deleting clone webhook", tint.Err(deleteErr))
		}
	}()

	// history comes back newest first
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Content == "" && len(msg.Embeds) == 0 {
			continue
		}
		params := &discordgo.WebhookParams{
			Content: msg.Content,
			Embeds:  msg.Embeds,
		}
		if msg.Author != nil {
			params.Username = displayName(msg.Author)
			params.AvatarURL = msg.Author.AvatarURL("64")
		}
		if _, execErr := client.WebhookExecute(
			webhook.ID, webhook.Token, false, params,
		); execErr != nil {
			return execErr
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cc.bot.config.CloneMessageInterval):
			}
		}
	}
	return nil
}

// parseCloneArgs parses "<channel> [limit]". The channel may be a
// mention or a bare ID; the limit defaults to the maximum.
func parseCloneArgs(args string) (channelID string, limit int, err error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", 0, ErrInvalidQuery
	}

	if m := channelMentionPattern.FindStringSubmatch(fields[0]); m != nil {
		channelID = m[1]
	} else if messageIDPattern.MatchString(fields[0]) {
		channelID = fields[0]
	} else {
		return "", 0, ErrInvalidQuery
	}

	limit = cloneMessageLimit
	if len(fields) > 1 {
		parsed, parseErr := strconv.Atoi(fields[1])
		if parseErr != nil || parsed < 1 || parsed > cloneMessageLimit {
			return "", 0, fmt.Errorf(
				"%w: %s", ErrInvalidQuery, fmt.Sprintf(msgCloneLimit, cloneMessageLimit),
			)
		}
		limit = parsed
	}
	return channelID, limit, nil
}
