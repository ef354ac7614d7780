package quotebot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// snipePermitted checks the guild's snipe permission setting against the
// invoker.
func snipePermitted(cc *commandContext) (bool, error) {
	if cc.guild == nil || !cc.guild.SnipeRequiresManageMessages {
		return true, nil
	}
	perms, err := cc.bot.discord.session.Permissions(cc.author().ID, cc.channelID())
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionManageMessages != 0, nil
}

// snipeTargetChannel resolves the optional channel argument, defaulting
// to the invoking channel. The target must belong to the guild, and the
// invoker must be able to read it.
func snipeTargetChannel(cc *commandContext) (string, error) {
	args := strings.TrimSpace(cc.args)
	if args == "" {
		return cc.channelID(), nil
	}

	field := strings.Fields(args)[0]
	var channelID string
	if m := channelMentionPattern.FindStringSubmatch(field); m != nil {
		channelID = m[1]
	} else if messageIDPattern.MatchString(field) {
		channelID = field
	} else {
		return "", ErrInvalidQuery
	}
	if channelID == cc.channelID() {
		return channelID, nil
	}

	channel, err := cc.bot.discord.session.Channel(channelID)
	if err != nil {
		return "", err
	}
	if channel.GuildID != cc.guildID() {
		return "", ErrChannelNotFound
	}
	perms, err := cc.bot.discord.session.Permissions(cc.author().ID, channelID)
	if err != nil {
		return "", err
	}
	readable := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	if perms&readable != readable {
		return "", ErrForbidden
	}
	return channelID, nil
}

func runSnipe(
	ctx context.Context,
	cc *commandContext,
	lookup func(guildID string, channelID string) (*discordgo.Message, bool),
) error {
	permitted, err := snipePermitted(cc)
	if err != nil {
		return err
	}
	if !permitted {
		return cc.reply(errorResponse(msgNoPermission))
	}

	target, err := snipeTargetChannel(cc)
	if err != nil {
		return err
	}
	msg, ok := lookup(cc.guildID(), target)
	if !ok {
		return ErrMessageNotFound
	}
	return cc.bot.sendQuote(ctx, cc.channelID(), msg, QuoteTypeSnipe, cc.author())
}

// cmdSnipe quotes the most recently deleted message in the channel.
func cmdSnipe(ctx context.Context, cc *commandContext) error {
	return runSnipe(ctx, cc, cc.bot.snipes.LastDelete)
}

// cmdSnipeEdit quotes the pre-edit version of the most recently edited
// message in the channel.
func cmdSnipeEdit(ctx context.Context, cc *commandContext) error {
	return runSnipe(ctx, cc, cc.bot.snipes.LastEdit)
}
