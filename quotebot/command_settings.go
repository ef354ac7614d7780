package quotebot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// runToggle flips one boolean guild setting and confirms with the
// matching message.
func runToggle(
	ctx context.Context,
	cc *commandContext,
	column string,
	current bool,
	onMsg string,
	offMsg string,
) error {
	next := !current
	if err := cc.bot.writeDB.SetGuildToggle(
		ctx, cc.guildID(), column, next,
	); err != nil {
		return err
	}
	if next {
		return cc.reply(successResponse(onMsg))
	}
	return cc.reply(successResponse(offMsg))
}

func cmdToggleReaction(ctx context.Context, cc *commandContext) error {
	return runToggle(
		ctx, cc,
		columnGuildQuoteReactions, cc.guild.QuoteReactions,
		msgToggleReactionsOn, msgToggleReactionsOff,
	)
}

func cmdToggleLinks(ctx context.Context, cc *commandContext) error {
	return runToggle(
		ctx, cc,
		columnGuildQuoteLinks, cc.guild.QuoteLinks,
		msgToggleLinksOn, msgToggleLinksOff,
	)
}

func cmdToggleDelete(ctx context.Context, cc *commandContext) error {
	// enabling is pointless if the bot can't delete anything here
	if !cc.guild.DeleteCommands {
		ok, err := botCanManageMessages(cc)
		if err != nil {
			return err
		}
		if !ok {
			return cc.reply(errorResponse(msgNoManageMsgs))
		}
	}
	return runToggle(
		ctx, cc,
		columnGuildDeleteCommands, cc.guild.DeleteCommands,
		msgToggleDeleteOn, msgToggleDeleteOff,
	)
}

func cmdToggleSnipePermission(ctx context.Context, cc *commandContext) error {
	if !cc.guild.SnipeRequiresManageMessages {
		ok, err := botCanManageMessages(cc)
		if err != nil {
			return err
		}
		if !ok {
			return cc.reply(errorResponse(msgNoManageMsgs))
		}
	}
	return runToggle(
		ctx, cc,
		columnGuildSnipeRequires, cc.guild.SnipeRequiresManageMessages,
		msgToggleSnipePermsOn, msgToggleSnipePermsOff,
	)
}

// botCanManageMessages reports whether the bot itself holds Manage
// Messages in the invoking channel.
func botCanManageMessages(cc *commandContext) (bool, error) {
	bot := cc.bot.discord.session.BotUser()
	if bot == nil {
		return false, nil
	}
	perms, err := cc.bot.discord.session.Permissions(bot.ID, cc.channelID())
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionManageMessages != 0, nil
}

// cmdSetPrefix sets the guild's command prefix; an empty argument resets
// it to the default.
func cmdSetPrefix(ctx context.Context, cc *commandContext) error {
	prefix := strings.TrimSpace(cc.args)
	if err := cc.bot.writeDB.SetPrefix(ctx, cc.guildID(), prefix); err != nil {
		return err
	}
	if prefix == "" {
		prefix = cc.bot.config.Prefix
	}
	return cc.reply(successResponse(msgPrefixSet, prefix))
}
