package quotebot

import (
	"context"
	"errors"
	"strings"
)

// Owner-only commands. These never reply to unauthorized users; the
// dispatch layer drops those invocations silently.

// cmdOwnerBlock blocks a guild and leaves it if the bot is currently in
// it.
func cmdOwnerBlock(ctx context.Context, cc *commandContext) error {
	guildID := strings.TrimSpace(cc.args)
	if !messageIDPattern.MatchString(guildID) {
		return ErrInvalidQuery
	}
	if err := cc.bot.writeDB.BlockGuild(ctx, guildID); err != nil {
		return err
	}
	if containsString(cc.bot.discord.session.GuildIDs(), guildID) {
		if err := cc.bot.discord.session.LeaveGuild(guildID); err != nil &&
			!errors.Is(err, ErrGuildNotFound) {
			return err
		}
	}
	return cc.reply(successResponse(msgOwnerBlocked))
}

func cmdOwnerUnblock(ctx context.Context, cc *commandContext) error {
	guildID := strings.TrimSpace(cc.args)
	if !messageIDPattern.MatchString(guildID) {
		return ErrInvalidQuery
	}
	blocked, err := cc.bot.writeDB.IsGuildBlocked(ctx, guildID)
	if err != nil {
		return err
	}
	if !blocked {
		return cc.reply(errorResponse(msgOwnerUnblockNotFound))
	}
	if err = cc.bot.writeDB.UnblockGuild(ctx, guildID); err != nil {
		return err
	}
	return cc.reply(successResponse(msgOwnerUnblocked))
}

func cmdOwnerLeave(_ context.Context, cc *commandContext) error {
	guildID := strings.TrimSpace(cc.args)
	if !messageIDPattern.MatchString(guildID) {
		return ErrInvalidQuery
	}
	guild, err := cc.bot.discord.session.Guild(guildID)
	if err != nil {
		return cc.reply(errorResponse(msgOwnerGuildNotFound))
	}
	if err = cc.bot.discord.session.LeaveGuild(guildID); err != nil {
		return err
	}
	return cc.reply(successResponse(msgOwnerGuildLeft, guild.Name))
}

func cmdOwnerShutdown(_ context.Context, cc *commandContext) error {
	if err := cc.reply(successResponse(msgOwnerShutdown)); err != nil {
		cc.bot.logger.Warn("couldn't confirm shutdown")
	}
	cc.bot.Stop()
	return nil
}
