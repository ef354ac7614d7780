package quotebot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// savedQuotePost looks an alias up for the given owner, fetches the
// bound message, and posts it. A message that no longer exists prunes
// its own row (and with it the alias) before reporting failure.
func savedQuotePost(
	ctx context.Context,
	cc *commandContext,
	ownerID string,
	quoteType QuoteType,
) error {
	alias := strings.TrimSpace(cc.args)
	if alias == "" {
		return ErrInvalidQuery
	}
	quote, err := cc.bot.writeDB.GetSavedQuote(ctx, ownerID, alias)
	if err != nil {
		return err
	}

	channelID, known, err := cc.bot.writeDB.MessageChannel(ctx, quote.MessageID)
	if err != nil {
		return err
	}
	if !known {
		return ErrSavedQuoteNotFound
	}
	if channelID == "" {
		// DM-bound quote: the message lives in the invoker's DM channel
		// with the bot
		dm, dmErr := cc.bot.discord.session.UserChannel(cc.author().ID)
		if dmErr != nil {
			return dmErr
		}
		channelID = dm.ID
	}

	msg, err := cc.bot.locator.fetchMessage(channelID, quote.MessageID)
	if err != nil {
		if isResolveNotFound(err) {
			cc.bot.locator.selfHeal(ctx, quote.MessageID, err)
			return ErrSavedQuoteNotFound
		}
		if errors.Is(err, ErrForbidden) {
			// the bound message is in someone else's DMs; the quote can
			// never be played back by this invoker
			if removeErr := cc.bot.writeDB.RemoveSavedQuote(
				ctx, ownerID, alias,
			); removeErr != nil && !errors.Is(removeErr, ErrSavedQuoteNotFound) {
				return removeErr
			}
		}
		return err
	}
	return cc.bot.sendQuote(ctx, cc.channelID(), msg, quoteType, cc.author())
}

// savedQuoteList posts an embed listing an owner's aliases.
func savedQuoteList(
	ctx context.Context,
	cc *commandContext,
	ownerID string,
	title string,
) error {
	quotes, err := cc.bot.writeDB.ListSavedQuotes(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		return cc.reply(msgSavedQuotesNone)
	}

	aliases := make([]string, len(quotes))
	for i, quote := range quotes {
		aliases[i] = fmt.Sprintf("`%s`", quote.Alias)
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: truncate(strings.Join(aliases, ", "), embedDescriptionLimit),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d/%d", len(quotes), maxSavedQuotes),
		},
	}
	_, err = cc.bot.discord.session.SendComplex(cc.channelID(), &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	return err
}

// savedQuoteSet resolves the target message and binds the alias to it.
// The alias is the first word; the rest of the arguments (or the
// replied-to message) locate the target.
func savedQuoteSet(ctx context.Context, cc *commandContext, ownerID string) error {
	alias, query, _ := strings.Cut(cc.args, " ")
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return ErrInvalidQuery
	}

	msg, err := cc.bot.locator.Resolve(ctx, strings.TrimSpace(query), cc.resolveContext())
	if err != nil {
		return err
	}

	guildID := msg.GuildID
	if guildID == "" && cc.guildID() != "" && msg.ChannelID == cc.channelID() {
		guildID = cc.guildID()
	}
	channelID := msg.ChannelID
	if guildID == "" {
		// DM source: stored without a channel row, played back through
		// the requester's DM channel
		channelID = ""
	}

	if err = cc.bot.writeDB.SetSavedQuote(
		ctx, ownerID, alias, guildID, channelID, msg.ID,
	); err != nil {
		return err
	}
	return cc.reply(successResponse(msgSavedQuoteSet, alias))
}

// savedQuoteCopy copies a single alias from another owner to the
// destination owner. The source owner is any user or guild ID, mentioned
// or bare; its aliases need not belong to a member of this guild.
func savedQuoteCopy(ctx context.Context, cc *commandContext, toOwnerID string) error {
	ownerArg, alias, _ := strings.Cut(strings.TrimSpace(cc.args), " ")
	alias = strings.TrimSpace(alias)
	if ownerArg == "" || alias == "" {
		return ErrInvalidQuery
	}

	var fromOwnerID string
	if m := memberMentionPattern.FindStringSubmatch(ownerArg); m != nil {
		fromOwnerID = m[1]
	} else if messageIDPattern.MatchString(ownerArg) {
		fromOwnerID = ownerArg
	} else {
		return ErrInvalidQuery
	}

	if err := cc.bot.writeDB.CopySavedQuote(ctx, fromOwnerID, alias, toOwnerID); err != nil {
		return err
	}
	return cc.reply(successResponse(msgSavedQuoteCopied, alias))
}

func savedQuoteRemove(ctx context.Context, cc *commandContext, ownerID string) error {
	alias := strings.TrimSpace(cc.args)
	if alias == "" {
		return ErrInvalidQuery
	}
	if err := cc.bot.writeDB.RemoveSavedQuote(ctx, ownerID, alias); err != nil {
		return err
	}
	return cc.reply(successResponse(msgSavedQuoteRemoved, alias))
}

func savedQuoteClear(ctx context.Context, cc *commandContext, ownerID string) error {
	if _, err := cc.bot.writeDB.ClearSavedQuotes(ctx, ownerID); err != nil {
		return err
	}
	return cc.reply(successResponse(msgSavedQuotesCleared))
}

func cmdPersonalQuote(ctx context.Context, cc *commandContext) error {
	return savedQuotePost(ctx, cc, cc.author().ID, QuoteTypePersonal)
}

func cmdPersonalQuoteList(ctx context.Context, cc *commandContext) error {
	return savedQuoteList(ctx, cc, cc.author().ID, msgPersonalListAuthor)
}

func cmdPersonalQuoteSet(ctx context.Context, cc *commandContext) error {
	return savedQuoteSet(ctx, cc, cc.author().ID)
}

func cmdPersonalQuoteCopy(ctx context.Context, cc *commandContext) error {
	return savedQuoteCopy(ctx, cc, cc.author().ID)
}

func cmdPersonalQuoteRemove(ctx context.Context, cc *commandContext) error {
	return savedQuoteRemove(ctx, cc, cc.author().ID)
}

func cmdPersonalQuoteClear(ctx context.Context, cc *commandContext) error {
	return savedQuoteClear(ctx, cc, cc.author().ID)
}

func cmdServerQuote(ctx context.Context, cc *commandContext) error {
	return savedQuotePost(ctx, cc, cc.guildID(), QuoteTypeServer)
}

func cmdServerQuoteList(ctx context.Context, cc *commandContext) error {
	return savedQuoteList(ctx, cc, cc.guildID(), msgServerListAuthor)
}

func cmdServerQuoteSet(ctx context.Context, cc *commandContext) error {
	return savedQuoteSet(ctx, cc, cc.guildID())
}

func cmdServerQuoteCopy(ctx context.Context, cc *commandContext) error {
	return savedQuoteCopy(ctx, cc, cc.guildID())
}

func cmdServerQuoteRemove(ctx context.Context, cc *commandContext) error {
	return savedQuoteRemove(ctx, cc, cc.guildID())
}

func cmdServerQuoteClear(ctx context.Context, cc *commandContext) error {
	return savedQuoteClear(ctx, cc, cc.guildID())
}
