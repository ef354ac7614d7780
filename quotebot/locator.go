package quotebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

var (
	// messageURLPattern matches canonical message links, including the
	// canary/ptb frontends, the legacy discordapp.com domain, and `@me`
	// DM links.
	messageURLPattern = regexp.MustCompile(
		`(?:(?:canary|ptb|www)\.)?discord(?:app)?\.com/channels/(@me|\d+)/(\d+)/(\d+)`,
	)

	// messageIDPattern matches a bare message snowflake.
	messageIDPattern = regexp.MustCompile(`^\d{15,21}$`)

	// messagePairPattern matches a channel-qualified message reference,
	// the "channelID-messageID" form the client's "Copy ID" produces.
	messagePairPattern = regexp.MustCompile(`^(\d{15,21})[-/\s](\d{15,21})$`)

	// memberMentionPattern matches a user mention.
	memberMentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)
)

// ResolveContext carries the invoking message's surroundings, which the
// resolution chain falls back on when the query alone isn't enough.
type ResolveContext struct {
	// Message is the invoking message
	Message *discordgo.Message

	GuildID   string
	ChannelID string
	AuthorID  string
}

// MessageLocator resolves free-form queries to messages. A query may be a
// message link, a bare message ID, or a member reference (mention or
// name); an empty query resolves to the replied-to message.
//
// Resolution is cheapest-first: the in-memory message cache is always
// consulted before any REST call, and a bare ID checks the message table
// for a known channel before scanning. Guild-wide scans are paced by the
// rate limiter.
type MessageLocator struct {
	client  PlatformClient
	db      DBI
	logger  *slog.Logger
	limiter *rate.Limiter
}

func NewMessageLocator(
	client PlatformClient,
	db DBI,
	logger *slog.Logger,
	scanRate float64,
) *MessageLocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageLocator{
		client:  client,
		db:      db,
		logger:  logger.With(loggerNameKey, "locator"),
		limiter: rate.NewLimiter(rate.Limit(scanRate), 1),
	}
}

// Resolve runs the query through the resolution chain and returns the
// target message. Failures are reported through the error taxonomy:
// ErrMessageNotFound / ErrMemberNotFound when the chain is exhausted,
// ErrInvalidQuery when the query can't be interpreted at all.
//
// The chain tries, in order: the replied-to message (empty query), a
// message link, a guild member reference (mention, ID or name), a bare
// message snowflake, and finally the query as a content pattern. The
// member stage runs before the bare-ID stage so an ID that names a
// member resolves to their last message, and it declines rather than
// fails when the query doesn't name a member at all, so the later
// stages get their turn.
func (l *MessageLocator) Resolve(
	ctx context.Context,
	query string,
	rc ResolveContext,
) (*discordgo.Message, error) {
	query = strings.TrimSpace(query)

	if query == "" {
		return l.resolveReply(rc)
	}

	if m := messageURLPattern.FindStringSubmatch(query); m != nil {
		return l.resolveURL(ctx, m[1], m[2], m[3])
	}

	if rc.GuildID != "" {
		msg, done, err := l.resolveMember(ctx, query, rc)
		if done {
			return msg, err
		}
	}

	if m := messagePairPattern.FindStringSubmatch(query); m != nil {
		msg, err := l.fetchMessage(m[1], m[2])
		if err != nil && isResolveNotFound(err) {
			l.selfHeal(ctx, m[2], err)
		}
		return msg, err
	}

	if messageIDPattern.MatchString(query) {
		return l.resolveID(ctx, query, rc)
	}

	return l.resolveRegex(query, rc)
}

// resolveReply handles an empty query: quote the message the invoking
// message replies to.
func (l *MessageLocator) resolveReply(rc ResolveContext) (*discordgo.Message, error) {
	if rc.Message == nil {
		return nil, ErrInvalidQuery
	}
	if rc.Message.ReferencedMessage != nil {
		return rc.Message.ReferencedMessage, nil
	}
	if ref := rc.Message.MessageReference; ref != nil && ref.MessageID != "" {
		return l.fetchMessage(ref.ChannelID, ref.MessageID)
	}
	return nil, ErrInvalidQuery
}

// resolveURL fetches the message a link points at. The link names the
// channel, so no searching is involved.
func (l *MessageLocator) resolveURL(
	ctx context.Context,
	guildSegment string,
	channelID string,
	messageID string,
) (*discordgo.Message, error) {
	_ = guildSegment // the channel ID is globally unique
	msg, err := l.fetchMessage(channelID, messageID)
	if err != nil && isResolveNotFound(err) {
		l.selfHeal(ctx, messageID, err)
	}
	return msg, err
}

// resolveID finds a message by bare snowflake. Tried in order: the
// message cache, the channel recorded for this ID in the database, the
// invoking channel, and finally every readable channel in the guild.
func (l *MessageLocator) resolveID(
	ctx context.Context,
	messageID string,
	rc ResolveContext,
) (*discordgo.Message, error) {
	for _, cached := range l.client.AllCachedMessages() {
		if cached.ID == messageID {
			return cached, nil
		}
	}

	if l.db != nil {
		channelID, known, err := l.db.MessageChannel(ctx, messageID)
		if err != nil {
			l.logger.ErrorContext(ctx, "error reading message binding", tint.Err(err))
		} else if known && channelID != "" {
			msg, fetchErr := l.fetchMessage(channelID, messageID)
			if fetchErr == nil {
				return msg, nil
			}
			if isResolveNotFound(fetchErr) {
				l.selfHeal(ctx, messageID, fetchErr)
			}
		}
	}

	if rc.ChannelID != "" {
		msg, err := l.fetchMessage(rc.ChannelID, messageID)
		if err == nil {
			return msg, nil
		}
		if !isResolveNotFound(err) &&
			!errors.Is(err, ErrForbidden) &&
			!errors.Is(err, ErrTransient) {
			return nil, err
		}
	}

	if rc.GuildID != "" {
		msg, err := l.scanGuild(ctx, messageID, rc)
		if err == nil || !errors.Is(err, ErrMessageNotFound) {
			return msg, err
		}
	}

	// last resort: the invoker's own DM channel with the bot
	if rc.AuthorID != "" {
		if dm, dmErr := l.client.UserChannel(rc.AuthorID); dmErr == nil {
			if msg, fetchErr := l.fetchMessage(dm.ID, messageID); fetchErr == nil {
				return msg, nil
			}
		}
	}

	return nil, ErrMessageNotFound
}

// scanGuild tries every other text channel and active thread in the
// guild, paced by the limiter. Channels the bot can't read are skipped,
// as are transient platform errors.
func (l *MessageLocator) scanGuild(
	ctx context.Context,
	messageID string,
	rc ResolveContext,
) (*discordgo.Message, error) {
	channels, err := l.client.GuildChannels(rc.GuildID)
	if err != nil {
		return nil, err
	}
	threads, err := l.client.ActiveThreads(rc.GuildID)
	if err != nil {
		l.logger.DebugContext(
			ctx,
			"couldn't list active threads",
			"guild_id", rc.GuildID,
			tint.Err(err),
		)
	} else {
		channels = append(channels, threads...)
	}
	for _, channel := range channels {
		if channel.ID == rc.ChannelID {
			continue
		}
		switch channel.Type {
		case discordgo.ChannelTypeGuildText,
			discordgo.ChannelTypeGuildNews,
			discordgo.ChannelTypeGuildNewsThread,
			discordgo.ChannelTypeGuildPublicThread,
			discordgo.ChannelTypeGuildPrivateThread:
		default:
			continue
		}
		if waitErr := l.limiter.Wait(ctx); waitErr != nil {
			return nil, waitErr
		}
		msg, fetchErr := l.fetchMessage(channel.ID, messageID)
		if fetchErr == nil {
			return msg, nil
		}
		if errors.Is(fetchErr, ErrForbidden) || errors.Is(fetchErr, ErrTransient) {
			l.logger.DebugContext(
				ctx,
				"skipping channel during scan",
				"channel_id", channel.ID,
				tint.Err(fetchErr),
			)
			continue
		}
		if !isResolveNotFound(fetchErr) {
			return nil, fetchErr
		}
	}
	return nil, ErrMessageNotFound
}

// resolveMember interprets the query as a member reference and returns
// that member's most recent message in the invoking channel. done is
// false when the query doesn't name a member and a later stage should
// take over: a bare ID may be a message ID, free text may be a pattern,
// and a named member with no recent message may have been a pattern
// match all along.
func (l *MessageLocator) resolveMember(
	ctx context.Context,
	query string,
	rc ResolveContext,
) (msg *discordgo.Message, done bool, err error) {
	if m := memberMentionPattern.FindStringSubmatch(query); m != nil {
		member, memberErr := l.client.Member(rc.GuildID, m[1])
		if memberErr != nil {
			if errors.Is(memberErr, ErrMemberNotFound) {
				return nil, false, nil
			}
			return nil, true, memberErr
		}
		msg, err = l.lastMessageBy(ctx, member.User.ID, rc)
		return msg, true, err
	}

	if messageIDPattern.MatchString(query) {
		member, memberErr := l.client.Member(rc.GuildID, query)
		if memberErr != nil {
			return nil, false, nil
		}
		msg, err = l.lastMessageBy(ctx, member.User.ID, rc)
		return msg, true, err
	}

	member, memberErr := l.findMemberNamed(rc.GuildID, query)
	if memberErr != nil {
		if errors.Is(memberErr, ErrMemberNotFound) {
			return nil, false, nil
		}
		return nil, true, memberErr
	}
	msg, err = l.lastMessageBy(ctx, member.User.ID, rc)
	if errors.Is(err, ErrMessageNotFound) {
		return nil, false, nil
	}
	return msg, true, err
}

// findMemberNamed searches guild members by name, preferring an exact
// (case-insensitive) username or nickname match over a prefix match.
func (l *MessageLocator) findMemberNamed(guildID string, name string) (
	*discordgo.Member,
	error,
) {
	members, err := l.client.MembersNamed(guildID, name, 10)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrMemberNotFound
	}
	lowered := strings.ToLower(name)
	for _, member := range members {
		if strings.ToLower(member.User.Username) == lowered ||
			strings.ToLower(member.Nick) == lowered ||
			strings.ToLower(member.User.GlobalName) == lowered {
			return member, nil
		}
	}
	return members[0], nil
}

// lastMessageBy finds the member's most recent message in the invoking
// channel, checking the cache before fetching history.
func (l *MessageLocator) lastMessageBy(
	_ context.Context,
	memberID string,
	rc ResolveContext,
) (*discordgo.Message, error) {
	invokingID := ""
	if rc.Message != nil {
		invokingID = rc.Message.ID
	}

	cached := l.client.CachedChannelMessages(rc.ChannelID)
	for i := len(cached) - 1; i >= 0; i-- {
		msg := cached[i]
		if msg.ID == invokingID || msg.Author == nil {
			continue
		}
		if msg.Author.ID == memberID {
			return msg, nil
		}
	}

	history, err := l.client.ChannelMessages(
		rc.ChannelID, discordMaxMessageFetch, invokingID, "", "",
	)
	if err != nil {
		return nil, err
	}
	for _, msg := range history {
		if msg.Author != nil && msg.Author.ID == memberID {
			return msg, nil
		}
	}
	return nil, ErrMessageNotFound
}

// resolveRegex treats the query as a case-insensitive content pattern
// and returns the most recent matching message in the invoking channel,
// scanning recent history and then the remaining cached messages.
func (l *MessageLocator) resolveRegex(query string, rc ResolveContext) (
	*discordgo.Message,
	error,
) {
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if rc.ChannelID == "" {
		return nil, ErrMessageNotFound
	}

	invokingID := ""
	if rc.Message != nil {
		invokingID = rc.Message.ID
	}

	history, err := l.client.ChannelMessages(
		rc.ChannelID, discordMaxMessageFetch, invokingID, "", "",
	)
	if err == nil {
		for _, msg := range history {
			if msg.ID == invokingID {
				continue
			}
			if re.MatchString(msg.Content) {
				return msg, nil
			}
		}
	}

	cached := l.client.CachedChannelMessages(rc.ChannelID)
	for i := len(cached) - 1; i >= 0; i-- {
		msg := cached[i]
		if msg.ID == invokingID {
			continue
		}
		if re.MatchString(msg.Content) {
			return msg, nil
		}
	}
	return nil, ErrMessageNotFound
}

// fetchMessage checks the cache for one message before going to REST.
func (l *MessageLocator) fetchMessage(channelID string, messageID string) (
	*discordgo.Message,
	error,
) {
	if msg, ok := l.client.CachedMessage(channelID, messageID); ok {
		return msg, nil
	}
	return l.client.FetchMessage(channelID, messageID)
}

// selfHeal drops the stale message row for an ID that no longer resolves.
// The cascade takes any saved quotes bound to it.
func (l *MessageLocator) selfHeal(ctx context.Context, messageID string, cause error) {
	if l.db == nil {
		return
	}
	l.logger.InfoContext(
		ctx,
		"pruning stale message binding",
		"message_id", messageID,
		tint.Err(cause),
	)
	if err := l.db.DeleteMessage(ctx, messageID); err != nil {
		l.logger.ErrorContext(
			ctx,
			fmt.Sprintf("error pruning message %s", messageID),
			tint.Err(err),
		)
	}
}
