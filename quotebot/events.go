package quotebot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

type eventKind string

const (
	eventMessageCreate  eventKind = "message_create"
	eventMessageUpdate  eventKind = "message_update"
	eventMessageDelete  eventKind = "message_delete"
	eventReactionAdd    eventKind = "reaction_add"
	eventGuildCreate    eventKind = "guild_create"
	eventGuildDelete    eventKind = "guild_delete"
	eventChannelDelete  eventKind = "channel_delete"
	eventThreadCreate   eventKind = "thread_create"
	eventThreadDelete   eventKind = "thread_delete"
	eventGatewayReady   eventKind = "ready"
)

// eventHandler is one named consumer of a gateway event.
type eventHandler struct {
	name string
	fn   func(ctx context.Context, evt any) error
}

// eventDispatcher fans each gateway event out to its registered
// handlers. Handlers are isolated from each other: a panic or error in
// one never stops the rest from running.
type eventDispatcher struct {
	logger   *slog.Logger
	handlers map[eventKind][]eventHandler
}

func newEventDispatcher(logger *slog.Logger) *eventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventDispatcher{
		logger:   logger.With(loggerNameKey, "dispatcher"),
		handlers: map[eventKind][]eventHandler{},
	}
}

func (d *eventDispatcher) register(
	kind eventKind,
	name string,
	fn func(ctx context.Context, evt any) error,
) {
	d.handlers[kind] = append(d.handlers[kind], eventHandler{name: name, fn: fn})
}

func (d *eventDispatcher) dispatch(ctx context.Context, kind eventKind, evt any) {
	for _, handler := range d.handlers[kind] {
		d.run(ctx, kind, handler, evt)
	}
}

func (d *eventDispatcher) run(
	ctx context.Context,
	kind eventKind,
	handler eventHandler,
	evt any,
) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(
				ctx,
				"panic in event handler",
				"event", string(kind),
				"handler", handler.name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	if err := handler.fn(ctx, evt); err != nil {
		d.logger.ErrorContext(
			ctx,
			"event handler failed",
			"event", string(kind),
			"handler", handler.name,
			tint.Err(err),
		)
	}
}

// registerEventHandlers wires the gateway events into the dispatch table
// and attaches the discordgo handlers that feed it.
func (q *QuoteBot) registerEventHandlers() {
	d := q.dispatcher

	d.register(eventMessageCreate, "commands", q.handleCommandMessage)
	d.register(eventMessageCreate, "quote_links", q.handleQuoteLink)
	d.register(eventMessageCreate, "highlights", q.handleHighlights)

	d.register(eventMessageUpdate, "snipe_edits", q.handleMessageEdit)
	d.register(eventMessageDelete, "snipe_deletes", q.handleMessageDelete)
	d.register(eventReactionAdd, "reaction_quotes", q.handleQuoteReaction)

	d.register(eventGuildCreate, "guild_join", q.handleGuildJoin)
	d.register(eventGuildDelete, "guild_remove", q.handleGuildRemove)
	d.register(eventChannelDelete, "channel_cleanup", q.handleChannelDelete)
	d.register(eventThreadCreate, "thread_join", q.handleThreadCreate)
	d.register(eventThreadDelete, "thread_cleanup", q.handleThreadDelete)
	d.register(eventGatewayReady, "startup_sync", q.handleReady)

	session := q.discord.session
	remove := q.discord.discordgoRemoveHandlerFuncs

	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			d.dispatch(q.eventContext(), eventMessageCreate, m)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
			d.dispatch(q.eventContext(), eventMessageUpdate, m)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, m *discordgo.MessageDelete) {
			d.dispatch(q.eventContext(), eventMessageDelete, m)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
			d.dispatch(q.eventContext(), eventReactionAdd, r)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, g *discordgo.GuildCreate) {
			d.dispatch(q.eventContext(), eventGuildCreate, g)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, g *discordgo.GuildDelete) {
			d.dispatch(q.eventContext(), eventGuildDelete, g)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, c *discordgo.ChannelDelete) {
			d.dispatch(q.eventContext(), eventChannelDelete, c)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, t *discordgo.ThreadCreate) {
			d.dispatch(q.eventContext(), eventThreadCreate, t)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, t *discordgo.ThreadDelete) {
			d.dispatch(q.eventContext(), eventThreadDelete, t)
		},
	))
	remove = append(remove, session.AddHandler(
		func(_ *discordgo.Session, r *discordgo.Ready) {
			d.dispatch(q.eventContext(), eventGatewayReady, r)
		},
	))
	remove = append(remove, session.AddHandler(q.discord.handlerConnect()))
	remove = append(remove, session.AddHandler(q.discord.handlerDisconnect()))

	q.discord.discordgoRemoveHandlerFuncs = remove
}

// ignorableMessage filters out messages the bot should never act on:
// its own, other bots', and webhooks'.
func (q *QuoteBot) ignorableMessage(m *discordgo.Message) bool {
	if m == nil || m.Author == nil {
		return true
	}
	if m.Author.Bot {
		return true
	}
	if bot := q.discord.session.BotUser(); bot != nil && m.Author.ID == bot.ID {
		return true
	}
	return false
}

func (q *QuoteBot) handleCommandMessage(ctx context.Context, evt any) error {
	m, ok := evt.(*discordgo.MessageCreate)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	if q.ignorableMessage(m.Message) {
		return nil
	}
	return q.maybeRunCommand(ctx, m.Message)
}

// handleQuoteLink auto-quotes messages whose content is exactly a
// message link, in guilds with quote links enabled.
func (q *QuoteBot) handleQuoteLink(ctx context.Context, evt any) error {
	m, ok := evt.(*discordgo.MessageCreate)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	if q.ignorableMessage(m.Message) || m.GuildID == "" {
		return nil
	}

	content := strings.TrimSpace(m.Content)
	match := messageURLPattern.FindStringSubmatch(content)
	if match == nil || match[0] != content {
		return nil
	}

	guild, err := q.writeDB.GetGuild(ctx, m.GuildID)
	if err != nil {
		if isResolveNotFound(err) {
			return nil
		}
		return err
	}
	if !guild.QuoteLinks {
		return nil
	}

	msg, err := q.locator.Resolve(ctx, content, ResolveContext{
		Message:   m.Message,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
	})
	if err != nil {
		q.logger.DebugContext(
			ctx, "ignoring unresolvable link", append(
				messageLogAttrs(m.Message), tint.Err(err),
			)...,
		)
		return nil
	}

	return q.sendQuote(ctx, m.ChannelID, msg, QuoteTypeLink, m.Author)
}

func (q *QuoteBot) handleHighlights(ctx context.Context, evt any) error {
	m, ok := evt.(*discordgo.MessageCreate)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	if q.ignorableMessage(m.Message) || m.GuildID == "" {
		return nil
	}
	_, err := q.highlights.Notify(ctx, m.Message)
	return err
}

// handleMessageEdit records the pre-edit version of a message for
// snipeedit. Only real content edits count; embed unfurls and other
// no-op updates are ignored.
func (q *QuoteBot) handleMessageEdit(_ context.Context, evt any) error {
	m, ok := evt.(*discordgo.MessageUpdate)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	before := m.BeforeUpdate
	if before == nil {
		return nil
	}
	if q.ignorableMessage(before) {
		return nil
	}
	if m.Message != nil && before.Content == m.Content {
		return nil
	}
	q.snipes.RecordEdit(before)
	return nil
}

// handleMessageDelete prunes the stored message row and records the
// deletion for snipe, if the content was still cached. Command
// invocations never become snipe targets.
func (q *QuoteBot) handleMessageDelete(ctx context.Context, evt any) error {
	m, ok := evt.(*discordgo.MessageDelete)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	if err := q.writeDB.DeleteMessage(ctx, m.ID); err != nil {
		q.logger.WarnContext(
			ctx,
			"couldn't prune deleted message",
			"message_id", m.ID,
			tint.Err(err),
		)
	}
	deleted := m.BeforeDelete
	if deleted == nil {
		return nil
	}
	if q.ignorableMessage(deleted) {
		return nil
	}
	if q.isCommandInvocation(ctx, deleted) {
		return nil
	}
	q.snipes.RecordDelete(deleted)
	return nil
}

// handleQuoteReaction quotes a message when someone reacts to it with
// 💬, in guilds with reaction quoting enabled.
func (q *QuoteBot) handleQuoteReaction(ctx context.Context, evt any) error {
	r, ok := evt.(*discordgo.MessageReactionAdd)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	if r.GuildID == "" || r.Emoji.Name != quoteReactionEmoji {
		return nil
	}
	if bot := q.discord.session.BotUser(); bot != nil && r.UserID == bot.ID {
		return nil
	}

	guild, err := q.writeDB.GetGuild(ctx, r.GuildID)
	if err != nil {
		if isResolveNotFound(err) {
			return nil
		}
		return err
	}
	if !guild.QuoteReactions {
		return nil
	}

	msg, err := q.locator.fetchMessage(r.ChannelID, r.MessageID)
	if err != nil {
		return err
	}
	if msg.Author != nil && msg.Author.Bot {
		return nil
	}

	var requester *discordgo.User
	if member, memberErr := q.discord.session.Member(r.GuildID, r.UserID); memberErr == nil {
		requester = member.User
	}

	return q.sendQuote(ctx, r.ChannelID, msg, QuoteTypeQuote, requester)
}

// handleGuildJoin runs when the bot lands in a guild, including the
// initial burst after connect. Blocked guilds are left immediately.
func (q *QuoteBot) handleGuildJoin(ctx context.Context, evt any) error {
	g, ok := evt.(*discordgo.GuildCreate)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}

	blocked, err := q.writeDB.IsGuildBlocked(ctx, g.ID)
	if err != nil {
		return err
	}
	if blocked {
		q.logger.InfoContext(ctx, "leaving blocked guild", "guild_id", g.ID)
		return q.discord.session.LeaveGuild(g.ID)
	}

	if _, err = q.writeDB.GetOrCreateGuild(ctx, g.ID); err != nil {
		return err
	}

	q.notifyBotlog(ctx, fmt.Sprintf(
		"Joined guild **%s** (%s), now in %d guilds",
		g.Name, g.ID, q.discord.session.GuildCount(),
	))
	return nil
}

// handleGuildRemove cleans up after the bot leaves (or is removed from)
// a guild: settings, guild-owned quotes, guild highlights and snipes.
func (q *QuoteBot) handleGuildRemove(ctx context.Context, evt any) error {
	g, ok := evt.(*discordgo.GuildDelete)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	// Unavailable means an outage, not a removal
	if g.Unavailable {
		return nil
	}

	q.snipes.ForgetGuild(g.ID)
	if err := q.writeDB.DeleteGuild(ctx, g.ID); err != nil {
		return err
	}

	q.notifyBotlog(ctx, fmt.Sprintf(
		"Removed from guild %s, now in %d guilds",
		g.ID, q.discord.session.GuildCount(),
	))
	return nil
}

func (q *QuoteBot) handleChannelDelete(ctx context.Context, evt any) error {
	c, ok := evt.(*discordgo.ChannelDelete)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	q.snipes.ForgetChannel(c.GuildID, c.ID)
	return q.writeDB.DeleteChannel(ctx, c.ID)
}

// handleThreadCreate joins new threads so their messages land in the
// cache.
func (q *QuoteBot) handleThreadCreate(_ context.Context, evt any) error {
	t, ok := evt.(*discordgo.ThreadCreate)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	if t.NewlyCreated {
		return q.discord.session.ThreadJoin(t.ID)
	}
	return nil
}

func (q *QuoteBot) handleThreadDelete(ctx context.Context, evt any) error {
	t, ok := evt.(*discordgo.ThreadDelete)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}
	q.snipes.ForgetChannel(t.GuildID, t.ID)
	return q.writeDB.DeleteChannel(ctx, t.ID)
}

// handleReady reconciles the guild table against the guilds the gateway
// reports and sets the bot's presence.
func (q *QuoteBot) handleReady(ctx context.Context, evt any) error {
	if _, ok := evt.(*discordgo.Ready); !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}

	if err := q.discord.session.UpdateCustomStatus(
		fmt.Sprintf("%shelp", q.config.Prefix),
	); err != nil {
		q.logger.Warn("error setting presence", tint.Err(err))
	}

	return q.writeDB.SyncGuilds(ctx, q.discord.session.GuildIDs())
}
