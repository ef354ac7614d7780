package quotebot

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commandFixture wires a bot, a guild with two text channels, and a
// couple of members, and returns a builder for invoking messages.
func commandFixture(t testing.TB) (
	*QuoteBot,
	*mockPlatform,
	func(authorID string, content string) *discordgo.Message,
) {
	t.Helper()
	bot, platform := newTestBot(t)

	platform.addGuild("guild-1", "Test Guild")
	platform.addChannel(&discordgo.Channel{
		ID: "chan-1", GuildID: "guild-1", Name: "general",
		Type: discordgo.ChannelTypeGuildText,
	})
	platform.addChannel(&discordgo.Channel{
		ID: "chan-2", GuildID: "guild-1", Name: "other",
		Type: discordgo.ChannelTypeGuildText,
	})
	platform.addMember("guild-1", &discordgo.Member{
		User: &discordgo.User{ID: "user-1", Username: "someone"},
	})
	platform.addMember("guild-1", &discordgo.Member{
		User: &discordgo.User{ID: "user-2", Username: "other"},
	})

	makeMessage := func(authorID string, content string) *discordgo.Message {
		return &discordgo.Message{
			ID:        "invoking-msg",
			GuildID:   "guild-1",
			ChannelID: "chan-1",
			Content:   content,
			Author:    &discordgo.User{ID: authorID, Username: "someone"},
		}
	}
	return bot, platform, makeMessage
}

func dmMessage(authorID string, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "dm-invoking-msg",
		ChannelID: "dm-" + authorID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "someone"},
	}
}

func TestCommandNonCommandIgnored(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", "just chatting")))
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";")))
	assert.Empty(t, platform.sent)
	assert.Zero(t, bot.metricCommandsHandled.Load())
}

func TestCommandUnknownNameSilent(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), makeMessage("user-1", ";nosuchcommand"),
	))
	assert.Empty(t, platform.sent)
	assert.Zero(t, bot.metricCommandsHandled.Load())
}

func TestCommandGuildPrefix(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()
	require.NoError(t, bot.writeDB.SetPrefix(ctx, "guild-1", "!!"))

	// the default prefix no longer triggers in this guild
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";help")))
	assert.Empty(t, platform.sent)

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", "!!help")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "Commands", sent.embeds[0].Title)
	assert.Contains(t, sent.embeds[0].Description, "`!!quote`")
}

func TestCommandDMUsesDefaultPrefix(t *testing.T) {
	bot, platform, _ := commandFixture(t)

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), dmMessage("user-1", ";help"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	require.Len(t, sent.embeds, 1)

	// owner commands stay out of help
	assert.NotContains(t, sent.embeds[0].Description, "shutdown")
	assert.NotContains(t, sent.embeds[0].Description, "`;block`")
}

func TestCommandGuildOnlyInDM(t *testing.T) {
	bot, platform, _ := commandFixture(t)

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), dmMessage("user-1", ";snipe"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgGuildOnly), sent.content)
}

func TestCommandRequirePermsDenied(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	platform.setPerms(
		"user-1", "chan-1",
		discordgo.PermissionAll&^discordgo.PermissionManageServer,
	)

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), makeMessage("user-1", ";togglelinks"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgNoPermission), sent.content)
	assert.Zero(t, bot.metricCommandsHandled.Load())
}

func TestCommandOwnerOnly(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	// silently dropped for everyone else
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";shutdown")))
	assert.Empty(t, platform.sent)

	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("900000000000000001", ";shutdown"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgOwnerShutdown), sent.content)

	select {
	case <-bot.signalStop:
	default:
		t.Fatal("expected a stop signal")
	}
}

func TestCommandQuote(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)

	platform.addMessage(&discordgo.Message{
		ID: "111111111111111111", ChannelID: "chan-2", GuildID: "guild-1",
		Content: "the quoted line",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})

	require.NoError(t, bot.maybeRunCommand(
		context.Background(),
		makeMessage("user-1", ";q https://discord.com/channels/guild-1/chan-2/111111111111111111"),
	))

	sent, ok := platform.lastSent()
	require.True(t, ok)
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "the quoted line", sent.embeds[0].Description)
	assert.Equal(t, "#other, Test Guild | Quoted by someone", sent.embeds[0].Footer.Text)
	assert.EqualValues(t, 1, bot.metricCommandsHandled.Load())
	assert.EqualValues(t, 1, bot.metricQuotesSent.Load())
}

func TestCommandQuoteNotFound(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), makeMessage("user-1", ";quote 999999999999999999"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgQuoteNoMessage), sent.content)
}

func TestCommandToggle(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";togglelinks")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgToggleLinksOn), sent.content)

	guild, err := bot.writeDB.GetOrCreateGuild(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, guild.QuoteLinks)

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";togglelinks")))
	sent, _ = platform.lastSent()
	assert.Equal(t, successResponse(msgToggleLinksOff), sent.content)
}

func TestCommandToggleDeleteNeedsManageMessages(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	// enabling is refused when the bot can't delete messages here
	platform.setPerms(platform.botUser.ID, "chan-1", discordgo.PermissionSendMessages)

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";toggledelete")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgNoManageMsgs), sent.content)

	guild, err := bot.writeDB.GetOrCreateGuild(ctx, "guild-1")
	require.NoError(t, err)
	assert.False(t, guild.DeleteCommands)
}

func TestCommandSetPrefix(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";setprefix ?!")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgPrefixSet, "?!"), sent.content)

	guild, err := bot.writeDB.GetOrCreateGuild(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "?!", guild.Prefix)

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";setprefix ....")))
	sent, _ = platform.lastSent()
	assert.Equal(t, errorResponse(msgPrefixTooLong), sent.content)
}

func TestCommandSnipe(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	// nothing cached yet
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgQuoteNoMessage), sent.content)

	bot.snipes.RecordDelete(&discordgo.Message{
		ID: "deleted-msg", GuildID: "guild-1", ChannelID: "chan-1",
		Content: "you saw nothing",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe")))
	sent, _ = platform.lastSent()
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "you saw nothing", sent.embeds[0].Description)
	assert.Equal(t, "#general, Test Guild | Sniped by someone", sent.embeds[0].Footer.Text)
}

func TestCommandSnipePermissionGate(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	bot.snipes.RecordDelete(&discordgo.Message{
		ID: "deleted-msg", GuildID: "guild-1", ChannelID: "chan-1",
		Content: "gone",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})
	platform.setPerms(
		"user-1", "chan-1",
		discordgo.PermissionAll&^discordgo.PermissionManageMessages,
	)

	// snipe requires Manage Messages by default
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgNoPermission), sent.content)

	require.NoError(t, bot.writeDB.SetGuildToggle(
		ctx, "guild-1", columnGuildSnipeRequires, false,
	))
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe")))
	sent, _ = platform.lastSent()
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "gone", sent.embeds[0].Description)
}

func TestCommandSnipeEdit(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)

	bot.snipes.RecordEdit(&discordgo.Message{
		ID: "edited-msg", GuildID: "guild-1", ChannelID: "chan-1",
		Content: "the first draft",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), makeMessage("user-1", ";snipeedit"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "the first draft", sent.embeds[0].Description)
}

func TestCommandSnipeChannelArgument(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	bot.snipes.RecordDelete(&discordgo.Message{
		ID: "deleted-msg", GuildID: "guild-1", ChannelID: "chan-2",
		Content: "gone elsewhere",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})

	// without an argument, only the invoking channel's snipes show
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgQuoteNoMessage), sent.content)

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe <#chan-2>")))
	sent, _ = platform.lastSent()
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "gone elsewhere", sent.embeds[0].Description)
	// the quote still lands in the invoking channel
	assert.Equal(t, "chan-1", sent.channelID)
}

func TestCommandSnipeChannelArgumentUnreadable(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	bot.snipes.RecordDelete(&discordgo.Message{
		ID: "deleted-msg", GuildID: "guild-1", ChannelID: "chan-2",
		Content: "secret",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})
	platform.setPerms("user-1", "chan-2", 0)

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe <#chan-2>")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgQuoteNoPerms), sent.content)
}

func TestCommandMentionPrefix(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	msg := makeMessage("user-1", "<@bot-user-id> help")
	msg.Mentions = []*discordgo.User{platform.botUser}
	require.NoError(t, bot.maybeRunCommand(ctx, msg))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "Commands", sent.embeds[0].Title)

	// the nickname mention form works too
	msg = makeMessage("user-1", "<@!bot-user-id> help")
	msg.Mentions = []*discordgo.User{platform.botUser}
	require.NoError(t, bot.maybeRunCommand(ctx, msg))
	sent, _ = platform.lastSent()
	require.Len(t, sent.embeds, 1)

	// a mention that isn't leading is not a command
	platform.sent = nil
	msg = makeMessage("user-1", "hey <@bot-user-id> help")
	msg.Mentions = []*discordgo.User{platform.botUser}
	require.NoError(t, bot.maybeRunCommand(ctx, msg))
	assert.Empty(t, platform.sent)
}

func TestCommandDeletesInvokingMessage(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()
	require.NoError(t, bot.writeDB.SetGuildToggle(
		ctx, "guild-1", columnGuildDeleteCommands, true,
	))
	require.NoError(t, bot.writeDB.SetGuildToggle(
		ctx, "guild-1", columnGuildSnipeRequires, false,
	))

	bot.snipes.RecordDelete(&discordgo.Message{
		ID: "deleted-msg", GuildID: "guild-1", ChannelID: "chan-1",
		Content: "gone",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";snipe")))
	assert.Contains(t, platform.deletedMessages, "chan-1/invoking-msg")

	// help isn't a quote command, so its invocation stays
	platform.deletedMessages = nil
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";help")))
	assert.Empty(t, platform.deletedMessages)
}

func TestCommandPersonalQuoteRoundTrip(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	platform.addMessage(&discordgo.Message{
		ID: "111111111111111111", ChannelID: "chan-2", GuildID: "guild-1",
		Content: "save me",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})

	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("user-1", ";pqset keeper 111111111111111111"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgSavedQuoteSet, "keeper"), sent.content)

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";pq keeper")))
	sent, _ = platform.lastSent()
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "save me", sent.embeds[0].Description)
	assert.Equal(t, "Personal quote of someone", sent.embeds[0].Footer.Text)

	// another user doesn't see it
	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-2", ";pq keeper")))
	sent, _ = platform.lastSent()
	assert.Equal(t, errorResponse(msgSavedQuoteNotFound), sent.content)
}

func TestCommandPersonalQuoteFromDM(t *testing.T) {
	bot, platform, _ := commandFixture(t)
	ctx := context.Background()

	platform.addMessage(&discordgo.Message{
		ID: "111111111111111111", ChannelID: "dm-user-1",
		Content: "just between us",
		Author:  &discordgo.User{ID: "user-2", Username: "other"},
	})

	require.NoError(t, bot.maybeRunCommand(
		ctx, dmMessage("user-1", ";pqset secret 111111111111111111"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgSavedQuoteSet, "secret"), sent.content)

	// the DM message has no channel row, but stays playable
	channelID, known, err := bot.writeDB.MessageChannel(ctx, "111111111111111111")
	require.NoError(t, err)
	assert.True(t, known)
	assert.Empty(t, channelID)

	require.NoError(t, bot.maybeRunCommand(ctx, dmMessage("user-1", ";pq secret")))
	sent, _ = platform.lastSent()
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "just between us", sent.embeds[0].Description)
}

func TestCommandPersonalQuoteCopy(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	// the source owner is a bare ID, not necessarily a guild member
	require.NoError(t, bot.writeDB.SetSavedQuote(
		ctx, "550000000000000002", "keeper", "guild-1", "chan-2", "msg-1",
	))
	require.NoError(t, bot.writeDB.SetSavedQuote(
		ctx, "550000000000000002", "other", "guild-1", "chan-2", "msg-2",
	))

	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("user-1", ";pqcopy 550000000000000002 keeper"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgSavedQuoteCopied, "keeper"), sent.content)

	// exactly the named alias was copied
	quote, err := bot.writeDB.GetSavedQuote(ctx, "user-1", "keeper")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", quote.MessageID)
	quotes, err := bot.writeDB.ListSavedQuotes(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, quotes, 1)

	// a mentioned owner works too
	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("user-1", ";pqcopy <@550000000000000002> other"),
	))
	sent, _ = platform.lastSent()
	assert.Equal(t, successResponse(msgSavedQuoteCopied, "other"), sent.content)

	// an alias the source doesn't have
	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("user-1", ";pqcopy 550000000000000002 missing"),
	))
	sent, _ = platform.lastSent()
	assert.Equal(t, errorResponse(msgSavedQuoteNotFound), sent.content)
}

func TestCommandServerQuoteSetRequiresManageServer(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	platform.setPerms(
		"user-1", "chan-1",
		discordgo.PermissionAll&^discordgo.PermissionManageServer,
	)

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), makeMessage("user-1", ";sqset keeper 111111111111111111"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgNoPermission), sent.content)
}

func TestCommandHighlightAdd(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";hl deploy")))

	// confirmation goes over DM
	dms := platform.sentTo("dm-user-1")
	require.Len(t, dms, 1)
	assert.Equal(t, successResponse(msgHighlightAdded, "deploy"), dms[0].content)

	highlights, err := bot.writeDB.ListHighlights(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, highlights, 1)
	assert.Equal(t, "deploy", highlights[0].Pattern)
	assert.Equal(t, "guild-1", highlights[0].GuildID)
}

func TestCommandHighlightAddRollsBackOnClosedDMs(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()
	platform.dmFail = true

	require.NoError(t, bot.maybeRunCommand(ctx, makeMessage("user-1", ";hl deploy")))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgHighlightDMsDisabled), sent.content)

	highlights, err := bot.writeDB.ListHighlights(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, highlights)
}

func TestCommandHighlightAddInvalidPattern(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), makeMessage("user-1", ";hl [unclosed"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgHighlightInvalid), sent.content)
}

func TestCommandHighlightRemove(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()
	require.NoError(t, bot.writeDB.AddHighlight(ctx, "user-1", "deploy", "guild-1"))

	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("user-1", ";hlremove `deploy`"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgHighlightRemoved, "deploy"), sent.content)

	highlights, err := bot.writeDB.ListHighlights(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, highlights)

	// a unique prefix of a registered pattern removes it too
	require.NoError(t, bot.writeDB.AddHighlight(ctx, "user-1", "releases", "guild-1"))
	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("user-1", ";hlremove rel"),
	))
	sent, _ = platform.lastSent()
	assert.Equal(t, successResponse(msgHighlightRemoved, "releases"), sent.content)
}

func TestCommandOwnerBlock(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()
	platform.addGuild("900000000000000099", "Bad Guild")

	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("900000000000000001", ";block 900000000000000099"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, successResponse(msgOwnerBlocked), sent.content)
	assert.Contains(t, platform.leftGuilds, "900000000000000099")

	blocked, err := bot.writeDB.IsGuildBlocked(ctx, "900000000000000099")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestCommandOwnerUnblock(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("900000000000000001", ";unblock 900000000000000099"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgOwnerUnblockNotFound), sent.content)

	require.NoError(t, bot.writeDB.BlockGuild(ctx, "900000000000000099"))
	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("900000000000000001", ";unblock 900000000000000099"),
	))
	sent, _ = platform.lastSent()
	assert.Equal(t, successResponse(msgOwnerUnblocked), sent.content)
}

func TestCommandOwnerLeave(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	ctx := context.Background()

	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("900000000000000001", ";leave 900000000000000099"),
	))
	sent, ok := platform.lastSent()
	require.True(t, ok)
	assert.Equal(t, errorResponse(msgOwnerGuildNotFound), sent.content)

	platform.addGuild("900000000000000099", "Old Guild")
	require.NoError(t, bot.maybeRunCommand(
		ctx, makeMessage("900000000000000001", ";leave 900000000000000099"),
	))
	sent, _ = platform.lastSent()
	assert.Equal(t, successResponse(msgOwnerGuildLeft, "Old Guild"), sent.content)
	assert.Contains(t, platform.leftGuilds, "900000000000000099")
}

func TestCommandClone(t *testing.T) {
	bot, platform, makeMessage := commandFixture(t)
	bot.config.CloneMessageInterval = time.Millisecond

	const sourceID = "200000000000000002"
	platform.addChannel(&discordgo.Channel{
		ID: sourceID, GuildID: "guild-1", Name: "source",
		Type: discordgo.ChannelTypeGuildText,
	})
	for _, msg := range []*discordgo.Message{
		{ID: "3", ChannelID: sourceID, Content: "third", Author: &discordgo.User{ID: "user-2", Username: "other"}},
		{ID: "2", ChannelID: sourceID, Content: "second", Author: &discordgo.User{ID: "user-2", Username: "other"}},
		{ID: "1", ChannelID: sourceID, Content: "first", Author: &discordgo.User{ID: "user-2", Username: "other"}},
	} {
		platform.addMessage(msg)
	}

	require.NoError(t, bot.maybeRunCommand(
		context.Background(), makeMessage("user-1", ";clone <#"+sourceID+"> 3"),
	))

	require.Contains(t, platform.createdWebhooks, "chan-1/quote-clone")
	assert.Contains(t, platform.deletedWebhooks, "webhook-1")

	// replayed oldest first, under the author's name
	require.Len(t, platform.webhookParams, 3)
	assert.Equal(t, "first", platform.webhookParams[0].Content)
	assert.Equal(t, "third", platform.webhookParams[2].Content)
	assert.Equal(t, "other", platform.webhookParams[0].Username)
}

func TestParseCloneArgs(t *testing.T) {
	t.Parallel()

	channelID, limit, err := parseCloneArgs("<#123456789012345678>")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678", channelID)
	assert.Equal(t, cloneMessageLimit, limit)

	channelID, limit, err = parseCloneArgs("123456789012345678 10")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678", channelID)
	assert.Equal(t, 10, limit)

	_, _, err = parseCloneArgs("")
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, _, err = parseCloneArgs("not-a-channel")
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, _, err = parseCloneArgs("123456789012345678 0")
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, _, err = parseCloneArgs("123456789012345678 51")
	require.ErrorIs(t, err, ErrInvalidQuery)
}
