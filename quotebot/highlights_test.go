package quotebot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHighlightPattern(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateHighlightPattern("go+"))
	require.NoError(t, ValidateHighlightPattern(`\bdeploy\b`))
	require.ErrorIs(t, ValidateHighlightPattern("[unclosed"), ErrInvalidPattern)
}

func highlightFixture(t testing.TB) (*HighlightMatcher, *mockPlatform, DBI) {
	t.Helper()
	platform := newMockPlatform()
	platform.addGuild("guild-1", "Test Guild")
	platform.addChannel(&discordgo.Channel{
		ID: "chan-1", GuildID: "guild-1", Name: "general",
		Type: discordgo.ChannelTypeGuildText,
	})
	platform.addMember("guild-1", &discordgo.Member{
		User: &discordgo.User{ID: "watcher-1", Username: "watcher"},
	})
	platform.addMember("guild-1", &discordgo.Member{
		User: &discordgo.User{ID: "talker-1", Username: "talker"},
	})
	db := newTestWriteDB(t)
	return NewHighlightMatcher(platform, db, testLogger(t)), platform, db
}

func highlightMessage(content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "msg-1",
		GuildID:   "guild-1",
		ChannelID: "chan-1",
		Content:   content,
		Author:    &discordgo.User{ID: "talker-1", Username: "talker"},
	}
}

func TestHighlightNotify(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "deploy", "guild-1"))

	notified, err := matcher.Notify(ctx, highlightMessage("time to DEPLOY the thing"))
	require.NoError(t, err)
	assert.Equal(t, 1, notified)

	sent := platform.sentTo("dm-watcher-1")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].content, "Your highlight `deploy` matched in")
	assert.Contains(
		t,
		sent[0].content,
		"https://discord.com/channels/guild-1/chan-1/msg-1",
	)
	require.Len(t, sent[0].embeds, 1)
	assert.Equal(
		t,
		"Highlighted message from #general, Test Guild",
		sent[0].embeds[0].Footer.Text,
	)
}

func TestHighlightNotifyNoMatch(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "deploy", "guild-1"))

	notified, err := matcher.Notify(ctx, highlightMessage("nothing of interest"))
	require.NoError(t, err)
	assert.Zero(t, notified)
	assert.Empty(t, platform.sentTo("dm-watcher-1"))
}

func TestHighlightNotifySkipsAuthor(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "talker-1", "deploy", "guild-1"))

	notified, err := matcher.Notify(ctx, highlightMessage("deploy now"))
	require.NoError(t, err)
	assert.Zero(t, notified)
	assert.Empty(t, platform.sentTo("dm-talker-1"))
}

func TestHighlightNotifySkipsBots(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "deploy", "guild-1"))

	msg := highlightMessage("deploy now")
	msg.Author.Bot = true
	notified, err := matcher.Notify(ctx, msg)
	require.NoError(t, err)
	assert.Zero(t, notified)
	assert.Empty(t, platform.sent)
}

func TestHighlightNotifyOncePerUser(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "deploy", "guild-1"))
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "thing", "guild-1"))

	notified, err := matcher.Notify(ctx, highlightMessage("deploy the thing"))
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
	assert.Len(t, platform.sentTo("dm-watcher-1"), 1)
}

func TestHighlightNotifyGlobalScope(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "deploy", HighlightScopeGlobal))

	notified, err := matcher.Notify(ctx, highlightMessage("deploy now"))
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
	assert.Len(t, platform.sentTo("dm-watcher-1"), 1)
}

func TestHighlightNotifySkipsUsersWithoutViewChannel(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "deploy", "guild-1"))
	platform.setPerms("watcher-1", "chan-1", 0)

	notified, err := matcher.Notify(ctx, highlightMessage("deploy now"))
	require.NoError(t, err)
	assert.Zero(t, notified)
	assert.Empty(t, platform.sentTo("dm-watcher-1"))
}

func TestHighlightNotifySkipsDepartedMembers(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "departed-1", "deploy", "guild-1"))

	// departed-1 is not a member fixture, so the membership check fails
	notified, err := matcher.Notify(ctx, highlightMessage("deploy now"))
	require.NoError(t, err)
	assert.Zero(t, notified)
	assert.Empty(t, platform.sent)
}

func TestHighlightNotifyClosedDMsClearHighlights(t *testing.T) {
	t.Parallel()
	matcher, platform, db := highlightFixture(t)
	ctx := context.Background()
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "deploy", "guild-1"))
	require.NoError(t, db.AddHighlight(ctx, "watcher-1", "release", HighlightScopeGlobal))
	platform.dmFail = true

	notified, err := matcher.Notify(ctx, highlightMessage("deploy now"))
	require.NoError(t, err)
	assert.Zero(t, notified)

	remaining, err := db.ListHighlights(ctx, "watcher-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestHighlightForget(t *testing.T) {
	t.Parallel()
	matcher, _, _ := highlightFixture(t)
	re := matcher.pattern("deploy")
	require.NotNil(t, re)
	matcher.Forget("deploy")

	matcher.mu.RLock()
	_, ok := matcher.compiled["deploy"]
	matcher.mu.RUnlock()
	assert.False(t, ok)
}
