package quotebot

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SnipeCache holds the most recent deleted message and most recent
// pre-edit message per channel, keyed by guild then channel. Entries for
// a guild are dropped when the bot leaves it; entries for a channel are
// dropped when the channel is deleted. DM channels are keyed under the
// empty guild ID.
type SnipeCache struct {
	mu      sync.RWMutex
	deletes map[string]map[string]*discordgo.Message
	edits   map[string]map[string]*discordgo.Message
}

func NewSnipeCache() *SnipeCache {
	return &SnipeCache{
		deletes: map[string]map[string]*discordgo.Message{},
		edits:   map[string]map[string]*discordgo.Message{},
	}
}

// RecordDelete stores a just-deleted message as the channel's snipe
// target, replacing any previous one.
func (c *SnipeCache) RecordDelete(m *discordgo.Message) {
	if m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := c.deletes[m.GuildID]
	if channels == nil {
		channels = map[string]*discordgo.Message{}
		c.deletes[m.GuildID] = channels
	}
	channels[m.ChannelID] = m
}

// RecordEdit stores the pre-edit content of a just-edited message as the
// channel's snipeedit target, replacing any previous one.
func (c *SnipeCache) RecordEdit(before *discordgo.Message) {
	if before == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := c.edits[before.GuildID]
	if channels == nil {
		channels = map[string]*discordgo.Message{}
		c.edits[before.GuildID] = channels
	}
	channels[before.ChannelID] = before
}

// LastDelete returns the most recently deleted message in a channel, if
// one is cached.
func (c *SnipeCache) LastDelete(guildID string, channelID string) (*discordgo.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.deletes[guildID][channelID]
	return m, ok
}

// LastEdit returns the pre-edit version of the most recently edited
// message in a channel, if one is cached.
func (c *SnipeCache) LastEdit(guildID string, channelID string) (*discordgo.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.edits[guildID][channelID]
	return m, ok
}

// ForgetChannel drops both snipe targets for one channel.
func (c *SnipeCache) ForgetChannel(guildID string, channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deletes[guildID], channelID)
	delete(c.edits[guildID], channelID)
}

// ForgetGuild drops all snipe targets for a guild.
func (c *SnipeCache) ForgetGuild(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deletes, guildID)
	delete(c.edits, guildID)
}

// Size returns the number of cached delete and edit entries.
func (c *SnipeCache) Size() (deletes int, edits int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, channels := range c.deletes {
		deletes += len(channels)
	}
	for _, channels := range c.edits {
		edits += len(channels)
	}
	return deletes, edits
}
