package quotebot

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	// quoteReactionEmoji triggers a quote when added as a reaction, in
	// guilds that have reaction quoting enabled.
	quoteReactionEmoji = "\U0001F4AC"

	// discordMaxMessageFetch is the most messages a single history request
	// can return.
	discordMaxMessageFetch = 100
)

// Discord manages the gateway connection for the bot. It wires event
// handlers, tracks connection state, and owns the session lifecycle.
type Discord struct {
	session                     PlatformClient
	config                      *DiscordConfig
	logger                      *slog.Logger
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()
	bot                         *QuoteBot
}

// newDiscord initializes a new Discord instance with the provided
// configuration
func newDiscord(config *DiscordConfig) (*Discord, error) {
	if config == nil {
		return nil, errors.New("nil discord config")
	}
	return &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}, nil
}

// newSession initializes a new Discord session for the Discord struct.
// The state cache is enabled: message resolution consults it before
// making any REST call.
func (d *Discord) newSession() (PlatformClient, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session_handler"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	disc.StateEnabled = true
	disc.State.MaxMessageCount = d.config.MessageCacheSize
	disc.State.TrackMembers = true
	disc.Identify.Intents = d.config.GatewayIntents
	session.session = disc

	err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level())
	if err != nil {
		return session, err
	}

	return session, nil
}

func (d *Discord) handlerConnect() func(
	s *discordgo.Session,
	r *discordgo.Connect,
) {
	return func(s *discordgo.Session, _ *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		var sessionID string
		var userID string
		var username string

		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
			if s.State.User != nil {
				userID = s.State.User.ID
				username = s.State.User.Username
			}
		}
		d.logger.Info(
			"Connected",
			"session_id", sessionID,
			slog.Group("user", "id", userID, "username", username),
		)
	}
}

func (d *Discord) handlerDisconnect() func(
	s *discordgo.Session,
	r *discordgo.Disconnect,
) {
	return func(s *discordgo.Session, _ *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)

		var sessionID string
		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
		}
		d.logger.Info("disconnected", "session_id", sessionID)
	}
}

// PlatformClient defines the chat platform operations the bot uses. It
// mirrors the subset of `discordgo.Session` (and its state cache) the
// bot needs, to enable testing/mocking. [DiscordSession] implements it
// for real connections.
type PlatformClient interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error

	// UpdateCustomStatus sets the bot's custom status line
	UpdateCustomStatus(status string) error

	// BotUser returns the bot's own user
	BotUser() *discordgo.User

	// CachedMessage returns a message from the state cache, if present.
	// Never makes a network call.
	CachedMessage(channelID string, messageID string) (*discordgo.Message, bool)

	// CachedChannelMessages returns the cached messages for one channel,
	// newest last. Never makes a network call.
	CachedChannelMessages(channelID string) []*discordgo.Message

	// AllCachedMessages returns every message currently in the state
	// cache, across all channels. Never makes a network call.
	AllCachedMessages() []*discordgo.Message

	// FetchMessage retrieves a single message over REST
	FetchMessage(channelID string, messageID string) (*discordgo.Message, error)

	// ChannelMessages retrieves up to `limit` messages over REST.
	// beforeID, afterID and aroundID behave as in the Discord API.
	ChannelMessages(
		channelID string,
		limit int,
		beforeID string,
		afterID string,
		aroundID string,
	) ([]*discordgo.Message, error)

	// Guild returns a guild, from state if cached
	Guild(guildID string) (*discordgo.Guild, error)

	// GuildChannels returns a guild's channels, from state if cached
	GuildChannels(guildID string) ([]*discordgo.Channel, error)

	// Channel returns a channel, from state if cached
	Channel(channelID string) (*discordgo.Channel, error)

	// Member returns a guild member, from state if cached
	Member(guildID string, userID string) (*discordgo.Member, error)

	// MembersNamed searches a guild's members by username or nickname
	// prefix
	MembersNamed(guildID string, name string, limit int) ([]*discordgo.Member, error)

	// UserChannel returns (creating if needed) the DM channel with a user
	UserChannel(userID string) (*discordgo.Channel, error)

	// SendComplex sends a message with embeds and/or content
	SendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)

	// SendMessage sends a plain text message
	SendMessage(channelID string, content string) (*discordgo.Message, error)

	// DeleteMessage deletes a message
	DeleteMessage(channelID string, messageID string) error

	// Permissions returns the calculated permissions of a user in a channel
	Permissions(userID string, channelID string) (int64, error)

	// UserColor returns the display color of a user in a channel
	UserColor(userID string, channelID string) int

	// GuildCount returns the number of guilds the bot is in
	GuildCount() int

	// GuildIDs returns the IDs of every guild the bot is in
	GuildIDs() []string

	// LeaveGuild removes the bot from a guild
	LeaveGuild(guildID string) error

	// WebhookExecute posts a message through a webhook
	WebhookExecute(
		webhookID string,
		token string,
		wait bool,
		data *discordgo.WebhookParams,
	) (*discordgo.Message, error)

	// CreateWebhook creates a webhook in a channel
	CreateWebhook(channelID string, name string) (*discordgo.Webhook, error)

	// DeleteWebhook removes a webhook
	DeleteWebhook(webhookID string) error

	// ThreadJoin adds the bot to a thread
	ThreadJoin(threadID string) error

	// ActiveThreads returns the active threads in a guild
	ActiveThreads(guildID string) ([]*discordgo.Channel, error)
}

// DiscordSession implements PlatformClient, wrapping a
// [discordgo.Session](https://pkg.go.dev/github.com/bwmarrin/discordgo#Session)
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

// translateRESTError maps discordgo REST failures onto the bot's error
// taxonomy: 404s become the given notFound sentinel, 403s become
// ErrForbidden, and 5xx responses are marked transient.
func translateRESTError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch {
		case restErr.Response.StatusCode == http.StatusNotFound:
			return notFound
		case restErr.Response.StatusCode == http.StatusForbidden:
			return ErrForbidden
		case restErr.Response.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return err
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl.Level() {
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("invalid log level: %s", lvl)
	}
	return nil
}

func (d DiscordSession) UpdateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

func (d DiscordSession) BotUser() *discordgo.User {
	if d.session.State == nil {
		return nil
	}
	return d.session.State.User
}

func (d DiscordSession) CachedMessage(channelID string, messageID string) (
	*discordgo.Message,
	bool,
) {
	msg, err := d.session.State.Message(channelID, messageID)
	if err != nil {
		return nil, false
	}
	return msg, true
}

func (d DiscordSession) CachedChannelMessages(channelID string) []*discordgo.Message {
	channel, err := d.session.State.Channel(channelID)
	if err != nil {
		return nil
	}
	d.session.State.RLock()
	defer d.session.State.RUnlock()
	messages := make([]*discordgo.Message, len(channel.Messages))
	copy(messages, channel.Messages)
	return messages
}

func (d DiscordSession) AllCachedMessages() []*discordgo.Message {
	state := d.session.State
	state.RLock()
	defer state.RUnlock()
	var messages []*discordgo.Message
	for _, guild := range state.Guilds {
		for _, channel := range guild.Channels {
			messages = append(messages, channel.Messages...)
		}
		for _, thread := range guild.Threads {
			messages = append(messages, thread.Messages...)
		}
	}
	for _, channel := range state.PrivateChannels {
		messages = append(messages, channel.Messages...)
	}
	return messages
}

func (d DiscordSession) FetchMessage(channelID string, messageID string) (
	*discordgo.Message,
	error,
) {
	msg, err := d.session.ChannelMessage(channelID, messageID)
	if err != nil {
		return nil, translateRESTError(err, ErrMessageNotFound)
	}
	return msg, nil
}

func (d DiscordSession) ChannelMessages(
	channelID string,
	limit int,
	beforeID string,
	afterID string,
	aroundID string,
) ([]*discordgo.Message, error) {
	msgs, err := d.session.ChannelMessages(channelID, limit, beforeID, afterID, aroundID)
	if err != nil {
		return nil, translateRESTError(err, ErrChannelNotFound)
	}
	return msgs, nil
}

func (d DiscordSession) Guild(guildID string) (*discordgo.Guild, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil {
		return guild, nil
	}
	guild, err := d.session.Guild(guildID)
	if err != nil {
		return nil, translateRESTError(err, ErrGuildNotFound)
	}
	return guild, nil
}

func (d DiscordSession) GuildChannels(guildID string) ([]*discordgo.Channel, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil && len(guild.Channels) > 0 {
		d.session.State.RLock()
		defer d.session.State.RUnlock()
		channels := make([]*discordgo.Channel, len(guild.Channels))
		copy(channels, guild.Channels)
		return channels, nil
	}
	channels, err := d.session.GuildChannels(guildID)
	if err != nil {
		return nil, translateRESTError(err, ErrGuildNotFound)
	}
	return channels, nil
}

func (d DiscordSession) Channel(channelID string) (*discordgo.Channel, error) {
	if channel, err := d.session.State.Channel(channelID); err == nil {
		return channel, nil
	}
	channel, err := d.session.Channel(channelID)
	if err != nil {
		return nil, translateRESTError(err, ErrChannelNotFound)
	}
	return channel, nil
}

func (d DiscordSession) Member(guildID string, userID string) (*discordgo.Member, error) {
	if member, err := d.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	member, err := d.session.GuildMember(guildID, userID)
	if err != nil {
		return nil, translateRESTError(err, ErrMemberNotFound)
	}
	return member, nil
}

func (d DiscordSession) MembersNamed(guildID string, name string, limit int) (
	[]*discordgo.Member,
	error,
) {
	members, err := d.session.GuildMembersSearch(guildID, name, limit)
	if err != nil {
		return nil, translateRESTError(err, ErrMemberNotFound)
	}
	return members, nil
}

func (d DiscordSession) UserChannel(userID string) (*discordgo.Channel, error) {
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return nil, translateRESTError(err, ErrChannelNotFound)
	}
	return channel, nil
}

func (d DiscordSession) SendComplex(
	channelID string,
	data *discordgo.MessageSend,
) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, data)
	if err != nil {
		d.logger.Error(
			"error sending message",
			tint.Err(err),
			"channel_id", channelID,
		)
		return nil, translateRESTError(err, ErrChannelNotFound)
	}
	return msg, nil
}

func (d DiscordSession) SendMessage(channelID string, content string) (
	*discordgo.Message,
	error,
) {
	msg, err := d.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return nil, translateRESTError(err, ErrChannelNotFound)
	}
	return msg, nil
}

func (d DiscordSession) DeleteMessage(channelID string, messageID string) error {
	err := d.session.ChannelMessageDelete(channelID, messageID)
	return translateRESTError(err, ErrMessageNotFound)
}

func (d DiscordSession) Permissions(userID string, channelID string) (int64, error) {
	perms, err := d.session.State.UserChannelPermissions(userID, channelID)
	if err == nil {
		return perms, nil
	}
	perms, err = d.session.UserChannelPermissions(userID, channelID)
	return perms, translateRESTError(err, ErrChannelNotFound)
}

func (d DiscordSession) UserColor(userID string, channelID string) int {
	return d.session.State.UserColor(userID, channelID)
}

func (d DiscordSession) GuildCount() int {
	d.session.State.RLock()
	defer d.session.State.RUnlock()
	return len(d.session.State.Guilds)
}

func (d DiscordSession) GuildIDs() []string {
	d.session.State.RLock()
	defer d.session.State.RUnlock()
	ids := make([]string, 0, len(d.session.State.Guilds))
	for _, guild := range d.session.State.Guilds {
		ids = append(ids, guild.ID)
	}
	return ids
}

func (d DiscordSession) LeaveGuild(guildID string) error {
	return translateRESTError(d.session.GuildLeave(guildID), ErrGuildNotFound)
}

func (d DiscordSession) WebhookExecute(
	webhookID string,
	token string,
	wait bool,
	data *discordgo.WebhookParams,
) (*discordgo.Message, error) {
	msg, err := d.session.WebhookExecute(webhookID, token, wait, data)
	if err != nil {
		return nil, translateRESTError(err, ErrChannelNotFound)
	}
	return msg, nil
}

func (d DiscordSession) CreateWebhook(channelID string, name string) (
	*discordgo.Webhook,
	error,
) {
	webhook, err := d.session.WebhookCreate(channelID, name, "")
	if err != nil {
		return nil, translateRESTError(err, ErrChannelNotFound)
	}
	return webhook, nil
}

func (d DiscordSession) DeleteWebhook(webhookID string) error {
	return translateRESTError(d.session.WebhookDelete(webhookID), ErrChannelNotFound)
}

func (d DiscordSession) ThreadJoin(threadID string) error {
	return translateRESTError(d.session.ThreadJoin(threadID), ErrChannelNotFound)
}

func (d DiscordSession) ActiveThreads(guildID string) ([]*discordgo.Channel, error) {
	threads, err := d.session.GuildThreadsActive(guildID)
	if err != nil {
		return nil, translateRESTError(err, ErrGuildNotFound)
	}
	return threads.Threads, nil
}

// messageMentionsUser checks if a given discord message mentions the
// given user ID (does not indicate if the message content itself contains
// the user, just if the message mentions the user via @).
func messageMentionsUser(m *discordgo.Message, userID string) bool {
	if m == nil {
		return false
	}
	for _, mention := range m.Mentions {
		if mention.ID == userID {
			return true
		}
	}
	return false
}
