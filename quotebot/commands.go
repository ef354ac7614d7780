package quotebot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// commandContext carries everything one command invocation needs.
type commandContext struct {
	bot     *QuoteBot
	message *discordgo.Message

	// guild is the invoking guild's settings row, nil in DMs
	guild *Guild

	prefix string
	args   string
}

func (cc *commandContext) guildID() string {
	return cc.message.GuildID
}

func (cc *commandContext) channelID() string {
	return cc.message.ChannelID
}

func (cc *commandContext) author() *discordgo.User {
	return cc.message.Author
}

// reply sends a plain text response to the invoking channel.
func (cc *commandContext) reply(content string) error {
	_, err := cc.bot.discord.session.SendMessage(cc.channelID(), content)
	return err
}

func (cc *commandContext) resolveContext() ResolveContext {
	return ResolveContext{
		Message:   cc.message,
		GuildID:   cc.guildID(),
		ChannelID: cc.channelID(),
		AuthorID:  cc.author().ID,
	}
}

// botCommand describes one prefix command.
type botCommand struct {
	name        string
	aliases     []string
	description string

	// guildOnly commands refuse to run in DMs
	guildOnly bool

	// ownerOnly commands are restricted to the configured owner IDs
	ownerOnly bool

	// requirePerms are channel permissions the invoker must hold
	requirePerms int64

	handler func(ctx context.Context, cc *commandContext) error
}

// buildCommandTable assembles the command registry, keyed by primary
// name and by every alias.
func buildCommandTable() map[string]*botCommand {
	commands := []*botCommand{
		{
			name:        "quote",
			aliases:     []string{"q"},
			description: "Quote a message by link, ID, member, or reply",
			handler:     cmdQuote,
		},
		{
			name:         "clone",
			description:  "Copy recent messages from another channel here via webhook",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdClone,
		},
		{
			name:        "personalquote",
			aliases:     []string{"pq"},
			description: "Post one of your saved quotes",
			handler:     cmdPersonalQuote,
		},
		{
			name:        "personalquotelist",
			aliases:     []string{"pqlist"},
			description: "List your saved quotes",
			handler:     cmdPersonalQuoteList,
		},
		{
			name:        "personalquoteset",
			aliases:     []string{"pqset"},
			description: "Save a quote under an alias",
			handler:     cmdPersonalQuoteSet,
		},
		{
			name:        "personalquotecopy",
			aliases:     []string{"pqcopy"},
			description: "Copy one of another owner's saved quotes to your own",
			handler:     cmdPersonalQuoteCopy,
		},
		{
			name:        "personalquoteremove",
			aliases:     []string{"pqremove"},
			description: "Remove one of your saved quotes",
			handler:     cmdPersonalQuoteRemove,
		},
		{
			name:        "personalquoteclear",
			aliases:     []string{"pqclear"},
			description: "Remove all of your saved quotes",
			handler:     cmdPersonalQuoteClear,
		},
		{
			name:        "serverquote",
			aliases:     []string{"sq"},
			description: "Post one of this server's saved quotes",
			guildOnly:   true,
			handler:     cmdServerQuote,
		},
		{
			name:        "serverquotelist",
			aliases:     []string{"sqlist"},
			description: "List this server's saved quotes",
			guildOnly:   true,
			handler:     cmdServerQuoteList,
		},
		{
			name:         "serverquoteset",
			aliases:      []string{"sqset"},
			description:  "Save a server quote under an alias",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdServerQuoteSet,
		},
		{
			name:         "serverquotecopy",
			aliases:      []string{"sqcopy"},
			description:  "Copy one of another owner's saved quotes to the server's",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdServerQuoteCopy,
		},
		{
			name:         "serverquoteremove",
			aliases:      []string{"sqremove"},
			description:  "Remove one of this server's saved quotes",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdServerQuoteRemove,
		},
		{
			name:         "serverquoteclear",
			aliases:      []string{"sqclear"},
			description:  "Remove all of this server's saved quotes",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdServerQuoteClear,
		},
		{
			name:        "highlight",
			aliases:     []string{"hl"},
			description: "Get a DM when a message matches a regex pattern",
			handler:     cmdHighlightAdd,
		},
		{
			name:        "highlightlist",
			aliases:     []string{"hllist"},
			description: "List your highlight patterns",
			handler:     cmdHighlightList,
		},
		{
			name:        "highlightremove",
			aliases:     []string{"hlremove"},
			description: "Remove a highlight pattern",
			handler:     cmdHighlightRemove,
		},
		{
			name:        "highlightclear",
			aliases:     []string{"hlclear"},
			description: "Remove all your highlight patterns",
			handler:     cmdHighlightClear,
		},
		{
			name:        "snipe",
			description: "Quote the most recently deleted message in this channel",
			guildOnly:   true,
			handler:     cmdSnipe,
		},
		{
			name:        "snipeedit",
			description: "Quote the pre-edit version of the most recently edited message",
			guildOnly:   true,
			handler:     cmdSnipeEdit,
		},
		{
			name:         "togglereaction",
			description:  "Toggle quoting via the \U0001F4AC reaction",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdToggleReaction,
		},
		{
			name:         "togglelinks",
			description:  "Toggle automatic quoting of message links",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdToggleLinks,
		},
		{
			name:         "toggledelete",
			description:  "Toggle deleting command messages after a quote",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdToggleDelete,
		},
		{
			name:         "togglesnipepermission",
			description:  "Toggle requiring Manage Messages for snipe commands",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdToggleSnipePermission,
		},
		{
			name:         "setprefix",
			description:  "Set this server's command prefix",
			guildOnly:    true,
			requirePerms: discordgo.PermissionManageServer,
			handler:      cmdSetPrefix,
		},
		{
			name:        "block",
			description: "Block a guild and leave it",
			ownerOnly:   true,
			handler:     cmdOwnerBlock,
		},
		{
			name:        "unblock",
			description: "Unblock a guild",
			ownerOnly:   true,
			handler:     cmdOwnerUnblock,
		},
		{
			name:        "leave",
			description: "Leave a guild",
			ownerOnly:   true,
			handler:     cmdOwnerLeave,
		},
		{
			name:        "shutdown",
			description: "Shut the bot down",
			ownerOnly:   true,
			handler:     cmdOwnerShutdown,
		},
		{
			name:        "help",
			description: "List available commands",
			handler:     cmdHelp,
		},
	}

	table := make(map[string]*botCommand, len(commands)*2)
	for _, command := range commands {
		table[command.name] = command
		for _, alias := range command.aliases {
			table[alias] = command
		}
	}
	return table
}

// commandPrefix returns the prefix active for the invoking message and
// the guild settings row, if any.
func (q *QuoteBot) commandPrefix(ctx context.Context, m *discordgo.Message) (
	string,
	*Guild,
	error,
) {
	if m.GuildID == "" {
		return q.config.Prefix, nil, nil
	}
	guild, err := q.writeDB.GetOrCreateGuild(ctx, m.GuildID)
	if err != nil {
		return "", nil, err
	}
	prefix := guild.Prefix
	if prefix == "" {
		prefix = q.config.Prefix
	}
	return prefix, guild, nil
}

// commandBody strips the command prefix from a message. A leading
// mention of the bot works as an alternate prefix. Returns ok=false when
// the message carries neither.
func (q *QuoteBot) commandBody(m *discordgo.Message, prefix string) (string, bool) {
	if strings.HasPrefix(m.Content, prefix) {
		return strings.TrimPrefix(m.Content, prefix), true
	}
	bot := q.discord.session.BotUser()
	if bot == nil || !messageMentionsUser(m, bot.ID) {
		return "", false
	}
	for _, mention := range []string{"<@" + bot.ID + ">", "<@!" + bot.ID + ">"} {
		if strings.HasPrefix(m.Content, mention) {
			return strings.TrimSpace(strings.TrimPrefix(m.Content, mention)), true
		}
	}
	return "", false
}

// isCommandInvocation reports whether a message would run a registered
// command if dispatched.
func (q *QuoteBot) isCommandInvocation(ctx context.Context, m *discordgo.Message) bool {
	prefix, _, err := q.commandPrefix(ctx, m)
	if err != nil {
		return false
	}
	body, ok := q.commandBody(m, prefix)
	if !ok {
		return false
	}
	name, _, _ := strings.Cut(body, " ")
	_, registered := q.commands[strings.ToLower(strings.TrimSpace(name))]
	return registered
}

// maybeRunCommand parses and executes a prefix command, if the message
// is one. Non-commands and unknown names are silently ignored.
func (q *QuoteBot) maybeRunCommand(ctx context.Context, m *discordgo.Message) error {
	prefix, guild, err := q.commandPrefix(ctx, m)
	if err != nil {
		return err
	}
	body, ok := q.commandBody(m, prefix)
	if !ok {
		return nil
	}

	name, args, _ := strings.Cut(body, " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	command, ok := q.commands[name]
	if !ok {
		return nil
	}

	cc := &commandContext{
		bot:     q,
		message: m,
		guild:   guild,
		prefix:  prefix,
		args:    strings.TrimSpace(args),
	}

	if command.ownerOnly && !containsString(q.config.OwnerIDs, m.Author.ID) {
		return nil
	}
	if command.guildOnly && m.GuildID == "" {
		return cc.reply(errorResponse(msgGuildOnly))
	}
	if command.requirePerms != 0 && m.GuildID != "" {
		perms, permErr := q.discord.session.Permissions(m.Author.ID, m.ChannelID)
		if permErr != nil {
			return permErr
		}
		if perms&command.requirePerms == 0 {
			return cc.reply(errorResponse(msgNoPermission))
		}
	}

	q.logger.InfoContext(
		ctx,
		"running command",
		append(messageLogAttrs(m), "command", command.name)...,
	)
	q.metricCommandsHandled.Add(1)

	if runErr := command.handler(ctx, cc); runErr != nil {
		return q.respondCommandError(ctx, cc, command, runErr)
	}

	q.deleteCommandIfNeeded(ctx, cc, command)
	return nil
}

// deleteCommandIfNeeded removes the invoking message after a successful
// quote command, in guilds with delete-commands enabled.
func (q *QuoteBot) deleteCommandIfNeeded(
	ctx context.Context,
	cc *commandContext,
	command *botCommand,
) {
	if cc.guild == nil || !cc.guild.DeleteCommands {
		return
	}
	switch command.name {
	case "quote", "personalquote", "serverquote", "snipe", "snipeedit":
	default:
		return
	}
	bot := q.discord.session.BotUser()
	if bot == nil {
		return
	}
	perms, err := q.discord.session.Permissions(bot.ID, cc.channelID())
	if err != nil || perms&discordgo.PermissionManageMessages == 0 {
		return
	}
	if err = q.discord.session.DeleteMessage(
		cc.channelID(), cc.message.ID,
	); err != nil {
		q.logger.DebugContext(ctx, "couldn't delete command message", tint.Err(err))
	}
}

// respondCommandError translates a command failure into a user-facing
// reply. Unknown errors surface as a log line plus a generic response.
func (q *QuoteBot) respondCommandError(
	ctx context.Context,
	cc *commandContext,
	command *botCommand,
	err error,
) error {
	var conflict *HighlightConflictError

	var response string
	switch {
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrChannelNotFound):
		response = msgQuoteNoMessage
	case errors.Is(err, ErrMemberNotFound):
		response = msgQuoteNoMessage
	case errors.Is(err, ErrForbidden):
		response = msgQuoteNoPerms
	case errors.Is(err, ErrInvalidQuery):
		response = msgQuoteInputError
	case errors.Is(err, ErrInvalidPattern):
		response = msgHighlightInvalid
	case errors.Is(err, ErrPatternTooLong):
		response = msgHighlightTooLong
	case errors.Is(err, ErrHighlightNotFound):
		response = msgHighlightsNone
	case errors.Is(err, ErrHighlightLimit):
		response = msgHighlightLimit
	case errors.Is(err, ErrSavedQuoteNotFound):
		response = msgSavedQuoteNotFound
	case errors.Is(err, ErrSavedQuoteLimit):
		response = msgSavedQuoteLimit
	case errors.Is(err, ErrAliasTooLong):
		response = msgAliasInvalid
	case errors.Is(err, ErrPrefixTooLong):
		response = msgPrefixTooLong
	case errors.As(err, &conflict):
		response = fmt.Sprintf(msgHighlightConflict, conflict.Error())
	default:
		q.logger.ErrorContext(
			ctx,
			"command failed",
			append(messageLogAttrs(cc.message), "command", command.name, tint.Err(err))...,
		)
		response = msgQuoteInputError
	}
	return cc.reply(errorResponse(response))
}

// cmdHelp lists the commands the invoker can use.
func cmdHelp(_ context.Context, cc *commandContext) error {
	seen := map[string]bool{}
	var lines []string
	for _, command := range cc.bot.commands {
		if seen[command.name] || command.ownerOnly {
			continue
		}
		seen[command.name] = true
		lines = append(lines, fmt.Sprintf(
			"`%s%s` - %s", cc.prefix, command.name, command.description,
		))
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Commands",
		Description: truncate(strings.Join(sortedStrings(lines), "\n"), embedDescriptionLimit),
	}
	_, err := cc.bot.discord.session.SendComplex(cc.channelID(), &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	return err
}
