// Package quotebot implements a Discord bot for quoting messages.
//
// QuoteBot turns messages into rich embeds: quoted by link or ID, by
// replying to them, by naming their author, or by reacting with the
// speech balloon emoji. Quotes can be saved under per-user or per-guild
// aliases, recently deleted or edited messages can be "sniped", and
// users can register regex highlight patterns that DM them whenever a
// matching message is posted.
//
// KeyFile components of the package include:
//
//   - QuoteBot: The main struct that encapsulates the bot's core functionality.
//   - Discord: Handles the gateway connection and platform REST calls.
//   - MessageLocator: Resolves user queries (URLs, IDs, member names) to messages.
//   - SnipeCache: Tracks the most recent delete and edit per channel.
//   - HighlightMatcher: Matches messages against user highlight patterns.
//   - API: Provides an optional status HTTP endpoint.
//   - Database: Handles data persistence and retrieval.
//
// The bot supports prefix commands, among them:
//
//   - quote: Quote a message by reply, URL, ID or author.
//   - personalquote / serverquote: Save and post aliased quotes.
//   - snipe / snipeedit: Repost the last deleted or edited message.
//   - highlight: Manage regex patterns that trigger DM notifications.
//
// QuoteBot also includes per-guild settings (prefix, reaction quotes,
// link quotes, command deletion, snipe permissions), owner moderation
// commands, and structured logging throughout.
package quotebot
