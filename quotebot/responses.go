package quotebot

import "fmt"

// User-facing response strings. The original set of localization tables is
// collapsed into a single static English table; response variants keyed by
// quote type live in renderer.go.
const (
	responseErrorPrefix   = ":x:"
	responseSuccessPrefix = ":white_check_mark:"

	msgQuoteNoMessage  = "I couldn't find that message."
	msgQuoteNoPerms    = "I don't have permission to read that message."
	msgQuoteInputError = "I couldn't make sense of that query."
	msgNoEmbedPerms    = "I need the **Embed Links** permission here."
	msgNoManageMsgs    = "I need the **Manage Messages** permission here."
	msgNoWebhookPerms  = "I need the **Manage Webhooks** permission here."
	msgNoPermission    = "You don't have permission to use that command."
	msgGuildOnly       = "That command only works in a server."
	msgNoThreads       = "That command can't be used in a thread."

	msgAliasInvalid       = "That alias is too long (50 characters max)."
	msgSavedQuoteNotFound = "No saved quote with that alias."
	msgSavedQuoteLimit    = "The limit of 50 saved quotes has been reached."
	msgSavedQuoteSet      = "Saved quote **%s** set."
	msgSavedQuoteCopied   = "Saved quote **%s** copied."
	msgSavedQuoteRemoved  = "Saved quote **%s** removed."
	msgSavedQuotesCleared = "All saved quotes cleared."
	msgSavedQuotesNone    = "No saved quotes yet."

	msgHighlightTooLong      = "That pattern is too long (50 characters max)."
	msgHighlightInvalid      = "That pattern isn't a valid regular expression."
	msgHighlightDMsDisabled  = "I can't DM you. Enable direct messages from server members first."
	msgHighlightLimit        = "The limit of 10 highlights has been reached."
	msgHighlightAdded        = "Highlight `%s` added."
	msgHighlightRemoved      = "Highlight `%s` removed."
	msgHighlightsCleared     = "All highlights cleared."
	msgHighlightsNone        = "No highlights yet."
	msgHighlightConflict     = "You already have that pattern registered: %s."
	msgHighlightListAuthor   = "Your highlights"
	msgPersonalListAuthor    = "Your saved quotes"
	msgServerListAuthor      = "This server's saved quotes"
	msgSnipeDMsUnsupported   = "Sniping DMs is not supported."
	msgCloneLimit            = "The message limit must be between 1 and %d."
	msgPrefixTooLong         = "The prefix can be at most 3 characters."
	msgPrefixSet             = "Prefix set to `%s`."
	msgToggleReactionsOn     = "Quote reactions enabled."
	msgToggleReactionsOff    = "Quote reactions disabled."
	msgToggleLinksOn         = "Quote links enabled."
	msgToggleLinksOff        = "Quote links disabled."
	msgToggleDeleteOn        = "Command messages will now be deleted."
	msgToggleDeleteOff       = "Command messages will no longer be deleted."
	msgToggleSnipePermsOn    = "Sniping now requires the Manage Messages permission."
	msgToggleSnipePermsOff   = "Sniping no longer requires the Manage Messages permission."
	msgOwnerGuildLeft        = "Left **%s**."
	msgOwnerGuildNotFound    = "I'm not in a guild with that ID."
	msgOwnerBlocked          = "Guild blocked."
	msgOwnerUnblocked        = "Guild unblocked."
	msgOwnerUnblockNotFound  = "That guild isn't blocked."
	msgOwnerShutdown         = "Shutting down."
	msgAttachmentsFieldName  = "Attachments"
	msgAttachmentsNSFWHidden = ":underage: Attachments hidden (NSFW channel)"
)

func errorResponse(format string, args ...any) string {
	return responseErrorPrefix + " " + fmt.Sprintf(format, args...)
}

func successResponse(format string, args ...any) string {
	return responseSuccessPrefix + " " + fmt.Sprintf(format, args...)
}
