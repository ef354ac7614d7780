package quotebot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMemberNotFound indicates a query could not be resolved to a
	// guild member.
	ErrMemberNotFound = errors.New("member not found")

	// ErrMessageNotFound indicates a message reference (ID, URL or search
	// pattern) did not resolve to a message the bot can see.
	ErrMessageNotFound = errors.New("message not found")

	// ErrChannelNotFound indicates a channel or thread ID did not resolve.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrGuildNotFound indicates a guild ID did not resolve.
	ErrGuildNotFound = errors.New("guild not found")

	// ErrInvalidQuery indicates user input that can't be interpreted,
	// such as a regex pattern that doesn't compile.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrForbidden indicates the bot lacks permission for a platform
	// operation (missing access to a channel, closed DMs, etc.).
	ErrForbidden = errors.New("forbidden")

	// ErrTransient indicates a network or platform hiccup. During
	// multi-channel scanning these are swallowed and the scan continues.
	ErrTransient = errors.New("transient platform error")
)

var (
	ErrSavedQuoteNotFound = errors.New("saved quote not found")
	ErrSavedQuoteLimit    = errors.New("saved quote limit reached")
	ErrAliasTooLong       = errors.New("alias too long")

	ErrHighlightNotFound = errors.New("highlight not found")
	ErrHighlightLimit    = errors.New("highlight limit reached")
	ErrPatternTooLong    = errors.New("pattern too long")
	ErrInvalidPattern    = errors.New("pattern does not compile")

	ErrPrefixTooLong = errors.New("prefix too long")
)

// HighlightConflictError is returned when a global highlight pattern and a
// guild-scoped pattern with identical text would coexist for one user.
// Conflicts are enforced at write time, not read time.
type HighlightConflictError struct {
	Pattern  string
	GuildIDs []string
}

func (e *HighlightConflictError) Error() string {
	scope := "guilds " + strings.Join(e.GuildIDs, ", ")
	if len(e.GuildIDs) == 1 && e.GuildIDs[0] == HighlightScopeGlobal {
		scope = "the global scope"
	}
	return fmt.Sprintf(
		"highlight pattern %q already registered in %s",
		e.Pattern,
		scope,
	)
}

// isResolveNotFound reports whether err is one of the reference-resolution
// failures that trigger stale-row self-healing.
func isResolveNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrChannelNotFound) ||
		errors.Is(err, ErrGuildNotFound)
}
