package quotebot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// QuoteType selects the footer and caption variant of a rendered quote.
// It is a closed set: rendering an unknown value is an error, not a
// silent fallback.
type QuoteType int

const (
	// QuoteTypeQuote is an explicit quote command
	QuoteTypeQuote QuoteType = iota

	// QuoteTypeLink is an automatic quote of a bare message link
	QuoteTypeLink

	// QuoteTypePersonal is a user-owned saved quote
	QuoteTypePersonal

	// QuoteTypeServer is a guild-owned saved quote
	QuoteTypeServer

	// QuoteTypeSnipe is a snipe of a deleted or edited message
	QuoteTypeSnipe

	// QuoteTypeHighlight is a DM notification for a matched highlight
	QuoteTypeHighlight
)

func (t QuoteType) String() string {
	switch t {
	case QuoteTypeQuote:
		return "quote"
	case QuoteTypeLink:
		return "link"
	case QuoteTypePersonal:
		return "personal"
	case QuoteTypeServer:
		return "server"
	case QuoteTypeSnipe:
		return "snipe"
	case QuoteTypeHighlight:
		return "highlight"
	default:
		return fmt.Sprintf("QuoteType(%d)", int(t))
	}
}

const (
	embedDescriptionLimit = 4096
	embedFieldValueLimit  = 1024
)

// QuoteContext carries everything about the source and destination
// channels the renderer needs, so rendering itself never touches the
// network.
type QuoteContext struct {
	// SourceChannelName is the name of the channel the quoted message
	// was posted in, without the leading #
	SourceChannelName string

	SourceGuildID   string
	SourceGuildName string

	// SourceIsDM is true when the quoted message comes from a DM
	SourceIsDM bool

	// SourceNSFW is true when the source channel is marked NSFW
	SourceNSFW bool

	// DestNSFW is true when the destination channel is marked NSFW.
	// Attachments from an NSFW source are hidden unless this is set.
	DestNSFW bool

	// DestIsDM is true when the quote is delivered over DM. DMs count as
	// non-NSFW destinations.
	DestIsDM bool

	// DestGuildID is the guild the quote is delivered to, empty for DMs.
	// Quotes crossing a guild boundary get mention-sanitized content.
	DestGuildID string

	// Requester is the user the quote is rendered for
	Requester *discordgo.User

	// AuthorColor is the quoted author's role color in the source
	// channel, 0 for none
	AuthorColor int
}

// RenderedQuote is a quote ready to send: the embed plus an optional
// plain-text caption. The caption is only set for raw-embed passthrough,
// where the source embed is reposted as-is and the attribution has to
// travel in the message content instead of a footer.
type RenderedQuote struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

// RenderQuote builds the sendable form of a quoted message. Normally the
// result is a fresh embed carrying the quoted author, the content, a jump
// link, the original timestamp, and a footer that depends on the quote
// type. Messages with no text but embeds of their own (link previews,
// re-quoted quotes) are passed through unchanged behind a caption.
// Attachment handling follows the NSFW rule: attachments from an NSFW
// source channel are only shown when the destination is also NSFW.
func RenderQuote(
	msg *discordgo.Message,
	quoteType QuoteType,
	qc QuoteContext,
) (*RenderedQuote, error) {
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	if msg.Content == "" && len(msg.Embeds) > 0 {
		caption, err := rawEmbedCaption(msg, quoteType, qc)
		if err != nil {
			return nil, err
		}
		return &RenderedQuote{Content: caption, Embed: msg.Embeds[0]}, nil
	}

	footer, err := quoteFooter(quoteType, qc)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Description: truncate(quoteDescription(msg, qc), embedDescriptionLimit),
		Color:       qc.AuthorColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
	}

	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}

	if msg.Author != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    displayName(msg.Author),
			IconURL: msg.Author.AvatarURL("64"),
			URL:     jumpURL(msg.GuildID, msg.ChannelID, msg.ID),
		}
	}

	applyAttachments(embed, msg, qc)

	return &RenderedQuote{Embed: embed}, nil
}

// quoteDescription picks the text shown for the quoted message. Quotes
// that stay inside the source guild keep the raw content; anything
// crossing a guild boundary gets mentions replaced with plain names so
// IDs from another server don't render as dead mentions.
func quoteDescription(msg *discordgo.Message, qc QuoteContext) string {
	if !qc.SourceIsDM && qc.SourceGuildID == qc.DestGuildID {
		return msg.Content
	}
	return msg.ContentWithMentionsReplaced()
}

// rawEmbedCaption builds the attribution line posted above a
// passed-through embed.
func rawEmbedCaption(
	msg *discordgo.Message,
	quoteType QuoteType,
	qc QuoteContext,
) (string, error) {
	requester := ""
	if qc.Requester != nil {
		requester = displayName(qc.Requester)
	}
	author := displayName(msg.Author)
	origin := "<#" + msg.ChannelID + ">"
	if qc.SourceIsDM {
		origin = "direct messages"
	}

	switch quoteType {
	case QuoteTypeQuote:
		return fmt.Sprintf(
			"%s quoted a message from %s in %s:", requester, author, origin,
		), nil
	case QuoteTypeLink:
		return fmt.Sprintf(
			"%s linked a message from %s in %s:", requester, author, origin,
		), nil
	case QuoteTypePersonal:
		return fmt.Sprintf(
			"Personal quote of %s, originally from %s in %s:",
			requester,
			author,
			origin,
		), nil
	case QuoteTypeServer:
		return fmt.Sprintf(
			"Server quote, originally from %s in %s:", author, origin,
		), nil
	case QuoteTypeSnipe:
		return fmt.Sprintf(
			"%s sniped a message from %s in %s:", requester, author, origin,
		), nil
	case QuoteTypeHighlight:
		return fmt.Sprintf(
			"Highlighted from %s in %s:", author, origin,
		), nil
	default:
		return "", fmt.Errorf("unknown quote type %d", int(quoteType))
	}
}

// quoteFooter builds the footer line for the given quote type.
func quoteFooter(quoteType QuoteType, qc QuoteContext) (string, error) {
	requester := ""
	if qc.Requester != nil {
		requester = displayName(qc.Requester)
	}

	source := sourceLabel(qc)

	switch quoteType {
	case QuoteTypeQuote:
		return fmt.Sprintf("%s | Quoted by %s", source, requester), nil
	case QuoteTypeLink:
		return fmt.Sprintf("%s | Linked by %s", source, requester), nil
	case QuoteTypePersonal:
		return fmt.Sprintf("Personal quote of %s", requester), nil
	case QuoteTypeServer:
		return fmt.Sprintf("%s | Server quote", source), nil
	case QuoteTypeSnipe:
		return fmt.Sprintf("%s | Sniped by %s", source, requester), nil
	case QuoteTypeHighlight:
		return fmt.Sprintf("Highlighted message from %s", source), nil
	default:
		return "", fmt.Errorf("unknown quote type %d", int(quoteType))
	}
}

// sourceLabel names where the quoted message came from.
func sourceLabel(qc QuoteContext) string {
	if qc.SourceIsDM {
		return "Direct messages"
	}
	channel := "#" + qc.SourceChannelName
	if qc.SourceGuildName != "" {
		return fmt.Sprintf("%s, %s", channel, qc.SourceGuildName)
	}
	return channel
}

// applyAttachments attaches the quoted message's files to the embed. A
// lone image attachment becomes the embed image; anything else is linked
// in a field. When the source channel is NSFW and the destination is
// not, everything is replaced with a notice.
func applyAttachments(
	embed *discordgo.MessageEmbed,
	msg *discordgo.Message,
	qc QuoteContext,
) {
	if len(msg.Attachments) == 0 {
		return
	}

	if qc.SourceNSFW && !qc.DestNSFW {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  msgAttachmentsFieldName,
			Value: msgAttachmentsNSFWHidden,
		})
		return
	}

	if len(msg.Attachments) == 1 && isImageAttachment(msg.Attachments[0]) {
		embed.Image = &discordgo.MessageEmbedImage{
			URL: msg.Attachments[0].URL,
		}
		return
	}

	links := make([]string, 0, len(msg.Attachments))
	for _, attachment := range msg.Attachments {
		links = append(
			links,
			fmt.Sprintf("[%s](%s)", attachment.Filename, attachment.URL),
		)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  msgAttachmentsFieldName,
		Value: truncate(strings.Join(links, "\n"), embedFieldValueLimit),
	})
}

var imageExtensions = []string{
	".jpg", ".jpeg", ".jfif", ".png", ".gif", ".gifv",
	".webp", ".bmp", ".svg", ".tiff",
}

func isImageAttachment(a *discordgo.MessageAttachment) bool {
	if a == nil {
		return false
	}
	lowered := strings.ToLower(a.URL)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lowered, ext) {
			return true
		}
	}
	return false
}

// displayName returns a user's global display name, falling back to the
// username.
func displayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
