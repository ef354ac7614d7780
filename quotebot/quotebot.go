package quotebot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var defaultLogWriter io.Writer = os.Stdout

// Set at build time via:
// -ldflags "-X github.com/Quote-Bot/QuoteBot/quotebot.Version=$$(date +'%Y%m%d')"
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// QuoteBot is the top-level component. It owns the database, the
// gateway connection, the snipe cache, the message locator, the
// highlight matcher and the command table, and supervises their
// lifecycles.
type QuoteBot struct {
	config *Config

	db      *gorm.DB
	writeDB DBI

	logger     *slog.Logger
	logHandler slog.Handler

	discord    *Discord
	snipes     *SnipeCache
	locator    *MessageLocator
	highlights *HighlightMatcher
	dispatcher *eventDispatcher
	botlog     *Botlog
	api        *API

	commands map[string]*botCommand

	// signalStop enables an explicit stop signal to be sent to the bot,
	// aside from context cancellation
	signalStop  chan struct{}
	signalReady chan struct{}

	// runMu prevents concurrent Run calls
	runMu sync.Mutex

	runCtx    context.Context
	startedAt time.Time

	metricCommandsHandled atomic.Int64
	metricQuotesSent      atomic.Int64
}

// New assembles a QuoteBot from the given config. The database and
// gateway connections are opened later, in Run.
func New(config *Config) (*QuoteBot, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	q := &QuoteBot{
		config:      config,
		signalReady: make(chan struct{}, 1),
	}

	q.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     q.config.LogLevel,
			AddSource: true,
		},
	)
	q.logger = slog.New(q.logHandler)
	slog.SetDefault(q.logger)

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     q.config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	disc, err := newDiscord(q.config.Discord)
	if err != nil {
		errs = append(errs, err)
	} else {
		disc.logger = slog.New(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     q.config.Discord.LogLevel,
					AddSource: true,
				},
			),
		).With(loggerNameKey, "discord")
		disc.bot = q
		q.discord = disc
	}

	q.snipes = NewSnipeCache()
	q.dispatcher = newEventDispatcher(q.logger)
	q.botlog = newBotlog(q.config.BotlogWebhookURL, q.logger)
	q.commands = buildCommandTable()

	api, err := newAPI(q, config.API)
	if err != nil {
		errs = append(errs, err)
	}
	q.api = api

	return q, errors.Join(errs...)
}

// ValidateConfig validates the bot's static configuration.
func (q *QuoteBot) ValidateConfig() error {
	return q.config.Validate()
}

// Run starts the bot and blocks until the context is canceled or a stop
// signal arrives, then shuts down gracefully.
func (q *QuoteBot) Run(ctx context.Context) error {
	// prevents concurrent runs
	q.runMu.Lock()
	defer q.runMu.Unlock()

	q.signalStop = make(chan struct{}, 1)
	q.startedAt = time.Now()
	logger := q.logger

	if err := q.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	ctx = WithLogger(ctx, logger)
	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", q.config))

	// the 'runtime' context: canceling it triggers a graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	q.runCtx = ctx

	go func() {
		select {
		case <-q.signalStop:
			logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			return
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, q.config.StartupTimeout)
	if err := q.initRun(startCtx, ctx); err != nil {
		startCancel()
		logger.ErrorContext(ctx, "init error", tint.Err(err))
		return err
	}
	startCancel()

	g, gctx := errgroup.WithContext(ctx)

	if q.api != nil && q.config.API.Enabled {
		g.Go(func() error {
			httpErr := q.api.Serve(gctx)
			if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
				logger.ErrorContext(gctx, "error serving api HTTP", tint.Err(httpErr))
				return httpErr
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := q.discord.session.Open(); err != nil {
			return fmt.Errorf("error opening discord connection: %w", err)
		}
		q.signalReady <- struct{}{}
		<-gctx.Done()
		return nil
	})

	err := g.Wait()

	shutdownErr := q.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(err, shutdownErr)
	}
	return shutdownErr
}

// initRun opens the database and the gateway session and wires the
// components that depend on them.
func (q *QuoteBot) initRun(startCtx context.Context, _ context.Context) error {
	if q.db == nil {
		db, err := CreateDB(
			startCtx,
			q.config.DatabaseType,
			q.config.Database,
			q.config.DatabaseSlowThreshold,
		)
		if err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}
		q.db = db
	}
	if q.writeDB == nil {
		q.writeDB = NewDatabase(
			q.db,
			slog.New(
				tint.NewHandler(defaultLogWriter, &tint.Options{
					Level:     q.config.DatabaseLogLevel,
					AddSource: true,
				}),
			),
			q.config.DatabaseType == dbTypePostgres,
		)
	}

	if q.discord.session == nil {
		session, err := q.discord.newSession()
		if err != nil {
			return err
		}
		q.discord.session = session
	}

	q.locator = NewMessageLocator(
		q.discord.session,
		q.writeDB,
		q.logger,
		q.config.GuildScanRate,
	)
	q.highlights = NewHighlightMatcher(q.discord.session, q.writeDB, q.logger)
	q.botlog.client = q.discord.session

	q.registerEventHandlers()
	return nil
}

// Stop signals the bot to shut down.
func (q *QuoteBot) Stop() {
	select {
	case q.signalStop <- struct{}{}:
	default:
	}
}

func (q *QuoteBot) shutdown() error {
	logger := q.logger
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		q.config.ShutdownTimeout,
	)
	defer cancel()

	var errs []error

	for _, removeHandler := range q.discord.discordgoRemoveHandlerFuncs {
		removeHandler()
	}
	if q.discord.session != nil {
		if err := q.discord.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing discord session: %w", err))
		}
	}

	if q.api != nil {
		if err := q.api.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down api: %w", err))
		}
	}

	if q.db != nil {
		if sqlDB, err := q.db.DB(); err == nil {
			if closeErr := sqlDB.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("error closing database: %w", closeErr))
			}
		}
	}

	logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// eventContext returns the context gateway event handlers run under.
func (q *QuoteBot) eventContext() context.Context {
	if q.runCtx != nil {
		return q.runCtx
	}
	return WithLogger(context.Background(), q.logger)
}

// buildQuoteContext gathers the channel and guild facts the renderer
// needs for one quoted message.
func buildQuoteContext(
	client PlatformClient,
	msg *discordgo.Message,
	requester *discordgo.User,
) (QuoteContext, error) {
	qc := QuoteContext{Requester: requester}

	channel, err := client.Channel(msg.ChannelID)
	if err != nil {
		return qc, err
	}
	qc.SourceChannelName = channel.Name
	qc.SourceNSFW = channel.NSFW
	qc.SourceIsDM = channel.Type == discordgo.ChannelTypeDM ||
		channel.Type == discordgo.ChannelTypeGroupDM

	if msg.GuildID != "" {
		qc.SourceGuildID = msg.GuildID
		if guild, guildErr := client.Guild(msg.GuildID); guildErr == nil {
			qc.SourceGuildName = guild.Name
		}
		if msg.Author != nil {
			qc.AuthorColor = client.UserColor(msg.Author.ID, msg.ChannelID)
		}
	}
	return qc, nil
}

// sendQuote renders a message as the given quote type and posts the
// embed to the destination channel. The bot must hold Embed Links there;
// without it a plain-text pointer is sent instead.
func (q *QuoteBot) sendQuote(
	ctx context.Context,
	destChannelID string,
	msg *discordgo.Message,
	quoteType QuoteType,
	requester *discordgo.User,
) error {
	client := q.discord.session

	qc, err := buildQuoteContext(client, msg, requester)
	if err != nil {
		return err
	}

	dest, err := client.Channel(destChannelID)
	if err != nil {
		return err
	}
	qc.DestNSFW = dest.NSFW
	qc.DestIsDM = dest.Type == discordgo.ChannelTypeDM ||
		dest.Type == discordgo.ChannelTypeGroupDM
	qc.DestGuildID = dest.GuildID

	if !qc.DestIsDM {
		bot := client.BotUser()
		if bot != nil {
			perms, permErr := client.Permissions(bot.ID, destChannelID)
			if permErr != nil {
				return permErr
			}
			if perms&discordgo.PermissionEmbedLinks == 0 {
				_, sendErr := client.SendMessage(
					destChannelID,
					errorResponse(msgNoEmbedPerms),
				)
				return sendErr
			}
		}
	}

	rendered, err := RenderQuote(msg, quoteType, qc)
	if err != nil {
		return err
	}

	_, err = client.SendComplex(destChannelID, &discordgo.MessageSend{
		Content: rendered.Content,
		Embeds:  []*discordgo.MessageEmbed{rendered.Embed},
	})
	if err != nil {
		q.logger.ErrorContext(
			ctx,
			"error sending quote",
			append(messageLogAttrs(msg), tint.Err(err))...,
		)
		return err
	}
	q.metricQuotesSent.Add(1)
	return nil
}

// notifyBotlog posts an announcement to the configured botlog webhook,
// if any. Failures are logged and swallowed.
func (q *QuoteBot) notifyBotlog(ctx context.Context, message string) {
	if q.botlog == nil {
		return
	}
	q.botlog.Send(ctx, message)
}
