package telegram

import (
	"context"
	"fmt"

	"github.com/sandevgo/termbridge/internal/bridge"
	"github.com/sandevgo/termbridge/internal/config"
	"github.com/sandevgo/termbridge/internal/core"
	"github.com/sandevgo/termbridge/pkg/log"
	"github.com/sandevgo/termbridge/pkg/retry"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

// btnCmd is the inline keyboard button family; its data carries the
// terminal command to run.
var btnCmd = tele.Btn{Unique: "cmd"}

// Bot forwards the owner's messages into the shared default terminal
// session. Telegram is a stateless transport: every chat message runs
// against the same child process, which is never released.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.TelegramConfig
	sessions *bridge.Registry
	sender   *sender
	ownerID  int64
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	sessions *bridge.Registry,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	}

	// Telegram's API flaps; creating the bot probes it, so retry with
	// backoff instead of failing startup on a blip.
	var b *tele.Bot
	err := retry.NewDefaultRetrier().Do(ctx, func() error {
		var err error
		b, err = tele.NewBot(pref)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		cfg:      cfg,
		sessions: sessions,
		sender:   newSender(b),
		ownerID:  cfg.OwnerID,
	}

	// Hand the process context (with its logger) to every handler.
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: Only allow the owner
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != bot.ownerID {
				return nil // Ignore unauthorized users
			}
			return next(c)
		}
	})

	b.Handle("/start", bot.handleStart)
	b.Handle(tele.OnText, bot.handleMessage)
	b.Handle(&btnCmd, bot.handleCallback)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("status", btnCmd.Unique, "/status"),
		menu.Data("time", btnCmd.Unique, "/time"),
		menu.Data("help", btnCmd.Unique, "/help"),
	))

	welcome := fmt.Sprintf("**%s %s**\n\nSend any line and it runs in the terminal. Try `/help`.", core.Name, core.Version)
	ctx := c.Get(baseContextKey).(context.Context)
	return b.sender.sendMarkdown(ctx, c.Chat(), welcome, menu)
}

func (b *Bot) handleMessage(c tele.Context) error {
	return b.runCommand(c, c.Text())
}

func (b *Bot) handleCallback(c tele.Context) error {
	_ = c.Respond()
	return b.runCommand(c, c.Data())
}

func (b *Bot) runCommand(c tele.Context, line string) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)

	_ = c.Notify(tele.Typing)

	sup, err := b.sessions.GetOrCreate(ctx, core.DefaultSession)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start terminal session")
		return c.Send("terminal unavailable")
	}

	output, err := sup.Run(ctx, line)
	if err != nil {
		logger.Error().Err(err).Msg("terminal run failed")
		return c.Send(fmt.Sprintf("error: %v", err))
	}
	if output == "" {
		output = "(no output)"
	}

	return b.sender.sendMarkdown(ctx, c.Chat(), "```\n"+output+"\n```")
}
