package channels

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/samber/oops"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
	"riseup-backend/internal/store"
)

const telegramButtonsRow = 2

// Telegram answers private and group messages over long polling. Options are
// rendered as an inline keyboard whose callback data is the action key.
type Telegram struct {
	bot         *telego.Bot
	resolver    *chatbot.Resolver
	transcripts store.Transcript
	siteBaseURL string
}

func NewTelegram(cfg config.Telegram, siteBaseURL string, resolver *chatbot.Resolver, transcripts store.Transcript) (*Telegram, error) {
	bot, err := telego.NewBot(cfg.Token, telego.WithDefaultLogger(false, false))
	if err != nil {
		return nil, oops.In("telegram").Wrapf(err, "failed to create bot")
	}
	return &Telegram{
		bot:         bot,
		resolver:    resolver,
		transcripts: transcripts,
		siteBaseURL: siteBaseURL,
	}, nil
}

// Run polls for updates until ctx is done.
func (t *Telegram) Run(ctx context.Context) error {
	updates, err := t.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return oops.In("telegram").Wrapf(err, "failed to start updates polling")
	}

	if me, err := t.bot.GetMe(ctx); err == nil {
		slog.Info("telegram bot connected", "username", me.Username)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.Message != nil:
				t.handleMessage(ctx, update.Message)
			case update.CallbackQuery != nil:
				t.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (t *Telegram) handleMessage(ctx context.Context, msg *telego.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	var resp chatbot.Response
	if isStartCommand(text) {
		resp = t.resolver.ResolveAction(chatbot.Greeting.String())
	} else {
		resp = t.resolver.ResolveFreeText(text)
	}
	record(ctx, t.transcripts, telegramSession(msg.Chat.ID), text, resp)
	t.send(ctx, msg.Chat.ID, resp, "")
}

func (t *Telegram) handleCallback(ctx context.Context, q *telego.CallbackQuery) {
	if err := t.bot.AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID)); err != nil {
		slog.Warn("failed to answer telegram callback", "error", err)
	}
	if q.Message == nil {
		return
	}
	chatID := q.Message.GetChat().ID

	key := q.Data
	resp := t.resolver.ResolveAction(key)
	record(ctx, t.transcripts, telegramSession(chatID), key, resp)
	t.send(ctx, chatID, resp, routeOf(t.resolver, resp, key))
}

func (t *Telegram) send(ctx context.Context, chatID int64, resp chatbot.Response, route string) {
	params := tu.Message(tu.ID(chatID), resp.Text)
	if markup := telegramKeyboard(resp, route, t.siteBaseURL); markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		slog.Error("failed to send telegram message", "chat_id", chatID, "error", err)
	}
}

// telegramKeyboard returns nil when the response has nothing to press.
func telegramKeyboard(resp chatbot.Response, route, siteBaseURL string) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for _, opts := range chunk(resp.Options, telegramButtonsRow) {
		row := make([]telego.InlineKeyboardButton, 0, len(opts))
		for _, o := range opts {
			row = append(row, tu.InlineKeyboardButton(o.Label).WithCallbackData(o.Action.String()))
		}
		rows = append(rows, tu.InlineKeyboardRow(row...))
	}
	if link := linkFor(siteBaseURL, route); link != "" {
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton("Open page").WithURL(link)))
	}
	if len(rows) == 0 {
		return nil
	}
	return tu.InlineKeyboard(rows...)
}

// isStartCommand matches /start and /start@botname.
func isStartCommand(text string) bool {
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd == "/start"
}

func telegramSession(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}
