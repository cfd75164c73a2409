package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"deadlineTracker/internal/command"
	"deadlineTracker/internal/export"
	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	cbConfirmPrefix = "confirm:"
	cbCancel        = "cancel"
)

const helpText = `Send a filter to see your deadlines:
<b>latest</b>, <b>quiz</b>, <b>assignment</b> or <b>done</b>.
Send <b>delete &lt;task&gt;</b> to remove a pending task.`

// API - часть tgbotapi.BotAPI, которой пользуется бот
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api      API
	interp   *command.Interpreter
	sessions *command.SessionStore
	today    func() deadline.Date
}

func New(token string, debug bool, interp *command.Interpreter, sessions *command.SessionStore, today func() deadline.Date) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("создание bot api: %w", err)
	}
	api.Debug = debug

	logger.Info("Bot: Авторизован", zap.String("account", api.Self.UserName))
	return NewWithAPI(api, interp, sessions, today), nil
}

func NewWithAPI(api API, interp *command.Interpreter, sessions *command.SessionStore, today func() deadline.Date) *Bot {
	return &Bot{
		api:      api,
		interp:   interp,
		sessions: sessions,
		today:    today,
	}
}

// Start читает обновления до отмены контекста
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.Info("Bot: Приём обновлений запущен")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if err := b.handleUpdate(ctx, update); err != nil {
			logger.Error("Bot: Ошибка обработки обновления", err, zap.Int("update_id", update.UpdateID))
		}
	}

	logger.Info("Bot: Приём обновлений остановлен")
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		return b.handleMessage(ctx, update.Message)
	}
	return nil
}

func sessionKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	session := b.sessions.Get(sessionKey(chatID))

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			reply, err := b.interp.View(ctx, session)
			if err != nil {
				return b.fail(chatID, err)
			}
			return b.sendReply(chatID, helpText, reply)
		case "cancel":
			reply, err := b.interp.Cancel(ctx, session)
			if err != nil {
				return b.fail(chatID, err)
			}
			return b.sendReply(chatID, "", reply)
		default:
			return b.sendText(chatID, helpText)
		}
	}

	logger.Info("Bot: Сообщение", zap.Int64("chat_id", chatID), zap.String("text", msg.Text))
	reply, err := b.interp.Handle(ctx, session, msg.Text)
	if err != nil {
		return b.fail(chatID, err)
	}
	return b.sendReply(chatID, "", reply)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logger.Warn("Bot: Не удалось подтвердить callback", zap.Error(err))
	}

	chatID := cb.Message.Chat.ID
	session := b.sessions.Get(sessionKey(chatID))

	var (
		reply command.Reply
		err   error
	)
	switch {
	case strings.HasPrefix(cb.Data, cbConfirmPrefix):
		id, perr := strconv.ParseInt(strings.TrimPrefix(cb.Data, cbConfirmPrefix), 10, 64)
		if perr != nil {
			logger.Warn("Bot: Неверные данные callback", zap.String("data", cb.Data))
			return nil
		}
		logger.Info("Bot: Подтверждение удаления", zap.Int64("chat_id", chatID), zap.Int64("id", id))
		reply, err = b.interp.Confirm(ctx, session, id)
	case cb.Data == cbCancel:
		reply, err = b.interp.Cancel(ctx, session)
	default:
		return nil
	}

	if err != nil {
		return b.fail(chatID, err)
	}
	return b.sendReply(chatID, "", reply)
}

// fail отправляет сообщение об ошибке; ошибки команды не фатальны
func (b *Bot) fail(chatID int64, err error) error {
	var cmdErr *command.CommandError
	if errors.As(err, &cmdErr) {
		return b.sendText(chatID, html.EscapeString(cmdErr.Message))
	}
	if sendErr := b.sendText(chatID, "Something went wrong, please try again later."); sendErr != nil {
		logger.Warn("Bot: Не удалось отправить сообщение", zap.Error(sendErr))
	}
	return err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendReply(chatID int64, header string, reply command.Reply) error {
	msg := tgbotapi.NewMessage(chatID, render(header, reply, b.today()))
	msg.ParseMode = tgbotapi.ModeHTML
	if reply.Mode == command.ModeConfirmingDelete {
		msg.ReplyMarkup = confirmKeyboard(reply.Candidates)
	}
	_, err := b.api.Send(msg)
	return err
}

func render(header string, reply command.Reply, today deadline.Date) string {
	var sb strings.Builder
	if header != "" {
		sb.WriteString(header)
		sb.WriteString("\n\n")
	}
	if reply.Notice != "" {
		sb.WriteString("<i>")
		sb.WriteString(html.EscapeString(reply.Notice))
		sb.WriteString("</i>\n")
	}

	rows := reply.Deadlines
	if reply.Mode == command.ModeConfirmingDelete {
		rows = reply.Candidates
	} else if len(rows) == 0 {
		sb.WriteString("Nothing here.")
		return strings.TrimSpace(sb.String())
	}

	for _, d := range rows {
		sb.WriteString(formatDeadline(d, today))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func formatDeadline(d *deadline.Deadline, today deadline.Date) string {
	icon := "⏳"
	switch {
	case d.Status == deadline.StatusDone:
		icon = "✅"
	case d.DueDate.Before(today):
		icon = "⚠️"
	}

	line := fmt.Sprintf("%s #%d <b>%s</b>", icon, d.ID, html.EscapeString(d.TaskName))
	if c := d.Course(); c != "" {
		line += " · " + html.EscapeString(c)
	}
	return fmt.Sprintf("%s\n    %s (%s)", line, d.DueDate, export.DueIn(d.DueDate, today))
}

func confirmKeyboard(candidates []*deadline.Deadline) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(candidates)+1)
	for _, c := range candidates {
		label := fmt.Sprintf("🗑 #%d · %s", c.ID, shortTitle(c.TaskName, 24))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbConfirmPrefix, c.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func shortTitle(title string, maxLen int) string {
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	return string(runes[:maxLen-1]) + "…"
}
