// Package bot is the Telegram adapter: it turns messages and button
// presses into core calls and renders the structured results back.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"avia-price-bot/model"
	"avia-price-bot/route"
	"avia-price-bot/store"
	"avia-price-bot/tracker"

	"gopkg.in/telebot.v3"
)

// User states for the route-entry conversation.
const (
	StateNone = iota
	StateWaitRoute
)

type Bot struct {
	B       *telebot.Bot
	Store   *store.Store
	Tracker *tracker.Tracker

	// State management
	states    map[int64]int
	stateLock sync.RWMutex
}

// Keyboards
var (
	// Main menu
	menuBtnAddRoute = telebot.Btn{Text: "✈️ Добавить маршрут"}
	menuBtnList     = telebot.Btn{Text: "📋 Мои маршруты"}
	menuBtnCheck    = telebot.Btn{Text: "💰 Проверить цены"}
	menuBtnStats    = telebot.Btn{Text: "📊 Статистика"}
	menuBtnHelp     = telebot.Btn{Text: "❓ Помощь"}
	menuBtnDelete   = telebot.Btn{Text: "❌ Удалить маршрут"}
	menuKeyboard    = &telebot.ReplyMarkup{ResizeKeyboard: true}

	// Cancel keyboard for the route-entry conversation
	btnCancel      = telebot.Btn{Text: "❌ Отмена"}
	cancelKeyboard = &telebot.ReplyMarkup{ResizeKeyboard: true}
)

func NewBot(token string, st *store.Store, tr *tracker.Tracker) (*Bot, error) {
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		B:       b,
		Store:   st,
		Tracker: tr,
		states:  make(map[int64]int),
	}

	// Init keyboards
	menuKeyboard.Reply(
		menuKeyboard.Row(menuBtnAddRoute),
		menuKeyboard.Row(menuBtnList, menuBtnCheck),
		menuKeyboard.Row(menuBtnStats, menuBtnHelp, menuBtnDelete),
	)
	cancelKeyboard.Reply(cancelKeyboard.Row(btnCancel))

	bot.registerHandlers()
	return bot, nil
}

func (bot *Bot) Start() {
	bot.B.Start()
}

func (bot *Bot) Stop() {
	bot.B.Stop()
}

func (bot *Bot) registerHandlers() {
	// Commands
	bot.B.Handle("/start", bot.handleStart)
	bot.B.Handle("/help", bot.handleHelp)
	bot.B.Handle("/track", bot.handleTrackCommand)
	bot.B.Handle("/list", bot.handleList)
	bot.B.Handle("/check", bot.handleCheck)
	bot.B.Handle("/stop", bot.handleStopCommand)
	bot.B.Handle("/stats", bot.handleStats)

	// Menu buttons
	bot.B.Handle(&menuBtnAddRoute, bot.handleAddRouteBtn)
	bot.B.Handle(&menuBtnList, bot.handleList)
	bot.B.Handle(&menuBtnCheck, bot.handleCheck)
	bot.B.Handle(&menuBtnStats, bot.handleStats)
	bot.B.Handle(&menuBtnHelp, bot.handleHelp)
	bot.B.Handle(&menuBtnDelete, bot.handleDeleteBtn)
	bot.B.Handle(&btnCancel, bot.handleCancel)

	// Generic text handler for the route-entry conversation
	bot.B.Handle(telebot.OnText, bot.handleText)
}

// Helpers to manage conversation state

func (bot *Bot) setState(userID int64, state int) {
	bot.stateLock.Lock()
	defer bot.stateLock.Unlock()
	bot.states[userID] = state
}

func (bot *Bot) getState(userID int64) int {
	bot.stateLock.RLock()
	defer bot.stateLock.RUnlock()
	return bot.states[userID]
}

// --- Handlers ---

func (bot *Bot) handleStart(c telebot.Context) error {
	sender := c.Sender()
	user := model.User{
		ID:        sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	}
	if err := bot.Store.UpsertUser(context.Background(), &user); err != nil {
		slog.Error("upsert user failed", "user", sender.ID, "err", err)
	}
	bot.setState(sender.ID, StateNone)

	return c.Send(fmt.Sprintf(
		"Привет, %s! 👋\nЯ бот для отслеживания цен на билеты.\n\nИспользуйте кнопки ниже:",
		sender.FirstName), menuKeyboard)
}

func (bot *Bot) handleHelp(c telebot.Context) error {
	bot.setState(c.Sender().ID, StateNone)
	return c.Send(
		"🎫 <b>Бот для отслеживания цен на билеты</b>\n\n"+
			"✅ <b>Как пользоваться:</b>\n"+
			"1. Нажмите <b>✈️ Добавить маршрут</b>\n"+
			"2. Введите маршрут: <i>Город-Город</i>\n"+
			"3. Нажмите <b>💰 Проверить цены</b>\n\n"+
			"⏰ <b>Автопроверка:</b>\n"+
			"Бот проверяет цены каждый день в 10:00\n"+
			"При падении цены - уведомление!\n\n"+
			"❌ <b>Удалить маршрут:</b> <code>/stop номер</code>",
		menuKeyboard, telebot.ModeHTML)
}

// /track Москва-Сочи
func (bot *Bot) handleTrackCommand(c telebot.Context) error {
	args := strings.TrimSpace(c.Message().Payload)
	if args == "" {
		return c.Send(
			"Укажите маршрут. Пример:\n"+
				"<code>/track Москва-Сочи</code>\n"+
				"<code>/track Санкт-Петербург-Казань</code>",
			menuKeyboard, telebot.ModeHTML)
	}
	return bot.registerRoute(c, args)
}

func (bot *Bot) handleAddRouteBtn(c telebot.Context) error {
	bot.setState(c.Sender().ID, StateWaitRoute)
	return c.Send(
		"✈️ <b>Введите маршрут:</b>\n\n"+
			"Формат: <i>Город-Город</i>\n\n"+
			"Примеры:\n"+
			"• Москва-Сочи\n"+
			"• Санкт-Петербург-Казань\n\n"+
			"Или нажмите ❌ Отмена",
		cancelKeyboard, telebot.ModeHTML)
}

// registerRoute validates the route text and adds it to the store.
func (bot *Bot) registerRoute(c telebot.Context, routeText string) error {
	userID := c.Sender().ID
	bot.setState(userID, StateNone)

	origin, destination, err := route.Parse(routeText)
	if err != nil {
		return c.Send(
			"❌ Неверный формат маршрута!\n\n"+
				"Правильный формат: <i>Город-Город</i>\n"+
				"Пример: <code>Москва-Сочи</code>",
			menuKeyboard, telebot.ModeHTML)
	}

	track, created, err := bot.Store.RegisterTrack(context.Background(), userID, routeText, origin, destination)
	if err != nil {
		slog.Error("register track failed", "user", userID, "err", err)
		return c.Send("❌ Что-то пошло не так...\nПопробуйте еще раз или нажмите /start", menuKeyboard)
	}

	if !created {
		return c.Send(fmt.Sprintf(
			"⚠️ <b>Маршрут уже отслеживается!</b>\n\n"+
				"📍 <code>%s</code>\n"+
				"🆔 ID: %d\n\n"+
				"Вы можете проверить цены через кнопку 💰 Проверить цены",
			track.Route, track.ID), menuKeyboard, telebot.ModeHTML)
	}

	return c.Send(fmt.Sprintf(
		"✅ <b>Маршрут добавлен!</b>\n\n"+
			"📍 %s\n"+
			"🆔 ID: %d\n\n"+
			"Теперь я буду следить за ценами на этот маршрут!",
		track.Route, track.ID), menuKeyboard, telebot.ModeHTML)
}

func (bot *Bot) handleList(c telebot.Context) error {
	userID := c.Sender().ID
	bot.setState(userID, StateNone)

	tracks, err := bot.Store.ListActiveTracks(context.Background(), userID)
	if err != nil {
		slog.Error("list tracks failed", "user", userID, "err", err)
		return c.Send("❌ Что-то пошло не так...", menuKeyboard)
	}

	if len(tracks) == 0 {
		return c.Send(
			"📭 У вас пока нет отслеживаемых маршрутов.\n"+
				"Добавьте первый через кнопку ✈️ Добавить маршрут",
			menuKeyboard)
	}

	var b strings.Builder
	b.WriteString("📋 <b>Ваши маршруты:</b>\n\n")
	for i, t := range tracks {
		price := "💰 цена неизвестна"
		if t.MinPrice != nil {
			price = fmt.Sprintf("💰 от %.2f руб", *t.MinPrice)
		}
		check := "не проверялся"
		if t.LastCheck != nil {
			check = t.LastCheck.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "%d. <b>%s</b>\n   🆔 ID: %d | 📅 Добавлен: %s\n   %s | 🔍 Проверка: %s\n\n",
			i+1, t.Route, t.ID, t.CreatedAt.Format("2006-01-02"), price, check)
	}
	fmt.Fprintf(&b, "Всего маршрутов: %d\n", len(tracks))
	b.WriteString("❌ Удалить: нажмите кнопку ❌ Удалить маршрут")

	return c.Send(b.String(), menuKeyboard, telebot.ModeHTML)
}

func (bot *Bot) handleCheck(c telebot.Context) error {
	userID := c.Sender().ID
	bot.setState(userID, StateNone)

	tracks, err := bot.Store.ListActiveTracks(context.Background(), userID)
	if err != nil {
		slog.Error("list tracks failed", "user", userID, "err", err)
		return c.Send("❌ Что-то пошло не так...", menuKeyboard)
	}
	if len(tracks) == 0 {
		return c.Send(
			"📭 У вас нет маршрутов для проверки.\n"+
				"Добавьте маршрут через кнопку ✈️ Добавить маршрут",
			menuKeyboard)
	}

	msg, _ := bot.B.Send(c.Recipient(), "🔍 Начинаю проверку цен...", menuKeyboard)

	report, err := bot.Tracker.CheckUser(context.Background(), userID)
	if err != nil {
		slog.Error("interactive check failed", "user", userID, "err", err)
		return c.Send("❌ Что-то пошло не так при проверке цен.", menuKeyboard)
	}

	var lines []string
	for _, item := range report.Items {
		if !item.Resolved {
			lines = append(lines, fmt.Sprintf("• %s: не удалось распознать маршрут", item.Route))
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s: %.2f руб", item.Route, item.Price))
	}

	var response string
	if len(lines) > 0 {
		response = "✅ <b>Цены обновлены:</b>\n\n" + strings.Join(lines, "\n")
	} else {
		response = "😔 Не удалось получить цены"
	}
	response += fmt.Sprintf("\n\nПроверено маршрутов: %d", len(report.Items))

	if msg != nil {
		_, err = bot.B.Edit(msg, response, telebot.ModeHTML)
		return err
	}
	return c.Send(response, menuKeyboard, telebot.ModeHTML)
}

// /stop 1
func (bot *Bot) handleStopCommand(c telebot.Context) error {
	userID := c.Sender().ID
	bot.setState(userID, StateNone)

	arg := strings.TrimSpace(c.Message().Payload)
	trackID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return c.Send(
			"Укажите ID маршрута:\n"+
				"<code>/stop 1</code>\n\n"+
				"ID можно узнать через кнопку 📋 Мои маршруты",
			menuKeyboard, telebot.ModeHTML)
	}

	ok, err := bot.Store.Deactivate(context.Background(), trackID, userID)
	if err != nil {
		slog.Error("deactivate failed", "user", userID, "track", trackID, "err", err)
		return c.Send("❌ Что-то пошло не так...", menuKeyboard)
	}

	if ok {
		return c.Send(fmt.Sprintf("✅ Маршрут #%d удалён!", trackID), menuKeyboard)
	}
	return c.Send(fmt.Sprintf("❌ Не удалось найти маршрут #%d", trackID), menuKeyboard)
}

func (bot *Bot) handleDeleteBtn(c telebot.Context) error {
	userID := c.Sender().ID
	bot.setState(userID, StateNone)

	tracks, err := bot.Store.ListActiveTracks(context.Background(), userID)
	if err != nil {
		slog.Error("list tracks failed", "user", userID, "err", err)
		return c.Send("❌ Что-то пошло не так...", menuKeyboard)
	}
	if len(tracks) == 0 {
		return c.Send("📭 Нет маршрутов для удаления.", menuKeyboard)
	}

	var b strings.Builder
	b.WriteString("🗑️ <b>Выберите маршрут для удаления:</b>\n\n")
	for i, t := range tracks {
		fmt.Fprintf(&b, "%d. %s (ID: %d)\n", i+1, t.Route, t.ID)
	}
	b.WriteString("\n❌ Для удаления введите команду:\n<code>/stop номер</code>\n\nНапример: <code>/stop 1</code>")

	return c.Send(b.String(), menuKeyboard, telebot.ModeHTML)
}

func (bot *Bot) handleStats(c telebot.Context) error {
	userID := c.Sender().ID
	bot.setState(userID, StateNone)

	tracks, err := bot.Store.ListActiveTracks(context.Background(), userID)
	if err != nil {
		slog.Error("list tracks failed", "user", userID, "err", err)
		return c.Send("❌ Что-то пошло не так...", menuKeyboard)
	}

	username := c.Sender().Username
	if username == "" {
		username = "без username"
	}

	return c.Send(fmt.Sprintf(
		"📊 <b>Ваша статистика</b>\n\n"+
			"👤 Пользователь: @%s\n"+
			"🆔 ID: %d\n\n"+
			"🎫 Активных маршрутов: <b>%d</b>\n\n"+
			"⏰ <b>Автопроверка:</b>\n"+
			"Цены проверяются каждый день в 10:00\n"+
			"При падении цены получите уведомление!",
		username, userID, len(tracks)), menuKeyboard, telebot.ModeHTML)
}

func (bot *Bot) handleCancel(c telebot.Context) error {
	bot.setState(c.Sender().ID, StateNone)
	return c.Send("✅ Хорошо, действие отменено.", menuKeyboard)
}

// Global text handler: feeds the route-entry conversation.
func (bot *Bot) handleText(c telebot.Context) error {
	userID := c.Sender().ID

	switch bot.getState(userID) {
	case StateWaitRoute:
		return bot.registerRoute(c, strings.TrimSpace(c.Text()))
	}
	return nil
}

// NotifyPriceDrop implements tracker.Notifier. Stored price data is
// unaffected whether or not the send goes through.
func (bot *Bot) NotifyPriceDrop(userID int64, ev tracker.PriceDropEvent) error {
	msg := fmt.Sprintf(
		"🎉 Цена упала!\n\n"+
			"📍 %s\n"+
			"📉 Было: %.2f руб\n"+
			"📊 Стало: %.2f руб\n"+
			"💰 Экономия: %.2f руб",
		ev.Route, ev.OldPrice, ev.NewPrice, ev.Savings)
	_, err := bot.B.Send(&telebot.User{ID: userID}, msg, menuKeyboard)
	return err
}

// RunScheduledCheck is what the cron scheduler invokes.
func (bot *Bot) RunScheduledCheck() {
	slog.Info("запуск ежедневной проверки цен")
	bot.Tracker.CheckAll(context.Background())
}

var _ tracker.Notifier = (*Bot)(nil)
