package main

import (
	"log"
	"log/slog"

	"avia-price-bot/aviasales"
	"avia-price-bot/bot"
	"avia-price-bot/config"
	"avia-price-bot/store"
	"avia-price-bot/tracker"

	"github.com/glebarez/sqlite"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatal(err)
	}

	client := aviasales.NewClient(cfg.AviasalesKey, cfg.Currency, cfg.APIResultLimit, cfg.APITimeout)
	resolver := aviasales.NewResolver(client)
	tr := tracker.New(st, resolver, nil)

	b, err := bot.NewBot(cfg.TelegramToken, st, tr)
	if err != nil {
		log.Fatal(err)
	}
	tr.SetNotifier(b)

	// Scheduler: daily price sweep.
	c := cron.New()
	if _, err := c.AddFunc(cfg.CheckSchedule, b.RunScheduledCheck); err != nil {
		log.Fatal(err)
	}
	c.Start()
	defer c.Stop()

	slog.Info("bot started", "schedule", cfg.CheckSchedule, "db", cfg.DBPath)
	b.Start()
}
