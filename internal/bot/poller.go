package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Poll runs the long-polling intake loop on the calling goroutine. Updates
// are handled one at a time; anything slow is handed to the task queue by
// the intake handler, so the loop itself never blocks on external work.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, intake *Intake, logger *slog.Logger) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30

	updates := api.GetUpdatesChan(updateCfg)
	logger.Info("telegram polling started", slog.String("bot_username", api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			logger.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("telegram update channel closed")
				return
			}
			intake.HandleUpdate(ctx, update)
		}
	}
}
