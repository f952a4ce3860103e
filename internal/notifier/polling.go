package notifier

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CommandHandler is called for every inbound text message. A non-empty
// return value is sent back to the originating chat.
type CommandHandler func(chatID int64, command string) string

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK          bool             `json:"ok"`
	Result      []telegramUpdate `json:"result"`
	Description string           `json:"description"`
}

// StartPolling long-polls getUpdates and dispatches commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	for {
		if ctx.Err() != nil {
			t.Logger.Info("Telegram polling stopped")
			return
		}

		var result updatesResponse
		resp, err := t.PollClient.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"offset":  strconv.Itoa(offset),
				"timeout": strconv.Itoa(t.PollTimeout),
			}).
			SetResult(&result).
			Get(t.endpoint("getUpdates"))
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			t.Logger.WithError(err).Warn("Polling request failed")
			sleep(ctx, 5*time.Second)
			continue
		}
		if resp.IsError() || !result.OK {
			t.Logger.WithFields(logrus.Fields{
				"status":      resp.StatusCode(),
				"description": result.Description,
			}).Warn("Polling returned an error")
			sleep(ctx, 5*time.Second)
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			chatID := update.Message.Chat.ID
			text := strings.TrimSpace(update.Message.Text)
			t.Logger.WithFields(logrus.Fields{"chat_id": chatID, "command": text}).Info("Received command")

			reply := handler(chatID, text)
			if reply == "" {
				continue
			}
			if err := t.Send(ctx, chatID, reply); err != nil {
				t.Logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send reply")
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
