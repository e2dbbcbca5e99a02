package notifier

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	longPollSeconds = 30
	pollRetryDelay  = 5 * time.Second
)

// CommandHandler maps an incoming chat text to a reply. An empty reply sends nothing.
type CommandHandler func(command string) string

type getUpdatesRequest struct {
	Offset  int `json:"offset"`
	Timeout int `json:"timeout"`
}

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// StartPolling long-polls getUpdates and dispatches commands until ctx is done.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{
		Timeout:   (longPollSeconds + 5) * time.Second,
		Transport: t.Client.Transport,
	}
	offset := 0
	for ctx.Err() == nil {
		next, err := t.poll(ctx, client, offset, handler)
		if err == nil {
			offset = next
			continue
		}
		if ctx.Err() != nil {
			break
		}
		t.logger.Warn("polling request failed", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(pollRetryDelay):
		}
	}
	t.logger.Info("telegram polling stopped")
}

// poll handles one getUpdates round and returns the offset to ask for next.
func (t *TelegramNotifier) poll(ctx context.Context, client *http.Client, offset int, handler CommandHandler) (int, error) {
	var updates []update
	if err := t.call(ctx, client, "getUpdates", getUpdatesRequest{Offset: offset, Timeout: longPollSeconds}, &updates); err != nil {
		return offset, err
	}
	for _, u := range updates {
		if u.UpdateID >= offset {
			offset = u.UpdateID + 1
		}
		if u.Message == nil {
			continue
		}
		cmd := strings.TrimSpace(u.Message.Text)
		if cmd == "" {
			continue
		}
		t.logger.Info("received command", zap.String("text", cmd))
		reply := handler(cmd)
		if reply == "" {
			continue
		}
		if err := t.Send(ctx, reply); err != nil {
			t.logger.Error("send reply", zap.Error(err))
		}
	}
	return offset, nil
}
