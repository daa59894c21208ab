package notify

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/devpro-denny/R-25V1/internal/events"
)

// Telegram relays lock transitions and risk alerts to a chat. Purely an
// observer: it subscribes to the bus and never feeds anything back into
// the cycle loop.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	bus    *events.Bus
}

// NewTelegram returns nil (disabled) when token or chat id are unset.
func NewTelegram(token string, chatID int64, bus *events.Bus) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram init: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, bus: bus}, nil
}

// Start subscribes and relays until the context ends.
func (t *Telegram) Start(ctx context.Context) {
	if t == nil {
		return
	}
	acquired, unsubA := t.bus.Subscribe(events.EventLockAcquired, 16)
	released, unsubR := t.bus.Subscribe(events.EventLockReleased, 16)
	alerts, unsubAl := t.bus.Subscribe(events.EventRiskAlert, 16)

	go func() {
		defer unsubA()
		defer unsubR()
		defer unsubAl()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-acquired:
				if !ok {
					return
				}
				if lt, ok := msg.(events.LockTransition); ok {
					t.send(fmt.Sprintf("Opened %s (contract %s)", lt.Symbol, lt.ContractID))
				}
			case msg, ok := <-released:
				if !ok {
					return
				}
				if lt, ok := msg.(events.LockTransition); ok {
					t.send(fmt.Sprintf("Closed %s: %s, pnl %.2f", lt.Symbol, lt.Status, lt.PnL))
				}
			case msg, ok := <-alerts:
				if !ok {
					return
				}
				t.send(fmt.Sprintf("ALERT: %v", msg))
			}
		}
	}()
}

func (t *Telegram) send(text string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		log.Printf("notify: telegram send: %v", err)
	}
}
