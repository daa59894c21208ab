package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/devpro-denny/R-25V1/internal/events"
)

// Monitor watches risk alerts and hands them to an alert sink (log line,
// pager hook). Separate from the telegram notifier so alerts still land
// somewhere when no chat is configured.
type Monitor struct {
	Bus     *events.Bus
	AlertFn func(string)
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.AlertFn == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(events.EventRiskAlert, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.AlertFn(formatAlert(msg))
			}
		}
	}()
}

func formatAlert(msg any) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + fmt.Sprint(msg)
}
