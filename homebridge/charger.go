package homebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

const transIDPrefix = "spotpilot-"

type command struct {
	TransID string `json:"transId"`
	Cmd     struct {
		Name string `json:"name"`
		Arg  any    `json:"arg,omitempty"`
	} `json:"cmd"`
}

type commandResponse struct {
	TransID string `json:"transId"`
	Status  string `json:"status"` // "ack" or "nak"
	Message string `json:"msg"`
}

type pendingCommand struct {
	name   string
	sentAt time.Time
	done   chan commandResponse
}

// SetAmps, SwitchOn and SwitchOff make the bridge an evcharge.Charger.
func (b *Bridge) SetAmps(ctx context.Context, amps int) error {
	return b.sendCommand(ctx, "set_amps", amps)
}

func (b *Bridge) SwitchOn(ctx context.Context) error {
	return b.sendCommand(ctx, "switch_on", nil)
}

func (b *Bridge) SwitchOff(ctx context.Context) error {
	return b.sendCommand(ctx, "switch_off", nil)
}

func (b *Bridge) chargerTopic() string {
	return b.opts.CommandTopic + "/charger"
}

// sendCommand publishes a command and waits for its response. A missing
// response is logged and treated as delivered, a nak is an error.
func (b *Bridge) sendCommand(ctx context.Context, name string, arg any) error {
	var c command
	c.TransID = transIDPrefix + ulid.Make().String()
	c.Cmd.Name = name
	c.Cmd.Arg = arg
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", name, err)
	}

	done := make(chan commandResponse, 1)
	b.pendingMutex.Lock()
	b.pending[c.TransID] = pendingCommand{name: name, sentAt: time.Now(), done: done}
	b.pendingMutex.Unlock()
	defer b.forget(c.TransID)

	b.logger.Info("sending charger command", slog.String("command", name), slog.Any("arg", arg), slog.String("transId", c.TransID))
	token := b.client.Publish(b.chargerTopic(), 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timeout when sending %s command", name)
	}
	if token.Error() != nil {
		return fmt.Errorf("error when sending %s command: %w", name, token.Error())
	}

	timer := time.NewTimer(b.ackTimeout)
	defer timer.Stop()
	select {
	case resp := <-done:
		if resp.Status == "nak" {
			return fmt.Errorf("%s command rejected: %s", name, resp.Message)
		}
		return nil
	case <-timer.C:
		b.logger.Warn("no response to charger command", slog.String("command", name), slog.String("transId", c.TransID))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) handleResponse(payload []byte) {
	var resp commandResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		b.logger.Error("error when reading command response", slog.Any("error", err))
		return
	}

	b.pendingMutex.Lock()
	p, ok := b.pending[resp.TransID]
	b.pendingMutex.Unlock()
	if !ok {
		b.logger.Debug("response for unknown transaction", slog.String("transId", resp.TransID))
		return
	}
	b.logger.Debug("received command response",
		slog.String("command", p.name),
		slog.String("status", resp.Status),
		slog.Duration("duration", time.Since(p.sentAt)))
	select {
	case p.done <- resp:
	default:
	}
}

func (b *Bridge) forget(transID string) {
	b.pendingMutex.Lock()
	defer b.pendingMutex.Unlock()
	delete(b.pending, transID)
}

// startPurgeRoutine drops transactions abandoned by cancelled senders.
func (b *Bridge) startPurgeRoutine() {
	b.stopPurgeCh = make(chan struct{})
	stop := b.stopPurgeCh

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.pendingMutex.Lock()
				for id, p := range b.pending {
					if time.Since(p.sentAt) > time.Minute {
						b.logger.Debug("purging pending command", slog.String("transId", id))
						delete(b.pending, id)
					}
				}
				b.pendingMutex.Unlock()
			case <-stop:
				return
			}
		}
	}()
}
