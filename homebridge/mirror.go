package homebridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
)

type mirrorPayload struct {
	State      string            `json:"state"`
	Attributes entity.Attributes `json:"attributes"`
}

// Mirror publishes every change of an owned entity, retained, to
// <CommandTopic>/entity/<id>. Subscribe it to an entity.Observed store.
func (b *Bridge) Mirror(ctx context.Context, c entity.Change) {
	if !entity.IsOutput(c.ID) {
		return
	}
	state := entity.String(ctx, b.store, c.ID).ValueOrDefault("unavailable")
	attrs, err := b.store.Attributes(ctx, c.ID)
	if err != nil {
		b.logger.Error("error when reading entity to mirror", slog.String("id", c.ID), slog.Any("error", err))
		return
	}
	payload, err := json.Marshal(mirrorPayload{State: state, Attributes: attrs})
	if err != nil {
		b.logger.Error("error when encoding entity to mirror", slog.String("id", c.ID), slog.Any("error", err))
		return
	}

	token := b.client.Publish(b.opts.CommandTopic+"/entity/"+c.ID, 0, true, payload)
	// never block the writer, it may hold an entity lock
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			b.logger.Warn("error when mirroring entity", slog.String("id", c.ID), slog.Any("error", token.Error()))
		}
	}()
}
