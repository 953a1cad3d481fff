package bridge

import (
	"context"

	"irbridge/internal/eventbus"
	kit "irbridge/internal/transport"
	logx "irbridge/pkg/logx"
)

// InboundObserver counts device messages by kind.
type InboundObserver interface {
	DeviceMessage(device, kind string)
}

// HandleDeviceMessage renders one device message and sends it to the chat
// named in its chat_id. Messages without chat_id are logged and dropped.
func (b *Bridge) HandleDeviceMessage(ctx context.Context, dm eventbus.DeviceMessage) {
	r, ok := Render(dm.Payload, b.tokens, b.now())
	if !ok {
		b.log.Warn("device message without chat_id dropped", logx.String("device", dm.Device), logx.String("topic", dm.Topic))
		return
	}
	if o, ok := b.pipe.obs.(InboundObserver); ok {
		o.DeviceMessage(dm.Device, r.Kind)
	}
	opt := &kit.SendOptions{DisablePreview: true}
	if r.Markup != nil {
		opt.ReplyMarkupAdapter = r.Markup
	}
	_, _ = b.send(ctx, r.ChatID, r.Text, opt)
}

// Run forwards device messages from bus until ctx ends.
func (b *Bridge) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			switch ev.Type {
			case eventbus.TypeDeviceMessage:
				if dm, ok := ev.Data.(eventbus.DeviceMessage); ok {
					b.HandleDeviceMessage(ctx, dm)
				}
			case eventbus.TypeDeviceState:
				if ds, ok := ev.Data.(eventbus.DeviceState); ok {
					b.log.Info("device connection changed", logx.String("device", ds.Device), logx.Bool("connected", ds.Connected), logx.String("err", ds.Err))
				}
			}
		}
	}
}
