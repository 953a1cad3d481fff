package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"

	logx "irbridge/pkg/logx"
)

// Inbound is one decoded JSON object received from a device.
type Inbound struct {
	Device  string
	Topic   string
	Payload map[string]any // numbers are json.Number
}

// Status is a point-in-time view of a device connection.
type Status struct {
	Device      string
	Connected   bool
	Since       time.Time // last connect or disconnect
	LastMessage time.Time
}

type HubOption func(*Hub)

// WithClientFactory replaces the paho client constructor.
func WithClientFactory(f ClientFactory) HubOption {
	return func(h *Hub) { h.newClient = f }
}

// WithMessageHandler is called for every inbound JSON object.
func WithMessageHandler(fn func(Inbound)) HubOption {
	return func(h *Hub) { h.onMessage = fn }
}

// WithStateHandler is called when a device connects or loses its connection.
func WithStateHandler(fn func(device string, connected bool, err error)) HubOption {
	return func(h *Hub) { h.onState = fn }
}

// Hub owns one client per device.
type Hub struct {
	log       logx.Logger
	opts      Options
	newClient ClientFactory
	onMessage func(Inbound)
	onState   func(device string, connected bool, err error)

	order []string
	conns cmap.ConcurrentMap[string, *conn]
}

type conn struct {
	dev    Device
	client Client

	connected atomic.Bool
	since     atomic.Int64 // unix nano
	lastMsg   atomic.Int64 // unix nano
}

func NewHub(devices []Device, opts Options, log logx.Logger, hopts ...HubOption) *Hub {
	h := &Hub{
		log:       log.With(logx.String("comp", "mqtt")),
		opts:      opts.withDefaults(),
		newClient: NewPahoClient,
		conns:     cmap.New[*conn](),
	}
	for _, o := range hopts {
		if o != nil {
			o(h)
		}
	}
	for _, d := range devices {
		c := &conn{dev: d}
		c.client = h.newClient(h.clientOptions(c))
		h.conns.Set(d.Name, c)
		h.order = append(h.order, d.Name)
	}
	return h
}

func (h *Hub) clientOptions(c *conn) *paho.ClientOptions {
	d := c.dev
	prefix := d.ClientIDPrefix
	if prefix == "" {
		prefix = "irbridge"
	}
	o := paho.NewClientOptions()
	o.AddBroker(d.Broker)
	o.SetClientID(prefix + "-" + uuid.NewString())
	o.SetUsername(d.Username)
	o.SetPassword(d.Password)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectTimeout(h.opts.ConnectTimeout)
	o.SetKeepAlive(h.opts.KeepAlive)
	o.SetOnConnectHandler(func(paho.Client) { h.onConnect(c) })
	o.SetConnectionLostHandler(func(_ paho.Client, err error) { h.onLost(c, err) })
	return o
}

// onConnect subscribes on every (re)connect, since the session is not kept.
func (h *Hub) onConnect(c *conn) {
	log := h.log.With(logx.String("device", c.dev.Name))
	c.connected.Store(true)
	c.since.Store(time.Now().UnixNano())
	log.Info("mqtt connected", logx.String("sub_topic", c.dev.SubTopic))

	tok := c.client.Subscribe(c.dev.SubTopic, c.dev.QoS, func(_ paho.Client, m paho.Message) {
		h.handle(c, m)
	})
	if tok.WaitTimeout(h.opts.ConnectTimeout) && tok.Error() != nil {
		log.Error("mqtt subscribe failed", logx.String("topic", c.dev.SubTopic), logx.Err(tok.Error()))
	}
	if h.onState != nil {
		h.onState(c.dev.Name, true, nil)
	}
}

func (h *Hub) onLost(c *conn, err error) {
	c.connected.Store(false)
	c.since.Store(time.Now().UnixNano())
	h.log.Warn("mqtt connection lost", logx.String("device", c.dev.Name), logx.Err(err))
	if h.onState != nil {
		h.onState(c.dev.Name, false, err)
	}
}

func (h *Hub) handle(c *conn, m paho.Message) {
	c.lastMsg.Store(time.Now().UnixNano())
	log := h.log.With(logx.String("device", c.dev.Name), logx.String("topic", m.Topic()))

	dec := json.NewDecoder(bytes.NewReader(m.Payload()))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		log.Warn("mqtt payload is not a JSON object", logx.Err(err), logx.Int("bytes", len(m.Payload())))
		return
	}
	log.Debug("mqtt message received", logx.Int("qos", int(m.Qos())))
	if h.onMessage != nil {
		h.onMessage(Inbound{Device: c.dev.Name, Topic: m.Topic(), Payload: payload})
	}
}

// Connect starts every client concurrently. A device that does not connect
// within the connect timeout keeps retrying in the background; its error is
// logged and the first one is returned.
func (h *Hub) Connect(ctx context.Context) error {
	var g errgroup.Group
	for _, name := range h.order {
		c, _ := h.conns.Get(name)
		g.Go(func() error {
			log := h.log.With(logx.String("device", name), logx.String("broker", c.dev.Broker))
			tok := c.client.Connect()
			if err := wait(ctx, tok, h.opts.ConnectTimeout); err != nil {
				log.Warn("mqtt connect pending", logx.Err(err))
				return fmt.Errorf("device %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Publish sends payload to the down topic of device and waits for the
// client to hand it off.
func (h *Hub) Publish(ctx context.Context, device string, payload []byte) error {
	c, ok := h.conns.Get(device)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("%w: %s", ErrNotConnected, device)
	}
	tok := c.client.Publish(c.dev.PubTopic, c.dev.QoS, false, payload)
	if err := wait(ctx, tok, h.opts.PublishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", c.dev.PubTopic, err)
	}
	h.log.Debug("mqtt published",
		logx.String("device", device),
		logx.String("topic", c.dev.PubTopic),
		logx.Int("bytes", len(payload)),
	)
	return nil
}

func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return ErrTimeout
	}
}

// Status returns the connection view of device.
func (h *Hub) Status(device string) (Status, bool) {
	c, ok := h.conns.Get(device)
	if !ok {
		return Status{}, false
	}
	return c.status(), true
}

// Statuses returns every device in configuration order.
func (h *Hub) Statuses() []Status {
	out := make([]Status, 0, len(h.order))
	for _, name := range h.order {
		if c, ok := h.conns.Get(name); ok {
			out = append(out, c.status())
		}
	}
	return out
}

func (c *conn) status() Status {
	st := Status{Device: c.dev.Name, Connected: c.connected.Load()}
	if ns := c.since.Load(); ns > 0 {
		st.Since = time.Unix(0, ns)
	}
	if ns := c.lastMsg.Load(); ns > 0 {
		st.LastMessage = time.Unix(0, ns)
	}
	return st
}

// Close disconnects every client.
func (h *Hub) Close() {
	for _, name := range h.order {
		c, ok := h.conns.Pop(name)
		if !ok {
			continue
		}
		c.client.Disconnect(250)
		c.connected.Store(false)
	}
	h.log.Info("mqtt clients disconnected")
}
