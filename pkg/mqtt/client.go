// Package mqtt connects the bridge to its devices. One paho client is kept
// per configured device; records are published to the device's down topic
// and replies arrive on its up topic.
package mqtt

import (
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client is the subset of paho.Client the hub uses. It exists so tests can
// substitute a mock.
type Client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

// ClientFactory builds a client from prepared options.
type ClientFactory func(opts *paho.ClientOptions) Client

// NewPahoClient is the production ClientFactory.
func NewPahoClient(opts *paho.ClientOptions) Client { return paho.NewClient(opts) }

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrNotConnected  = errors.New("device not connected")
	ErrTimeout       = errors.New("mqtt operation timed out")
)

// Device is the connection profile of one relay.
type Device struct {
	Name     string
	Broker   string // tcp://host:port
	Username string
	Password string
	SubTopic string // device -> bridge
	PubTopic string // bridge -> device
	QoS      byte

	ClientIDPrefix string
}

type Options struct {
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	PublishTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 60 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	return o
}
