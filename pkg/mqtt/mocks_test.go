package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Connect() paho.Token {
	args := m.Called()
	return args.Get(0).(paho.Token)
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(paho.Token)
}

func (m *MockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(paho.Token)
}

func (m *MockClient) Unsubscribe(topics ...string) paho.Token {
	args := m.Called(topics)
	return args.Get(0).(paho.Token)
}

func (m *MockClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func (m *MockClient) IsConnectionOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

// doneToken is a completed token carrying err.
type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	ch := make(chan struct{})
	close(ch)
	return &doneToken{err: err, done: ch}
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

// pendingToken never completes.
type pendingToken struct{ done chan struct{} }

func (t *pendingToken) Wait() bool                     { <-t.done; return true }
func (t *pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t *pendingToken) Done() <-chan struct{}          { return t.done }
func (t *pendingToken) Error() error                   { return nil }

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 1 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
