package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/sim"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
	if _, err := (Config{UseTLS: true}).LoadTLSConfig(); err == nil {
		t.Fatalf("expected error without files")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
	if _, err := NewClientOptions(Config{}); err == nil {
		t.Fatalf("expected error without broker")
	}
}

func TestTopicsFor(t *testing.T) {
	tp := TopicsFor("lab/pack1/")
	assert.Equal(t, "lab/pack1/telemetry", tp.Telemetry)
	assert.Equal(t, "lab/pack1/command/result", tp.CommandResult)
	assert.Equal(t, "battsim/status", TopicsFor("").Status)
}

func useMock(t *testing.T, mc *mockClient) {
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestConnectPublishesStatusAndSubscribes(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	handler := func(context.Context, sim.Command) (sim.Result, error) { return sim.Result{}, nil }
	cfg := Config{Broker: "tcp://localhost:1883", TopicPrefix: "lab", QoS: map[string]byte{"command": 1, "telemetry": 1}}
	cli, err := NewPahoClient(cfg, handler)
	require.NoError(t, err)

	require.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lab/status", mc.opts.WillTopic)
	assert.Equal(t, StatusOffline, string(mc.opts.WillPayload))
	assert.NotEmpty(t, mc.opts.ClientID)

	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, "lab/command", mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)
	require.NotEmpty(t, mc.published)
	assert.Equal(t, "lab/status", mc.published[0].topic)
	assert.True(t, mc.published[0].retained)

	require.NoError(t, cli.PublishTelemetry(model.Telemetry{Phase: model.PhaseCC, EstimatedRUL: 90}))
	last := mc.last()
	assert.Equal(t, "lab/telemetry", last.topic)
	assert.Equal(t, byte(1), last.qos)
	var got model.Telemetry
	require.NoError(t, json.Unmarshal(last.payload, &got))
	assert.Equal(t, model.PhaseCC, got.Phase)

	cli.Disconnect()
	assert.Equal(t, StatusOffline, string(mc.last().payload))
}

func TestNoHandlerNoSubscription(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	_, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)
	assert.Empty(t, mc.subscribed)
}

func TestOnCommandPublishesResult(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	var received sim.Command
	handler := func(_ context.Context, cmd sim.Command) (sim.Result, error) {
		received = cmd
		if cmd.Action == "explode" {
			return sim.Result{}, errors.New("unknown action")
		}
		return sim.Result{Action: cmd.Action, OK: true, SessionID: "s1"}, nil
	}
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, handler)
	require.NoError(t, err)

	cli.onCommand(nil, mockMessage{[]byte(`{"action":"start_charging","request_id":"r1"}`)})
	assert.Equal(t, sim.ActionStartCharging, received.Action)
	var res CommandResult
	require.NoError(t, json.Unmarshal(mc.last().payload, &res))
	assert.Equal(t, "battsim/command/result", mc.last().topic)
	assert.Equal(t, "r1", res.RequestID)
	assert.True(t, res.OK)
	assert.Equal(t, "s1", res.SessionID)
	assert.Empty(t, res.Error)

	cli.onCommand(nil, mockMessage{[]byte(`{"action":"explode"}`)})
	require.NoError(t, json.Unmarshal(mc.last().payload, &res))
	assert.Equal(t, "explode", res.Action)
	assert.False(t, res.OK)
	assert.Equal(t, "unknown action", res.Error)

	cli.onCommand(nil, mockMessage{[]byte(`not json`)})
	res = CommandResult{}
	require.NoError(t, json.Unmarshal(mc.last().payload, &res))
	assert.Contains(t, res.Error, "decode command")
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	before := len(mc.published)
	mc.setErrors(errors.New("net fail"), nil)
	require.NoError(t, cli.PublishSessionEvent(model.SessionEvent{Kind: model.SessionOpened}))
	assert.Equal(t, before+2, len(mc.published))

	mc.setErrors(errors.New("net fail"), errors.New("net fail"))
	assert.Error(t, cli.PublishTelemetry(model.Telemetry{}))
}

type publishedMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu         sync.Mutex
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published   []publishedMsg
	publishErrs []error
}

func (m *mockClient) setErrors(errs ...error) {
	m.mu.Lock()
	m.publishErrs = errs
	m.mu.Unlock()
}

func (m *mockClient) last() publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[len(m.published)-1]
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	m.published = append(m.published, publishedMsg{topic, qos, retained, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
