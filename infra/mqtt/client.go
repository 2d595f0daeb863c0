package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/sim"
	"github.com/kilianp07/battsim/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "battsim"

// Status payloads published on the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics derives the topic names from a prefix.
type Topics struct {
	Telemetry     string
	Sessions      string
	Command       string
	CommandResult string
	Status        string
}

// TopicsFor returns the topics below prefix.
func TopicsFor(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Telemetry:     prefix + "/telemetry",
		Sessions:      prefix + "/sessions",
		Command:       prefix + "/command",
		CommandResult: prefix + "/command/result",
		Status:        prefix + "/status",
	}
}

// CommandHandler executes a received command. It is called from the Paho
// callback goroutine.
type CommandHandler func(ctx context.Context, cmd sim.Command) (sim.Result, error)

// CommandResult is the payload published after handling a command.
type CommandResult struct {
	sim.Result
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type commandMessage struct {
	sim.Command
	RequestID string `json:"request_id,omitempty"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes simulator output and dispatches incoming commands
// using Eclipse Paho.
type PahoClient struct {
	cli        pahoClient
	topics     Topics
	qos        map[string]byte
	handler    CommandHandler
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker and subscribes to the command topic
// when handler is not nil.
func NewPahoClient(cfg Config, handler CommandHandler) (*PahoClient, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "battsim-" + uuid.NewString()
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		topics:     TopicsFor(cfg.TopicPrefix),
		qos:        cfg.QoS,
		handler:    handler,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout:    5 * time.Second,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}
	opts.SetWill(pc.topics.Status, StatusOffline, pc.qosFor("status"), true)

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		c.Publish(pc.topics.Status, pc.qosFor("status"), true, StatusOnline)
		if pc.handler == nil {
			return
		}
		if token := c.Subscribe(pc.topics.Command, pc.qosFor("command"), pc.onCommand); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Topics returns the topics in use.
func (p *PahoClient) Topics() Topics { return p.topics }

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onCommand(_ paho.Client, msg paho.Message) {
	var m commandMessage
	out := CommandResult{}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode command: %v", err)
		out.Error = fmt.Sprintf("decode command: %v", err)
		p.publishResult(out)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	res, err := p.handler(ctx, m.Command)
	out.Result = res
	out.RequestID = m.RequestID
	if out.Action == "" {
		out.Action = m.Action
	}
	if err != nil {
		out.Error = err.Error()
		p.logger.Warnf("command %s failed: %v", m.Action, err)
	} else {
		p.logger.Infof("command %s handled (ok=%t)", m.Action, res.OK)
	}
	p.publishResult(out)
}

func (p *PahoClient) publishResult(r CommandResult) {
	if err := p.publishJSON(p.topics.CommandResult, p.qosFor("command"), false, r); err != nil {
		p.logger.Errorf("publish command result: %v", err)
	}
}

// PublishTelemetry publishes a telemetry snapshot.
func (p *PahoClient) PublishTelemetry(t model.Telemetry) error {
	return p.publishJSON(p.topics.Telemetry, p.qosFor("telemetry"), false, t)
}

// PublishSessionEvent publishes a session lifecycle event.
func (p *PahoClient) PublishSessionEvent(ev model.SessionEvent) error {
	return p.publishJSON(p.topics.Sessions, p.qosFor("session"), false, ev)
}

func (p *PahoClient) publishJSON(topic string, qos byte, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// Disconnect marks the simulator offline and closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Publish(p.topics.Status, p.qosFor("status"), true, StatusOffline).WaitTimeout(time.Second)
		p.cli.Disconnect(250)
	}
}
