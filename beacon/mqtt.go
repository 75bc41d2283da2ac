package beacon

import (
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ReportHandler is called for every report received over MQTT.
// scanners is nil when err is set.
type ReportHandler func(topic string, scanners []Scanner, err error)

// MQTTClient manages the broker connection and the report subscription
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	handler     ReportHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT connects to the configured broker and subscribes to the report topic.
// If neither MQTT_BROKER nor mqtt.broker is set, MQTT is disabled and this returns nil.
func InitMQTT(config *Config, handler ReportHandler) (*MQTTClient, error) {
	if config == nil {
		config = DefaultConfig()
	}

	broker := envOr("MQTT_BROKER", config.MQTT.Broker)
	if broker == "" {
		log.Println("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}

	client := &MQTTClient{
		config:  config,
		handler: handler,
	}

	client.client = mqtt.NewClient(client.clientOptions(broker))

	go client.connectWithRetry()

	return client, nil
}

// clientOptions builds the paho options for broker.
// Message handlers run on their own goroutines and may block; the report
// handler's owner serializes solves.
func (c *MQTTClient) clientOptions(broker string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(envOr("MQTT_CLIENT_ID", c.config.MQTT.ClientID, "beaconmesh"))

	if username := envOr("MQTT_USERNAME", c.config.MQTT.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", c.config.MQTT.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting...")
	})
	return opts
}

// envOr returns the first non-empty of the named env var and the fallbacks
func envOr(key string, fallbacks ...string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	for _, f := range fallbacks {
		if f != "" {
			return f
		}
	}
	return ""
}

// connectWithRetry attempts to connect to the broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the report topic; it runs again after every reconnect
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	topic := c.config.MQTT.ReportTopic
	if topic == "" {
		log.Println("[MQTT] warning: no report topic configured")
		return
	}

	log.Printf("[MQTT] subscribing to %s", topic)
	token := client.Subscribe(topic, 1, c.handleReport)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] subscribed to %s", topic)
}

// onConnectionLost is called when the connection drops; auto-reconnect retries
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// handleReport parses a report payload and forwards it to the handler
func (c *MQTTClient) handleReport(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	log.Printf("[MQTT] received report (topic: %s, size: %d bytes)", msg.Topic(), len(payload))

	var scanners []Scanner
	err := checkSize(payload, c.config.Source.MaxBytes)
	if err == nil {
		scanners, err = ParseReportBytes(payload)
	}
	if err != nil {
		log.Printf("[MQTT] error parsing report: %v", err)
	}
	if c.handler != nil {
		c.handler(msg.Topic(), scanners, err)
	}
}

// IsConnected returns true if the client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock wraps an existing mqtt.Client; used by tests
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler ReportHandler) *MQTTClient {
	return &MQTTClient{
		client:  client,
		config:  config,
		handler: handler,
	}
}
