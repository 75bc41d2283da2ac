package beacon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when publishing without a live broker connection
var ErrNotConnected = errors.New("MQTT client not connected")

// ScannerMessage is the per-scanner payload published after a solve
type ScannerMessage struct {
	Scanner   int     `json:"scanner"`
	Position  Point   `json:"position"`
	Transform Matrix4 `json:"transform"`
	Reference bool    `json:"reference"`
	Timestamp int64   `json:"timestamp"`
}

// ResultMessage is the summary payload published after a solve
type ResultMessage struct {
	BeaconCount int     `json:"beaconCount"`
	Scanners    int     `json:"scanners"`
	Reference   int     `json:"reference"`
	MaxDistance int     `json:"maxDistance"`
	Fingerprint string  `json:"fingerprint"`
	Beacons     []Point `json:"beacons"`
	Timestamp   int64   `json:"timestamp"`
}

// Publisher publishes solved results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a publisher. The topic prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then "beaconmesh".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{
		client:        client,
		publishPrefix: envOr("MQTT_PUBLISH_PREFIX", prefix, "beaconmesh"),
		qos:           0,
		retain:        true,
	}
}

// Prefix returns the topic prefix in use
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages are retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// PublishResult publishes the summary to <prefix>/result and each scanner's
// frame to <prefix>/scanners/<index>.
func (p *Publisher) PublishResult(res *Result) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}
	if res == nil {
		return fmt.Errorf("publishing result: nil result")
	}

	now := time.Now().Unix()

	summary := ResultMessage{
		BeaconCount: res.BeaconCount,
		Scanners:    res.ScannerCount,
		Reference:   res.Reference,
		MaxDistance: res.MaxDistance,
		Fingerprint: res.Fingerprint,
		Beacons:     res.Beacons,
		Timestamp:   now,
	}
	if err := p.publishJSON(p.publishPrefix+"/result", summary); err != nil {
		return err
	}

	for i, pos := range res.Positions {
		msg := ScannerMessage{
			Scanner:   i,
			Position:  pos,
			Transform: res.Frames[i],
			Reference: i == res.Reference,
			Timestamp: now,
		}
		if err := p.publishJSON(fmt.Sprintf("%s/scanners/%d", p.publishPrefix, i), msg); err != nil {
			return err
		}
	}

	log.Printf("[MQTT] published result: %d beacons from %d scanners", res.BeaconCount, res.ScannerCount)
	return nil
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}
