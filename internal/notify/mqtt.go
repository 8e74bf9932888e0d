package notify

import (
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Mavwarf/anchorpatch/internal/config"
)

const (
	defaultClientID = "anchorpatch"
	mqttTimeout     = 5 * time.Second

	// outcomePlaceholder in a configured topic is replaced by the run
	// outcome, e.g. "ci/anchorpatch/{outcome}".
	outcomePlaceholder = "{outcome}"
)

// clientID gives every run its own MQTT session. Brokers drop an existing
// connection when a second one arrives with the same ID, so two runs
// against different targets must not share one.
func clientID(m config.MQTT, rep Report) string {
	base := m.ClientID
	if base == "" {
		base = defaultClientID
	}
	if id := rep.shortID(); id != "" {
		return base + "-" + id
	}
	return base
}

func topic(m config.MQTT, rep Report) string {
	outcome := rep.Outcome
	if outcome == "" {
		outcome = "unknown"
	}
	return strings.ReplaceAll(m.Topic, outcomePlaceholder, outcome)
}

// Publish sends the run report body to the configured broker and
// disconnects. Failed runs can be routed to their own topic through the
// {outcome} placeholder.
func Publish(m config.MQTT, rep Report, body []byte) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(m.Broker).
		SetClientID(clientID(m, rep)).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(false).
		SetCleanSession(true)
	if m.Username != "" {
		opts.SetUsername(m.Username)
		opts.SetPassword(m.Password)
	}

	client := pahomqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt: connect to %s: timeout", m.Broker)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", m.Broker, err)
	}
	defer client.Disconnect(250)

	t := topic(m, rep)
	pub := client.Publish(t, byte(m.QoS), m.Retain, body)
	if !pub.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt: publish run %s to %s: timeout", rep.shortID(), t)
	}
	if err := pub.Error(); err != nil {
		return fmt.Errorf("mqtt: publish run %s to %s: %w", rep.shortID(), t, err)
	}
	return nil
}
