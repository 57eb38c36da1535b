package mqtt

import "fmt"

// maxPayloadSize bounds one message. Discovery configs are the largest
// payloads the bridge sends, at well under a kilobyte.
const maxPayloadSize = 64 << 10

// Publish sends payload to topic.
//
// Discovery configs, availability and device state are retained so Home
// Assistant sees them after a restart. Button events are not.
//
//	topic := mqtt.Topics{}.DeviceState("1a2b3c", 1)
//	err := client.Publish(topic, []byte(`{"state":"ON","level":255}`), 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}

// PublishRetained publishes a retained message at the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

// PublishEvent publishes a transient message at the configured QoS.
func (c *Client) PublishEvent(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}
