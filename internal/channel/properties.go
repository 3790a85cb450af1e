// internal/channel/properties.go
package channel

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"github.com/spf13/viper"
)

// LoadProperties reads a Java-style key=value connection file.
// Keys are returned lower-cased and fully dotted, e.g. "bootstrap.servers".
func LoadProperties(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read channel properties from %s: %w", path, err)
	}

	props := make(map[string]string, len(v.AllKeys()))
	for _, key := range v.AllKeys() {
		props[key] = strings.TrimSpace(v.GetString(key))
	}
	return props, nil
}

// KafkaSettings is the resolved connection setup for the Kafka driver.
type KafkaSettings struct {
	Brokers          []string
	Topic            string
	GroupID          string
	ClientID         string
	SecurityProtocol string // PLAINTEXT, SSL, SASL_PLAINTEXT, SASL_SSL
	SASLMechanism    string // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	SASLUsername     string
	SASLPassword     string
}

// NewKafkaSettings merges cfg with the connection properties; properties win where both are set.
func NewKafkaSettings(cfg Config, props map[string]string) (KafkaSettings, error) {
	s := KafkaSettings{
		Brokers:          cfg.Brokers,
		Topic:            cfg.Topic,
		GroupID:          cfg.GroupID,
		SecurityProtocol: "PLAINTEXT",
	}
	if servers := props["bootstrap.servers"]; servers != "" {
		s.Brokers = nil
		for _, b := range strings.Split(servers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				s.Brokers = append(s.Brokers, b)
			}
		}
	}
	if v := props["group.id"]; v != "" {
		s.GroupID = v
	}
	if v := props["client.id"]; v != "" {
		s.ClientID = v
	}
	if v := props["security.protocol"]; v != "" {
		s.SecurityProtocol = strings.ToUpper(v)
	}
	// librdkafka spells it sasl.mechanisms, the Java client sasl.mechanism.
	if v := props["sasl.mechanisms"]; v != "" {
		s.SASLMechanism = strings.ToUpper(v)
	} else if v := props["sasl.mechanism"]; v != "" {
		s.SASLMechanism = strings.ToUpper(v)
	}
	s.SASLUsername = props["sasl.username"]
	s.SASLPassword = props["sasl.password"]

	if len(s.Brokers) == 0 {
		return KafkaSettings{}, fmt.Errorf("no brokers configured: set bootstrap.servers or channel.brokers")
	}
	if s.Topic == "" {
		return KafkaSettings{}, fmt.Errorf("no topic configured")
	}
	switch s.SecurityProtocol {
	case "PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL":
	default:
		return KafkaSettings{}, fmt.Errorf("unsupported security.protocol %q", s.SecurityProtocol)
	}
	if _, err := s.mechanism(); err != nil {
		return KafkaSettings{}, err
	}
	return s, nil
}

func (s KafkaSettings) usesSASL() bool {
	return strings.HasPrefix(s.SecurityProtocol, "SASL_")
}

func (s KafkaSettings) usesTLS() bool {
	return s.SecurityProtocol == "SSL" || s.SecurityProtocol == "SASL_SSL"
}

func (s KafkaSettings) mechanism() (sasl.Mechanism, error) {
	if !s.usesSASL() {
		return nil, nil
	}
	switch s.SASLMechanism {
	case "", "PLAIN":
		return plain.Mechanism{Username: s.SASLUsername, Password: s.SASLPassword}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, s.SASLUsername, s.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, s.SASLUsername, s.SASLPassword)
	default:
		return nil, fmt.Errorf("unsupported sasl mechanism %q", s.SASLMechanism)
	}
}

func (s KafkaSettings) tlsConfig() *tls.Config {
	if !s.usesTLS() {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func (s KafkaSettings) dialer() (*kafka.Dialer, error) {
	mech, err := s.mechanism()
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		ClientID:      s.ClientID,
		Timeout:       10 * time.Second,
		DualStack:     true,
		TLS:           s.tlsConfig(),
		SASLMechanism: mech,
	}, nil
}

func (s KafkaSettings) transport() (*kafka.Transport, error) {
	mech, err := s.mechanism()
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		ClientID: s.ClientID,
		TLS:      s.tlsConfig(),
		SASL:     mech,
	}, nil
}
