package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTConfig locates the broker and the topic carrying live observations.
type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	QoS      byte
}

// observation is the wire payload published by weather stations. Absent
// fields stay missing in the resulting row.
type observation struct {
	Timestamp  time.Time `json:"timestamp"`
	GHI        *float64  `json:"ghi"`
	DNI        *float64  `json:"dni"`
	DHI        *float64  `json:"dhi"`
	TempAir    *float64  `json:"temp_air"`
	WindSpeed  *float64  `json:"wind_speed"`
	CloudCover *float64  `json:"cloud_cover"`
}

// MQTTSource subscribes to a broker topic and accumulates live weather
// observations. Snapshot hands the collected rows over as a Table.
type MQTTSource struct {
	client mqtt.Client
	log    *logrus.Entry

	mu     sync.Mutex
	latest Row
	rows   map[int64]Row // keyed by unix nanos, later publishes win
}

// NewMQTTSource connects to the broker and subscribes. Malformed payloads
// are logged and dropped; the subscription keeps running.
func NewMQTTSource(cfg MQTTConfig, log *logrus.Entry) (*MQTTSource, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &MQTTSource{
		log:  log.WithField("component", "mqtt-weather"),
		rows: make(map[int64]Row),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(_ mqtt.Client) {
			s.log.WithField("broker", cfg.Broker).Info("connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.log.WithError(err).Warn("MQTT connection lost, reconnecting")
		})

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("MQTT connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect failed: %w", err)
	}

	token = s.client.Subscribe(cfg.Topic, cfg.QoS, s.handleMessage)
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("MQTT subscribe timed out")
	}
	if err := token.Error(); err != nil {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("MQTT subscribe failed: %w", err)
	}
	s.log.WithField("topic", cfg.Topic).Info("subscribed to weather topic")
	return s, nil
}

func (s *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var obs observation
	if err := json.Unmarshal(msg.Payload(), &obs); err != nil {
		s.log.WithError(err).Warn("dropping malformed observation")
		return
	}
	if obs.Timestamp.IsZero() {
		s.log.Warn("dropping observation without timestamp")
		return
	}

	row := EmptyRow(obs.Timestamp)
	setIf(&row, ColGHI, obs.GHI)
	setIf(&row, ColDNI, obs.DNI)
	setIf(&row, ColDHI, obs.DHI)
	setIf(&row, ColTempAir, obs.TempAir)
	setIf(&row, ColWindSpeed, obs.WindSpeed)
	setIf(&row, ColCloudCover, obs.CloudCover)

	s.mu.Lock()
	s.rows[obs.Timestamp.UnixNano()] = row
	if s.latest.Timestamp.IsZero() || obs.Timestamp.After(s.latest.Timestamp) {
		s.latest = row
	}
	s.mu.Unlock()
}

func setIf(r *Row, c Column, v *float64) {
	if v != nil && !math.IsNaN(*v) {
		r.SetValue(c, *v)
	}
}

// Latest returns the most recent observation received, if any.
func (s *MQTTSource) Latest() (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest.Timestamp.IsZero() {
		return Row{}, false
	}
	return s.latest, true
}

// Snapshot assembles everything received so far into a Table. It fails
// with the usual structural errors if too little has arrived (e.g. no
// temperature observations yet).
func (s *MQTTSource) Snapshot() (*Table, error) {
	s.mu.Lock()
	rows := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r)
	}
	s.mu.Unlock()
	return New(rows)
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	s.client.Disconnect(500)
}
