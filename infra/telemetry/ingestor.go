// Package telemetry ingests bin sensor readings pushed over MQTT.
package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
	"github.com/ecollecte/wastefleet/infra/logger"
	infmqtt "github.com/ecollecte/wastefleet/infra/mqtt"
)

// Config defines the topic bins publish their readings on. The topic must
// contain a single-level wildcard standing for the bin id, e.g.
// "bins/+/reading".
type Config struct {
	Topic string `json:"topic"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "bins/+/reading"
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Ingestor subscribes to bin reading topics and appends valid payloads to
// the reading store.
type Ingestor struct {
	cfg      Config
	qos      byte
	cli      pahoClient
	readings store.ReadingStore
	log      logger.Logger

	received   prometheus.Counter
	invalid    prometheus.Counter
	lastIngest prometheus.Gauge
}

// NewIngestor connects to the broker and prepares the subscription.
func NewIngestor(mqttCfg infmqtt.Config, cfg Config, readings store.ReadingStore) (*Ingestor, error) {
	cfg.SetDefaults()
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-ingest"
	} else {
		id = "bin-ingest-" + uuid.NewString()
	}
	opts.SetClientID(id)

	ing := &Ingestor{
		cfg:      cfg,
		qos:      mqttCfg.QoS,
		readings: readings,
		log:      logger.New("telemetry"),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bin_readings_received_total",
			Help: "Number of bin readings received over MQTT",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bin_readings_invalid_total",
			Help: "Number of bin reading payloads rejected",
		}),
		lastIngest: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bin_readings_last_ingest_timestamp_seconds",
			Help: "Unix timestamp of the last accepted bin reading",
		}),
	}
	registerCollectors(ing.received, ing.invalid, ing.lastIngest)

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	ing.cli = cli
	return ing, nil
}

// Start subscribes and blocks until the context is done.
func (i *Ingestor) Start(ctx context.Context) error {
	if token := i.cli.Subscribe(i.cfg.Topic, i.qos, i.onReading); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	i.log.Infof("listening for bin readings on %s", i.cfg.Topic)
	<-ctx.Done()
	i.cli.Disconnect(250)
	return nil
}

func (i *Ingestor) onReading(_ paho.Client, msg paho.Message) {
	i.received.Inc()

	var reading model.BinReading
	if err := json.Unmarshal(msg.Payload(), &reading); err != nil {
		i.invalid.Inc()
		i.log.Errorf("invalid reading payload on %s: %v", msg.Topic(), err)
		return
	}
	if reading.BinID == "" {
		reading.BinID = binIDFromTopic(msg.Topic())
	}
	if reading.BinID == "" || reading.FillPct < 0 || reading.FillPct > 100 {
		i.invalid.Inc()
		i.log.Warnf("rejecting reading on %s: bin=%q fill=%.1f", msg.Topic(), reading.BinID, reading.FillPct)
		return
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := i.readings.Append(ctx, reading); err != nil {
		i.log.Errorf("store reading for %s: %v", reading.BinID, err)
		return
	}
	i.lastIngest.Set(float64(reading.Timestamp.Unix()))
}

// binIDFromTopic extracts the bin id from topics shaped like
// "bins/<id>/reading".
func binIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

func registerCollectors(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
