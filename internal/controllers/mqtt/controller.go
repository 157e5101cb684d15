package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kelvinlab/vaporcurve/internal/metrics"
	"github.com/kelvinlab/vaporcurve/internal/ports"
)

type Config struct {
	// Identity
	ServiceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainCatalog   bool
	PublishInterval time.Duration

	// Curve query defaults applied when the query omits the range.
	CurveMinTorr float64
	CurveMaxTorr float64
	CurveSamples int

	Username string
	Password string
}

type Controller struct {
	svc ports.CurveService
	cfg Config

	client mqtt.Client
}

func New(svc ports.CurveService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.ServiceID == "" {
		return nil, errors.New("mqtt: ServiceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "vaporcurve/" + cfg.ServiceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "vaporcurve-" + cfg.ServiceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Minute
	}
	if cfg.CurveMinTorr == 0 {
		cfg.CurveMinTorr = 1.0
	}
	if cfg.CurveMaxTorr == 0 {
		cfg.CurveMaxTorr = 760.0
	}
	if cfg.CurveSamples <= 0 {
		cfg.CurveSamples = 1000
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		// Subscribe to all queries under BaseTopic.
		topic := c.topic("query/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		// If subscribe fails, paho exposes token.Error().
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: the catalog goes out immediately and then on interval,
	// so subscribers that missed the first publish still discover the
	// compound names.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	c.publishCatalog()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			c.publishCatalog()
		}
	}
}

func (c *Controller) publishCatalog() {
	dto := catalogDTO{
		ServiceID: c.cfg.ServiceID,
		Compounds: c.svc.Names(),
	}
	b, _ := json.Marshal(dto)
	c.client.Publish(c.topic("catalog"), c.cfg.QoS, c.cfg.RetainCatalog, b)
}

// ---- wire formats ----

type catalogDTO struct {
	ServiceID string   `json:"service_id"`
	Compounds []string `json:"compounds"`
}

type predictionDTO struct {
	Compound      string  `json:"compound"`
	PressureTorr  float64 `json:"pressure_torr"`
	BoilingPointC float64 `json:"boiling_point_c"`
}

type curveDTO struct {
	Compound      string    `json:"compound"`
	MinTorr       float64   `json:"min_torr"`
	MaxTorr       float64   `json:"max_torr"`
	Samples       int       `json:"samples"`
	PressureTorr  []float64 `json:"pressure_torr"`
	BoilingPointC []float64 `json:"boiling_point_c"`
}

type errorDTO struct {
	Compound string `json:"compound,omitempty"`
	Error    string `json:"error"`
}

type boilingPointQuery struct {
	Compound     string   `json:"compound"`
	PressureTorr *float64 `json:"pressure_torr"`
}

type curveQuery struct {
	Compound string   `json:"compound"`
	MinTorr  *float64 `json:"min_torr"`
	MaxTorr  *float64 `json:"max_torr"`
	Samples  *int     `json:"samples"`
}

// Query payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/query/<kind>
	t := msg.Topic()
	prefix := c.topic("query/")
	if !strings.HasPrefix(t, prefix) {
		return
	}
	kind := strings.TrimPrefix(t, prefix)

	switch kind {
	case "boiling-point":
		c.answerBoilingPoint(msg.Payload())
	case "curve":
		c.answerCurve(msg.Payload())
	}
}

func (c *Controller) answerBoilingPoint(payload []byte) {
	q, err := decodeValueStrict[boilingPointQuery](payload)
	if err != nil {
		c.publishError("boiling-point", "", err)
		return
	}
	if q.PressureTorr == nil {
		c.publishError("boiling-point", q.Compound, errors.New("missing field 'pressure_torr'"))
		return
	}

	temp, err := c.svc.BoilingPointAt(q.Compound, *q.PressureTorr)
	metrics.RecordPrediction(q.Compound, err)
	if err != nil {
		c.publishError("boiling-point", q.Compound, err)
		return
	}
	c.publishJSON("answer/boiling-point", predictionDTO{
		Compound:      q.Compound,
		PressureTorr:  *q.PressureTorr,
		BoilingPointC: temp,
	})
}

func (c *Controller) answerCurve(payload []byte) {
	q, err := decodeValueStrict[curveQuery](payload)
	if err != nil {
		c.publishError("curve", "", err)
		return
	}

	minTorr, maxTorr, samples := c.cfg.CurveMinTorr, c.cfg.CurveMaxTorr, c.cfg.CurveSamples
	if q.MinTorr != nil {
		minTorr = *q.MinTorr
	}
	if q.MaxTorr != nil {
		maxTorr = *q.MaxTorr
	}
	if q.Samples != nil {
		samples = *q.Samples
	}

	curve, err := c.svc.Curve(q.Compound, minTorr, maxTorr, samples)
	metrics.RecordCurve(q.Compound, len(curve), err)
	if err != nil {
		c.publishError("curve", q.Compound, err)
		return
	}
	c.publishJSON("answer/curve", curveDTO{
		Compound:      q.Compound,
		MinTorr:       minTorr,
		MaxTorr:       maxTorr,
		Samples:       samples,
		PressureTorr:  curve.Pressures(),
		BoilingPointC: curve.Temperatures(),
	})
}

func (c *Controller) publishJSON(suffix string, v any) {
	b, _ := json.Marshal(v)
	c.client.Publish(c.topic(suffix), c.cfg.QoS, false, b)
}

func (c *Controller) publishError(kind, compound string, err error) {
	b, _ := json.Marshal(errorDTO{Compound: compound, Error: err.Error()})
	c.client.Publish(c.topic("answer/"+kind), c.cfg.QoS, false, b)
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
