package mqttctrl

import (
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kelvinlab/vaporcurve/internal/testutil"
	"github.com/kelvinlab/vaporcurve/internal/vapor"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	err  error
	done chan struct{}
}

func (t fakeToken) Done() <-chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
		close(t.done)
	}
	return t.done
}

func (t fakeToken) Wait() bool                       { return true }
func (t fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t fakeToken) Error() error                     { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	publishes []publishCall
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return fakeToken{} }
func (c *fakeClient) Disconnect(_ uint)      {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = append([]byte(nil), v...)
	case string:
		b = []byte(v)
	default:
		// shouldn't happen in our controller, but keep it safe
		tmp, _ := json.Marshal(v)
		b = tmp
	}
	c.publishes = append(c.publishes, publishCall{
		topic: topic, qos: qos, retain: retained, payload: b,
	})
	return fakeToken{}
}
func (c *fakeClient) Subscribe(_ string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) Unsubscribe(_ ...string) mqtt.Token       { return fakeToken{} }
func (c *fakeClient) AddRoute(_ string, _ mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader  { return mqtt.ClientOptionsReader{} }

// ---- tests ----

func newDefaultSvc() *testutil.FakeCurveService {
	return testutil.NewFakeCurveService()
}

func TestNewDefaults(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{ServiceID: "lab1"})
	if err != nil {
		t.Fatal(err)
	}

	if c.cfg.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("expected default BrokerURL, got %q", c.cfg.BrokerURL)
	}
	if c.cfg.BaseTopic != "vaporcurve/lab1" {
		t.Fatalf("expected default BaseTopic, got %q", c.cfg.BaseTopic)
	}
	if c.cfg.ClientID != "vaporcurve-lab1" {
		t.Fatalf("expected default ClientID, got %q", c.cfg.ClientID)
	}
	if c.cfg.PublishInterval != 1*time.Minute {
		t.Fatalf("expected default PublishInterval, got %v", c.cfg.PublishInterval)
	}
	if c.cfg.CurveMinTorr != 1.0 || c.cfg.CurveMaxTorr != 760.0 || c.cfg.CurveSamples != 1000 {
		t.Fatalf("expected default curve range, got %+v", c.cfg)
	}
}

func TestNewValidation(t *testing.T) {
	svc := newDefaultSvc()

	if _, err := New(svc, Config{}); err == nil {
		t.Fatal("expected error when ServiceID missing")
	}

	if _, err := New(svc, Config{ServiceID: "x", QoS: 2}); err == nil {
		t.Fatal("expected error when QoS > 1")
	}
}

func TestTopicJoin(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{ServiceID: "lab1", BaseTopic: "vaporcurve/lab1/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.topic("catalog"); got != "vaporcurve/lab1/catalog" {
		t.Fatalf("expected topic without double slashes, got %q", got)
	}
}

func TestDecodeValueStrict(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, err := decodeValueStrict[boilingPointQuery]([]byte(`{"value": {"compound":"Water","pressure_torr":12.5}}`))
		if err != nil {
			t.Fatal(err)
		}
		if v.Compound != "Water" || v.PressureTorr == nil || *v.PressureTorr != 12.5 {
			t.Fatalf("unexpected query: %+v", v)
		}
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := decodeValueStrict[boilingPointQuery]([]byte(`{}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := decodeValueStrict[boilingPointQuery]([]byte(`{"value":{"compound":"Water"},"extra":1}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeValueStrict[curveQuery]([]byte(`{"value":`))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestOnMessage_IgnoresWrongPrefix(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{ServiceID: "lab1"})
	if err != nil {
		t.Fatal(err)
	}

	c.onMessage(nil, fakeMessage{
		topic:   "otherprefix/query/boiling-point",
		payload: []byte(`{"value":{"compound":"Water","pressure_torr":760}}`),
	})

	if svc.BoilingPointCalled {
		t.Fatal("expected BoilingPointAt not called")
	}
}

func TestOnMessage_IgnoresUnknownKind(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/density",
		payload: []byte(`{"value":{"compound":"Water"}}`),
	})

	if len(fc.publishes) != 0 {
		t.Fatalf("expected no publishes, got %d", len(fc.publishes))
	}
}

func TestOnMessage_BoilingPoint(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/boiling-point",
		payload: []byte(`{"value":{"compound":"Water","pressure_torr":760}}`),
	})

	if !svc.BoilingPointCalled || svc.BoilingPointName != "Water" || svc.BoilingPointPressure != 760 {
		t.Fatalf("expected BoilingPointAt(Water, 760), got called=%v name=%v p=%v",
			svc.BoilingPointCalled, svc.BoilingPointName, svc.BoilingPointPressure)
	}

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}
	p := fc.publishes[0]
	if p.topic != "vaporcurve/lab1/answer/boiling-point" {
		t.Fatalf("expected answer topic, got %q", p.topic)
	}

	var got predictionDTO
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if got.Compound != "Water" || got.BoilingPointC < 99.999 || got.BoilingPointC > 100.001 {
		t.Fatalf("expected ~100 for Water at 760 torr, got %+v", got)
	}
}

func TestOnMessage_BoilingPoint_MissingPressure(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/boiling-point",
		payload: []byte(`{"value":{"compound":"Water"}}`),
	})

	if svc.BoilingPointCalled {
		t.Fatal("expected BoilingPointAt not called")
	}
	assertErrorAnswer(t, fc, "vaporcurve/lab1/answer/boiling-point")
}

func TestOnMessage_BoilingPoint_UnknownCompound(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/boiling-point",
		payload: []byte(`{"value":{"compound":"Unobtainium","pressure_torr":760}}`),
	})

	got := assertErrorAnswer(t, fc, "vaporcurve/lab1/answer/boiling-point")
	if got.Compound != "Unobtainium" {
		t.Fatalf("expected the error to name the compound, got %+v", got)
	}
}

func TestOnMessage_Curve_Defaults(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/curve",
		payload: []byte(`{"value":{"compound":"Water"}}`),
	})

	if !svc.CurveCalled || svc.CurveMin != 1.0 || svc.CurveMax != 760.0 || svc.CurveSamples != 1000 {
		t.Fatalf("expected the default range, got min=%v max=%v samples=%v",
			svc.CurveMin, svc.CurveMax, svc.CurveSamples)
	}

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}
	p := fc.publishes[0]
	if p.topic != "vaporcurve/lab1/answer/curve" {
		t.Fatalf("expected answer topic, got %q", p.topic)
	}

	var got curveDTO
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v", err)
	}
	if len(got.PressureTorr) != 1000 || len(got.BoilingPointC) != 1000 {
		t.Fatalf("expected 1000 points, got %d/%d", len(got.PressureTorr), len(got.BoilingPointC))
	}
}

func TestOnMessage_Curve_ExplicitRange(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/curve",
		payload: []byte(`{"value":{"compound":"Water","min_torr":100,"max_torr":760,"samples":2}}`),
	})

	if svc.CurveMin != 100 || svc.CurveMax != 760 || svc.CurveSamples != 2 {
		t.Fatalf("expected the explicit range, got min=%v max=%v samples=%v",
			svc.CurveMin, svc.CurveMax, svc.CurveSamples)
	}

	var got curveDTO
	if err := json.Unmarshal(fc.publishes[0].payload, &got); err != nil {
		t.Fatalf("invalid published json: %v", err)
	}
	if len(got.PressureTorr) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got.PressureTorr))
	}
}

func TestOnMessage_Curve_ServiceError(t *testing.T) {
	svc := newDefaultSvc()
	svc.CurveErr = vapor.ErrInvalidRange
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/curve",
		payload: []byte(`{"value":{"compound":"Water","samples":1}}`),
	})

	got := assertErrorAnswer(t, fc, "vaporcurve/lab1/answer/curve")
	if got.Compound != "Water" {
		t.Fatalf("expected the error to name the compound, got %+v", got)
	}
}

func TestOnMessage_MalformedQuery(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1"})
	fc := &fakeClient{}
	c.client = fc

	c.onMessage(nil, fakeMessage{
		topic:   "vaporcurve/lab1/query/curve",
		payload: []byte(`{"value":`),
	})

	if svc.CurveCalled {
		t.Fatal("expected Curve not called")
	}
	assertErrorAnswer(t, fc, "vaporcurve/lab1/answer/curve")
}

func TestPublishCatalog_PublishesJSON(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{ServiceID: "lab1", QoS: 1, RetainCatalog: true})

	fc := &fakeClient{}
	c.client = fc

	c.publishCatalog()

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}

	p := fc.publishes[0]
	if p.topic != "vaporcurve/lab1/catalog" {
		t.Fatalf("expected catalog topic, got %q", p.topic)
	}
	if p.qos != 1 || p.retain != true {
		t.Fatalf("expected qos=1 retain=true, got qos=%d retain=%v", p.qos, p.retain)
	}

	var got catalogDTO
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if got.ServiceID != "lab1" {
		t.Fatalf("expected service_id=lab1, got %v", got.ServiceID)
	}
	if len(got.Compounds) != 2 || got.Compounds[0] != "Water" || got.Compounds[1] != "Ethanol" {
		t.Fatalf("expected [Water Ethanol], got %v", got.Compounds)
	}
}

// ---- test helpers ----

func assertErrorAnswer(t *testing.T, fc *fakeClient, topic string) errorDTO {
	t.Helper()
	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}
	p := fc.publishes[0]
	if p.topic != topic {
		t.Fatalf("expected topic %q, got %q", topic, p.topic)
	}
	var got errorDTO
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if got.Error == "" {
		t.Fatalf("expected non-empty error field, got payload=%s", string(p.payload))
	}
	return got
}
