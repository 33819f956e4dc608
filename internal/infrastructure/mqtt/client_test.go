package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sentinel-core/internal/infrastructure/config"
)

// testConfig returns a configuration pointing at a local broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "sentinel-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker or skips the test when none is running.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Skipf("no MQTT broker at 127.0.0.1:1883: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// disconnected returns a client that was never connected.
func disconnected() *Client {
	return &Client{cfg: testConfig(), routes: make(map[string]route)}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"access success", topics.AccessEvent("sucesso"), "sentinel/access/sucesso"},
		{"access failure", topics.AccessEvent("falha"), "sentinel/access/falha"},
		{"access report", topics.AccessReport(), "sentinel/access/report"},
		{"resource event", topics.ResourceEvent("deleted"), "sentinel/resources/deleted"},
		{"system status", topics.SystemStatus(), "sentinel/system/status"},
		{"all access", topics.AllAccessEvents(), "sentinel/access/+"},
		{"all", topics.AllTopics(), "sentinel/#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "sentinel", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "sentinel-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "sentinel" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig should be nil without TLS")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if !strings.HasPrefix(opts.Servers[0].String(), "ssl://") {
		t.Errorf("TLS broker URL = %s, want ssl:// scheme", opts.Servers[0])
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig should be set with TLS")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "sentinel-test")

	if !opts.WillEnabled || opts.WillTopic != "sentinel/system/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != "offline" || msg.Reason != "unexpected_disconnect" || msg.ClientID != "sentinel-test" {
		t.Errorf("will payload = %+v", msg)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline statusMessage
	if err := json.Unmarshal([]byte(buildOnlinePayload("c1")), &online); err != nil {
		t.Fatalf("online payload: %v", err)
	}
	if err := json.Unmarshal([]byte(buildOfflinePayload("c1")), &offline); err != nil {
		t.Fatalf("offline payload: %v", err)
	}
	if online.Status != "online" || online.Reason != "" {
		t.Errorf("online = %+v", online)
	}
	if offline.Status != "offline" || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline = %+v", offline)
	}
}

func TestPublishValidation(t *testing.T) {
	c := disconnected()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"bad qos", "sentinel/x", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "sentinel/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "sentinel/x", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_Unencodable(t *testing.T) {
	err := disconnected().PublishJSON("sentinel/x", make(chan int))
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := disconnected()
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("t", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := c.Subscribe("t", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := disconnected()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	if err := disconnected().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	sub := connectOrSkip(t, "sentinel-test-sub")
	pub := connectOrSkip(t, "sentinel-test-pub")

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 1)

	err := sub.Subscribe(Topics{}.AllAccessEvents(), 1, func(topic string, payload []byte) error {
		mu.Lock()
		got = append(got, topic+" "+string(payload))
		mu.Unlock()
		select {
		case received <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription(Topics{}.AllAccessEvents()) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	if err := pub.PublishJSON(Topics{}.AccessEvent("falha"), map[string]string{"area": "vault"}); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 || got[0] != `sentinel/access/falha {"area":"vault"}` {
		t.Errorf("received %v", got)
	}

	if err := sub.Unsubscribe(Topics{}.AllAccessEvents()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	client := connectOrSkip(t, "sentinel-test-panic")
	done := make(chan struct{})

	err := client.Subscribe("sentinel/test/panic", 1, func(string, []byte) error {
		defer close(done)
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Publish("sentinel/test/panic", []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not invoked")
	}
	if !client.IsConnected() {
		t.Error("client should stay connected after a handler panic")
	}
}
