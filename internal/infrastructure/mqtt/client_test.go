package mqtt_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/casalprim/interfono/internal/infrastructure/config"
	"github.com/casalprim/interfono/internal/infrastructure/mqtt"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "interfono-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip skips the test when no local broker is available.
func connectOrSkip(t *testing.T) *mqtt.Client {
	t.Helper()
	client, err := mqtt.Connect(testConfig(), mqtt.Will{
		Topic:   "home/doorbell/availability",
		Payload: "offline",
	})
	if err != nil {
		t.Skip("MQTT broker not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnectUnreachableBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 59999

	_, err := mqtt.Connect(cfg, mqtt.Will{})
	if !errors.Is(err, mqtt.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishSubscribe(t *testing.T) {
	client := connectOrSkip(t)

	received := make(chan string, 1)
	err := client.Subscribe("interfono/test/command", 1, func(topic string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := client.Publish("interfono/test/command", []byte("PRESS"), 1, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case payload := <-received:
		if payload != "PRESS" {
			t.Errorf("payload = %q, want PRESS", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPublishValidation(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, mqtt.ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Publish("t", []byte("x"), 3, false); !errors.Is(err, mqtt.ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
}

func TestSlowHandlerDoesNotBlockOthers(t *testing.T) {
	client := connectOrSkip(t)

	release := make(chan struct{})
	defer close(release)

	slowEntered := make(chan struct{}, 1)
	err := client.Subscribe("interfono/test/slow", 1, func(topic string, payload []byte) error {
		slowEntered <- struct{}{}
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe slow: %v", err)
	}

	fast := make(chan struct{}, 1)
	err = client.Subscribe("interfono/test/fast", 1, func(topic string, payload []byte) error {
		fast <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe fast: %v", err)
	}

	if err := client.Publish("interfono/test/slow", []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish slow: %v", err)
	}
	select {
	case <-slowEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("slow handler never invoked")
	}

	// A handler stalled mid-pulse must not delay delivery on other
	// topics: each message gets its own dispatch goroutine.
	if err := client.Publish("interfono/test/fast", []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish fast: %v", err)
	}
	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("fast topic delayed behind a blocked handler")
	}
}

func TestUnsubscribe(t *testing.T) {
	client := connectOrSkip(t)

	err := client.Subscribe("interfono/test/gone", 1, func(topic string, payload []byte) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !client.HasSubscription("interfono/test/gone") {
		t.Fatal("subscription not tracked")
	}

	if err := client.Unsubscribe("interfono/test/gone"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if client.HasSubscription("interfono/test/gone") {
		t.Error("subscription still tracked after Unsubscribe")
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestSubscribeReplacesHandler(t *testing.T) {
	client := connectOrSkip(t)

	var mu sync.Mutex
	var first, second int

	handler := func(counter *int) mqtt.MessageHandler {
		return func(topic string, payload []byte) error {
			mu.Lock()
			defer mu.Unlock()
			*counter++
			return nil
		}
	}

	// Subscribing twice to one topic must replace, not stack, so the
	// reconnect transition can re-run safely.
	if err := client.Subscribe("interfono/test/replace", 1, handler(&first)); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := client.Subscribe("interfono/test/replace", 1, handler(&second)); err != nil {
		t.Fatalf("re-Subscribe: %v", err)
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}

	if err := client.Publish("interfono/test/replace", []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if first != 0 {
		t.Errorf("replaced handler still invoked %d times", first)
	}
	if second != 1 {
		t.Errorf("current handler invoked %d times, want 1", second)
	}
}
