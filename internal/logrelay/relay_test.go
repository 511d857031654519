package logrelay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/agent2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/mqtt"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePublisher) Publish(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, topic+" "+string(payload))
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func TestConsume(t *testing.T) {
	pub := &fakePublisher{}
	r := New(config.RelayConfig{}, pub, nil)

	r.Consume(strings.NewReader(
		"noise\n" +
			`onReceiveMessage method res/report >> {"a":1} rest` + "\n" +
			`onReceiveMessage method res/report >> {"b":2}` + "\n",
	))

	assert.Equal(t, []string{
		mqtt.TopicReport + ` {"a":1}`,
		mqtt.TopicReport + ` {"b":2}`,
	}, pub.published())
	assert.Equal(t, uint64(2), r.Relayed())
}

func TestConsume_ContinuesPastOverlongLine(t *testing.T) {
	pub := &fakePublisher{}
	r := New(config.RelayConfig{}, pub, nil)

	r.Consume(strings.NewReader(
		`onReceiveMessage method res/report >> {"a":1}` + "\n" +
			strings.Repeat("y", 512*1024) + "\n" +
			`onReceiveMessage method res/report >> {"b":2}` + "\n",
	))

	assert.Equal(t, []string{
		mqtt.TopicReport + ` {"a":1}`,
		mqtt.TopicReport + ` {"b":2}`,
	}, pub.published())
}

func TestRun_RelaysCompanionOutput(t *testing.T) {
	pub := &fakePublisher{}
	r := New(config.RelayConfig{
		Enabled: true,
		Binary:  "/bin/sh",
		Args: []string{"-c",
			`echo 'onReceiveMessage method res/report >> {"did":"1"} tail'; echo ignored; sleep 60`},
	}, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(pub.published()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, mqtt.TopicReport+` {"did":"1"}`, pub.published()[0])
	assert.True(t, r.Running())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, r.Running())
}

func TestStart_RestartsAreCapped(t *testing.T) {
	r := New(config.RelayConfig{
		Binary:           "/bin/sh",
		Args:             []string{"-c", "exit 1"},
		RestartOnFailure: true,
		RestartDelay:     10 * time.Millisecond,
		MaxRestarts:      2,
	}, &fakePublisher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.Eventually(t, func() bool {
		return r.Restarts() == 2 && !r.Running()
	}, 3*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return r.Restarts() > 2 }, 200*time.Millisecond, 20*time.Millisecond)
	assert.False(t, r.Running())
}

func TestStart_KillsStaleInstances(t *testing.T) {
	r := New(config.RelayConfig{
		Binary:       "/bin/true",
		KillExisting: true,
	}, &fakePublisher{}, nil)
	r.settleDelay = time.Millisecond

	var killed string
	r.kill = func(_ context.Context, binary string) error {
		killed = binary
		return errors.New("exit status 1")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	defer r.Stop()
	assert.Equal(t, "/bin/true", killed)
}

func TestRun_LaunchFailureIsNotFatal(t *testing.T) {
	r := New(config.RelayConfig{Binary: "/nonexistent/ha_driven"}, &fakePublisher{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, r.Run(ctx))
	assert.NoError(t, r.Stop())
	assert.False(t, r.Running())
	assert.Zero(t, r.Restarts())
}

func TestStart_CancelledDuringSettle(t *testing.T) {
	r := New(config.RelayConfig{Binary: "/bin/true", KillExisting: true}, &fakePublisher{}, nil)
	r.kill = func(context.Context, string) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.Start(ctx), context.Canceled)
}
