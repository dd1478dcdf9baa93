package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient registers a connectionless client so the hub loop can be
// exercised without sockets.
func fakeClient(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, buffer)}
	h.register <- c
	return c
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test")
	go h.Run()
	t.Cleanup(h.Stop)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "client channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func TestBroadcastFansOut(t *testing.T) {
	h := runHub(t)
	a := fakeClient(t, h, 4)
	b := fakeClient(t, h, 4)
	assert.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]int{"frame": 1}))
	assert.JSONEq(t, `{"frame":1}`, string(receive(t, a).Data))
	assert.JSONEq(t, `{"frame":1}`, string(receive(t, b).Data))

	assert.Error(t, h.BroadcastJSON(func() {}), "unencodable values are reported")
}

func TestSlowClientIsDropped(t *testing.T) {
	h := runHub(t)
	fast := fakeClient(t, h, 4)
	slow := fakeClient(t, h, 0)

	h.Broadcast(NewJSONMessage([]byte(`{}`)))
	receive(t, fast)

	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)
	_, ok := <-slow.send
	assert.False(t, ok, "a dropped client's channel is closed")
}

func TestSendReachesOneClient(t *testing.T) {
	h := runHub(t)
	a := fakeClient(t, h, 4)
	b := fakeClient(t, h, 4)

	a.Send(NewJSONMessage([]byte(`{"type":"pong"}`)))
	assert.Equal(t, `{"type":"pong"}`, string(receive(t, a).Data))

	select {
	case msg := <-b.send:
		t.Fatalf("unexpected message %s", msg.Data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestUnregister(t *testing.T) {
	h := runHub(t)
	c := fakeClient(t, h, 4)
	h.unregister <- c

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
	_, ok := <-c.send
	assert.False(t, ok)
}

func TestStopClosesClients(t *testing.T) {
	h := New("test")
	go h.Run()
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	c := fakeClient(t, h, 4)

	h.Stop()
	h.Stop()

	assert.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)
	_, ok := <-c.send
	assert.False(t, ok)
	assert.Nil(t, NewClient(h, nil), "a stopped hub accepts no clients")
}
