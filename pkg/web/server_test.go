package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/motiontest"
	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/inertialize"
	"github.com/teslashibe/go-locomotion/pkg/motion"
	"github.com/teslashibe/go-locomotion/pkg/movement"
	"github.com/teslashibe/go-locomotion/pkg/protocol"
)

// fakeController records objectives and accepts modes below modes.
type fakeController struct {
	mu         sync.Mutex
	modes      int
	objectives []movement.Objective
}

func (f *fakeController) SetObjective(obj movement.Objective) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj.Mode < 0 || obj.Mode >= f.modes {
		return fmt.Errorf("%w: %d", motion.ErrUnknownMode, obj.Mode)
	}
	f.objectives = append(f.objectives, obj)
	return nil
}

func (f *fakeController) Stats() movement.Stats {
	return movement.Stats{Running: true, Ticks: 12, State: "moving", Moving: true, Position: [3]float64{1, 90, 2}}
}

func (f *fakeController) Modes() int {
	return f.modes
}

func (f *fakeController) received() []movement.Objective {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]movement.Objective(nil), f.objectives...)
}

func testUpdate() movement.Update {
	return movement.Update{
		Frame: inertialize.Frame{
			Frame:       7,
			Translation: r3.Vec{X: 1, Y: 90, Z: 2},
			Rotations:   []quat.Number{{Real: 1}, {Real: 1}},
			Positions:   bvh.Pose{{X: 1, Y: 90, Z: 2}, {X: 11, Z: 2}},
			Contacts:    [2]bool{true, false},
		},
		State:  motion.StateMoving,
		Mode:   1,
		Facing: r3.Vec{Z: 1},
	}
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestStatusEndpoint(t *testing.T) {
	s := NewServer("0", &fakeController{modes: 2})

	resp, body := doRequest(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status protocol.StatusData
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, s.Session(), status.Session)
	_, err := uuid.Parse(status.Session)
	assert.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, uint64(12), status.Ticks)
	assert.Equal(t, [3]float64{1, 90, 2}, status.Position)
}

func TestLibraryEndpoint(t *testing.T) {
	s := NewServer("0", &fakeController{modes: 1})

	_, body := doRequest(t, s, http.MethodGet, "/api/library", nil)
	assert.JSONEq(t, `[]`, string(body))

	opts := motion.LibraryOptions{
		ContactJoints: [2]string{"LeftToe", "RightToe"},
		FacingJoints:  [2]string{"LeftUpLeg", "RightUpLeg"},
	}
	idle, err := motion.NewIdleLibrary("idle", []*bvh.Clip{motiontest.Idle(t, "idle", motiontest.IdleFrames)}, opts)
	require.NoError(t, err)
	walk, err := motion.NewLibrary("walk", []*bvh.Clip{motiontest.Walk(t, "walk", 6, 0, 0)}, opts)
	require.NoError(t, err)
	sel, err := motion.NewSelecter(idle, []*motion.Library{walk}, motion.SelecterOptions{})
	require.NoError(t, err)
	s.SetLibraries(sel)

	_, body = doRequest(t, s, http.MethodGet, "/api/library", nil)
	var libs []LibraryInfo
	require.NoError(t, json.Unmarshal(body, &libs))
	require.Len(t, libs, 2)

	assert.Equal(t, "idle", libs[0].Name)
	assert.Equal(t, -1, libs[0].Mode)
	assert.Equal(t, idle.Len(), libs[0].Segments)

	assert.Equal(t, "walk", libs[1].Name)
	assert.Equal(t, 0, libs[1].Mode)
	require.Len(t, libs[1].Clips, 1)
	assert.Equal(t, 6*motiontest.StepFrames, libs[1].Clips[0].Frames)
}

func TestObjectiveEndpoint(t *testing.T) {
	ctrl := &fakeController{modes: 2}
	s := NewServer("0", ctrl)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"walk", `{"direction":[1,0,0],"moving":true,"mode":1}`, http.StatusOK},
		{"unknown mode", `{"direction":[1,0,0],"moving":true,"mode":5}`, http.StatusUnprocessableEntity},
		{"malformed", `{"direction":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, s, http.MethodPost, "/api/objective", []byte(tt.body))
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	require.Len(t, ctrl.received(), 1)
	assert.Equal(t, movement.Objective{Direction: r3.Vec{X: 1}, Moving: true, Mode: 1}, ctrl.received()[0])
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := NewServer("0", nil)
	resp, _ := doRequest(t, s, http.MethodGet, "/ws/poses", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWireFrame(t *testing.T) {
	f := WireFrame(testUpdate())

	assert.Equal(t, 7, f.Frame)
	assert.Equal(t, [3]float64{1, 90, 2}, f.Root)
	assert.Equal(t, [][4]float64{{1, 0, 0, 0}, {1, 0, 0, 0}}, f.Rotations)
	assert.Equal(t, [][3]float64{{1, 90, 2}, {11, 0, 2}}, f.Positions)
	assert.Equal(t, [2]bool{true, false}, f.Contacts)
	assert.False(t, f.Idle)
	assert.Equal(t, 1, f.Mode)
}

// serve runs s on a loopback listener and returns its address.
func serve(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })
	return ln.Addr().String()
}

func dial(t *testing.T, addr, path string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial("ws://"+addr+path, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.ParseMessage(data)
	require.NoError(t, err)
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg *protocol.Message, err error) {
	t.Helper()
	require.NoError(t, err)
	data, err := msg.Bytes()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestPoseStream(t *testing.T) {
	s := NewServer("0", &fakeController{modes: 2})
	conn := dial(t, serve(t, s), "/ws/poses")
	require.Eventually(t, func() bool { return s.poseHub.ClientCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Publish(testUpdate()))

	msg := read(t, conn)
	require.Equal(t, protocol.TypeFrame, msg.Type)
	frame, err := msg.GetFrameData()
	require.NoError(t, err)
	assert.Equal(t, 7, frame.Frame)
	assert.Equal(t, [3]float64{1, 90, 2}, frame.Root)
}

func TestPoseStreamAcceptsObjectives(t *testing.T) {
	ctrl := &fakeController{modes: 2}
	s := NewServer("0", ctrl)
	conn := dial(t, serve(t, s), "/ws/poses")

	msg, err := protocol.NewObjectiveMessage(r3.Vec{Z: -1}, true, 0)
	send(t, conn, msg, err)
	assert.Eventually(t, func() bool { return len(ctrl.received()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, r3.Vec{Z: -1}, ctrl.received()[0].Direction)

	msg, err = protocol.NewObjectiveMessage(r3.Vec{Z: 1}, true, 9)
	send(t, conn, msg, err)
	reply := read(t, conn)
	require.Equal(t, protocol.TypeError, reply.Type)
	data, err := reply.GetErrorData()
	require.NoError(t, err)
	assert.Contains(t, data.Error, "unknown")
}

func TestPingPong(t *testing.T) {
	s := NewServer("0", nil)
	conn := dial(t, serve(t, s), "/ws/poses")

	msg, err := protocol.NewPingMessage("p-1", time.Now().UnixMilli())
	send(t, conn, msg, err)

	reply := read(t, conn)
	require.Equal(t, protocol.TypePong, reply.Type)
	pong, err := reply.GetPongData()
	require.NoError(t, err)
	assert.Equal(t, "p-1", pong.ID)
	assert.GreaterOrEqual(t, pong.LatencyMs, int64(0))
}

func TestStatusStream(t *testing.T) {
	s := NewServer("0", &fakeController{modes: 1})
	s.statusEvery = 2
	conn := dial(t, serve(t, s), "/ws/status")

	first := read(t, conn)
	require.Equal(t, protocol.TypeStatus, first.Type)
	status, err := first.GetStatusData()
	require.NoError(t, err)
	assert.Equal(t, s.Session(), status.Session)

	for range 2 {
		require.NoError(t, s.Publish(testUpdate()))
	}
	next := read(t, conn)
	assert.Equal(t, protocol.TypeStatus, next.Type)
}

func TestPublishWithoutViewers(t *testing.T) {
	s := NewServer("0", nil)
	for range 5 {
		assert.NoError(t, s.Publish(testUpdate()))
	}
	assert.Zero(t, s.Status().Clients)
	assert.Equal(t, uint64(5), s.published.Load())
}
