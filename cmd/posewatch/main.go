// Posewatch - prints the locomotion pose stream and sends objectives
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/httpc"
	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/protocol"
	"github.com/teslashibe/go-locomotion/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Locomotion server address")
	direction := flag.String("dir", "", "Objective direction as x,z (e.g. 0,1)")
	stop := flag.Bool("stop", false, "Send an idle objective")
	mode := flag.Int("mode", 0, "Motion mode for the objective")
	every := flag.Int("every", 30, "Print every Nth frame")
	count := flag.Int("count", 0, "Exit after N frames (0 = run until interrupted)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := printLibraries(ctx, *addr); err != nil {
		log.Warn("library listing unavailable", "error", err)
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/poses"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Error("failed to connect", "url", u.String(), "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Info("connected", "url", u.String())

	if *direction != "" || *stop {
		dir, err := parseDirection(*direction)
		if err != nil {
			log.Error("invalid -dir", "error", err)
			os.Exit(1)
		}
		msg, err := protocol.NewObjectiveMessage(dir, !*stop, *mode)
		if err == nil {
			err = writeMessage(conn, msg)
		}
		if err != nil {
			log.Error("failed to send objective", "error", err)
			os.Exit(1)
		}
	}

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	if err := watch(conn, *every, *count); err != nil && ctx.Err() == nil {
		log.Error("stream ended", "error", err)
		os.Exit(1)
	}
}

func printLibraries(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var libs []web.LibraryInfo
	if err := httpc.GetJSON(ctx, "http://"+addr+"/api/library", &libs); err != nil {
		return err
	}
	for _, lib := range libs {
		log.Info("library", "name", lib.Name, "mode", lib.Mode, "clips", len(lib.Clips), "segments", lib.Segments)
	}
	return nil
}

// watch prints frames until the connection closes or count frames arrived.
func watch(conn *websocket.Conn, every, count int) error {
	frames := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeFrame:
			f, err := msg.GetFrameData()
			if err != nil {
				log.Warn("bad frame", "error", err)
				continue
			}
			frames++
			if f.Discontinuity || (every > 0 && frames%every == 0) {
				printFrame(f)
			}
			if count > 0 && frames >= count {
				return nil
			}
		case protocol.TypeError:
			if e, err := msg.GetErrorData(); err == nil {
				log.Warn("server rejected request", "error", e.Error)
			}
		default:
			log.Debug("message", "type", msg.Type)
		}
	}
}

func printFrame(f *protocol.FrameData) {
	state := "moving"
	if f.Idle {
		state = "idle"
	}
	fmt.Printf("frame %6d  %-6s mode %d  root (%7.1f %6.1f %7.1f)  contacts L=%t R=%t  disc=%t\n",
		f.Frame, state, f.Mode, f.Root[0], f.Root[1], f.Root[2], f.Contacts[0], f.Contacts[1], f.Discontinuity)
}

func writeMessage(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// parseDirection reads "x,z" into a ground vector. Empty means forward.
func parseDirection(s string) (r3.Vec, error) {
	if s == "" {
		return r3.Vec{Z: 1}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return r3.Vec{}, fmt.Errorf("want x,z, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return r3.Vec{}, err
	}
	z, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: x, Z: z}, nil
}
