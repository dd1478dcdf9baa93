// Locomotion - motion-matching character locomotion served over websockets
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/app"
	"github.com/teslashibe/go-locomotion/internal/config"
	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/movement"
)

func main() {
	cfg, opts := parseFlags()
	log.Init(cfg.Log.Level)

	a, err := app.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := a.Init(); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	switch {
	case opts.demo:
		a.Steering = demoScript(a.Manager().Modes())
	case opts.follow != nil:
		f := movement.NewFollow(*opts.follow, false, cfg.Character.FollowRadius, 0)
		f.Moving = true
		a.Steering = f
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

// startOptions selects a steering source installed at startup.
type startOptions struct {
	demo   bool
	follow *r3.Vec
}

// parseFlags loads the config file and applies command line overrides.
func parseFlags() (*config.Config, startOptions) {
	path := flag.String("config", "", "Config file (overrides LOCOMOTION_CONFIG)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	port := flag.String("port", "", "HTTP port (overrides server.port)")
	watchDirs := flag.Bool("watch", false, "Reload libraries when clips change")
	demo := flag.Bool("demo", false, "Walk a scripted path instead of waiting for objectives")
	follow := flag.String("follow", "", "Walk to a target given as x,z and stop within character.follow_radius")
	flag.Parse()

	var opts startOptions
	opts.demo = *demo
	if *follow != "" {
		target, err := parseTarget(*follow)
		if err != nil {
			log.Error("invalid -follow", "error", err)
			os.Exit(1)
		}
		opts.follow = &target
	}

	cfg, err := config.Load(*path)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *debug {
		cfg.Log.Level = "debug"
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *watchDirs {
		cfg.Server.Watch = true
	}
	return cfg, opts
}

// parseTarget reads "x,z" into a ground point.
func parseTarget(s string) (r3.Vec, error) {
	var x, z float64
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "%g,%g", &x, &z); err != nil {
		return r3.Vec{}, fmt.Errorf("want x,z, got %q: %w", s, err)
	}
	return r3.Vec{X: x, Z: z}, nil
}

// demoScript walks forward, turns right, turns back and stops. With a
// second mode it strafes on the way back.
func demoScript(modes int) *movement.Script {
	back := 0
	if modes > 1 {
		back = 1
	}
	forward := r3.Vec{Z: 1}
	right := r3.Vec{X: 1}
	return movement.NewScript("demo",
		movement.Waypoint{At: time.Second, Objective: movement.Objective{Direction: forward, Moving: true}},
		movement.Waypoint{At: 5 * time.Second, Objective: movement.Objective{Direction: right, Moving: true}},
		movement.Waypoint{At: 9 * time.Second, Objective: movement.Objective{Direction: r3.Scale(-1, forward), Moving: true, Mode: back}},
		movement.Waypoint{At: 13 * time.Second, Objective: movement.Objective{Direction: forward}},
	)
}
