// Command keydiald is the Keydial Mini driver daemon. It watches BlueZ for
// the device, translates its HID-over-GATT reports into key events on a
// virtual uinput keyboard, and serves the binding control socket.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/bluez"
	"github.com/Triforcey/huion-keydial-mini-uinput/config"
	"github.com/Triforcey/huion-keydial-mini-uinput/driver"
	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
	"github.com/Triforcey/huion-keydial-mini-uinput/output"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file path (default: search standard locations)")
		socketPath  = flag.String("socket", "", "control socket path (overrides config)")
		traceEvents = flag.Bool("trace-events", false, "print key events to stdout instead of injecting them")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *socketPath != "" {
		cfg.Control.SocketPath = *socketPath
	}
	if *debug || cfg.DebugMode {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table := keybind.FromConfig(&cfg)

	var sink keydial.KeySink
	if *traceEvents {
		sink = output.NewConsole(os.Stdout)
		log.Info("trace mode: key events go to stdout, not uinput")
	} else {
		sink, err = output.NewUInput(cfg.UInput.DeviceName)
		if err != nil {
			log.Fatalf("virtual keyboard: %v (is /dev/uinput accessible?)", err)
		}
	}

	bus, err := bluez.New()
	if err != nil {
		sink.Close()
		log.Fatalf("bluetooth: %v", err)
	}

	server := keybind.NewServer(table, cfg.Control.SocketPath)
	if err := server.Start(ctx); err != nil {
		bus.Close()
		sink.Close()
		log.Fatalf("control socket: %v", err)
	}

	mgr := driver.NewManager(cfg, bus, bus, table, sink)
	mgr.Run(ctx)

	// Run returned: the context is done. Stop accepting control requests
	// first, then drop the bus, then the sink so every held key has been
	// released before the device disappears.
	server.Stop()
	if err := bus.Close(); err != nil {
		log.Debugf("bus close: %v", err)
	}
	if err := sink.Close(); err != nil {
		log.Warnf("sink close: %v", err)
	}
}
