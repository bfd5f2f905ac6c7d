package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/mastercactapus/probeguard/config"
	"github.com/mastercactapus/probeguard/coord"
	"github.com/mastercactapus/probeguard/firmware"
	"github.com/mastercactapus/probeguard/ioport"
	"github.com/mastercactapus/probeguard/machine"
	"github.com/mastercactapus/probeguard/machine/grbl"
	"github.com/mastercactapus/probeguard/nvs"
	"github.com/mastercactapus/probeguard/protect"
	"github.com/mastercactapus/probeguard/report"
	"github.com/mastercactapus/probeguard/spjs"
	"github.com/tarm/serial"
)

func main() {
	log.SetFlags(log.Lshortfile)

	cfgPath := flag.String("config", "", "Path of the YAML config file. Defaults are used if empty.")
	addr := flag.String("addr", "", "Address to bind the HTTP server to (overrides http.addr).")
	port := flag.String("port", "", "Serial port path, or name if using SPJS (overrides controller.port).")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *port != "" {
		cfg.Controller.Port = *port
		cfg.Controller.SPJSPort = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ports, err := openInputs(cfg.Inputs)
	if err != nil {
		log.Fatal(err)
	}
	store, err := openStore(cfg.NVS)
	if err != nil {
		log.Fatal(err)
	}

	hub := report.NewHub(cfg.Events.Backlog)
	go hub.Run(ctx)

	adapter, err := openAdapter(cfg.Controller)
	if err != nil {
		log.Fatal(err)
	}
	go func() {
		for line := range adapter.Messages() {
			fmt.Fprintln(hub, line)
		}
	}()

	m := machine.NewMachine(adapter, 0)
	go m.Run(ctx)

	// bring grbl in line with the configured probe input before anything
	// else is sent
	m.ConfigureProbe(cfg.Probe.Invert)
	m.EnableHardLimits(cfg.Probe.HardLimits)

	c := firmware.NewController(controllerConfig(cfg), firmware.NewSettings(cfg.Probe.Invert, cfg.Probe.HardLimits), m, hub, hub)
	s := protect.Init(protect.Env{
		Hooks:    c.Hooks,
		Settings: c.Settings,
		Ports:    ports,
		Store:    store,
		Limits:   c,
		Realtime: c,
		Messages: hub,
		Registry: c,
		Stream:   hub,
		Debounce: cfg.Probe.Debounce(),
	})
	c.Boot()

	go func() {
		err := c.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Println("ERROR: controller:", err)
		}
	}()
	for _, line := range cfg.Controller.Startup {
		err := c.Exec(ctx, line)
		if err != nil {
			log.Printf("ERROR: startup line '%s': %+v", line, err)
		}
	}

	api := newAPI(ctx, c, s, adapter, hub, ports)

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "*")
			log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
			api.ServeHTTP(w, req)
		}),
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Println("listening on", cfg.HTTP.Addr)
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	if f, ok := store.(*nvs.File); ok {
		f.Close()
	}
	if p, ok := ports.(*ioport.Periph); ok {
		err = p.Close()
		if err != nil {
			log.Println("ERROR: release inputs:", err)
		}
	}
}

func openInputs(cfg config.InputsConfig) (firmware.Ports, error) {
	switch cfg.Driver {
	case config.DriverPeriph:
		p, err := ioport.NewPeriph(cfg.Pins)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return ioport.NewSim(cfg.Count), nil
	}
}

func openStore(cfg config.NVSConfig) (nvs.Store, error) {
	if cfg.Path == "" {
		log.Println("settings are kept in memory only")
		return nvs.NewMemory(cfg.Size), nil
	}
	f, err := nvs.OpenFile(cfg.Path, cfg.Size)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func openAdapter(cfg config.ControllerConfig) (machine.Adapter, error) {
	switch cfg.Adapter {
	case config.AdapterSPJS:
		sp := spjs.NewSPJS(cfg.SPJS)
		return grbl.NewSPJSAdapter(sp, cfg.SPJSPort, cfg.Baud), nil
	default:
		p, err := serial.OpenPort(&serial.Config{Name: cfg.Port, Baud: cfg.Baud})
		if err != nil {
			return nil, fmt.Errorf("open serial port '%s': %w", cfg.Port, err)
		}
		return grbl.NewSerialAdapter(p), nil
	}
}

func controllerConfig(cfg *config.Config) firmware.Config {
	fc := firmware.Config{QueueSize: cfg.Controller.QueueSize}
	if tc := cfg.ToolChange; tc != nil {
		fc.ToolChange = &firmware.ToolChangeConfig{
			ProbePos:     coord.Point{X: tc.Position.X, Y: tc.Position.Y, Z: tc.Position.Z},
			TravelHeight: tc.TravelHeight,
			FeedRate:     tc.FeedRate,
			MaxTravel:    tc.MaxTravel,
			Radius:       tc.Radius,
		}
	}
	return fc
}
