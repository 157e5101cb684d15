package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelvinlab/vaporcurve/cmd/app"
	httpctrl "github.com/kelvinlab/vaporcurve/internal/controllers/http"
	modbusctrl "github.com/kelvinlab/vaporcurve/internal/controllers/modbus"
	mqttctrl "github.com/kelvinlab/vaporcurve/internal/controllers/mqtt"
	"github.com/kelvinlab/vaporcurve/internal/vapor"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	app.ApplyEnvOverrides(&cfg)

	catalog := vapor.NewCatalog(vapor.CSVSource{Path: cfg.Data.Path})
	if err := catalog.Load(); err != nil {
		log.Fatal(err)
	}
	svc := vapor.NewService(catalog, cfg.Curve.MaxSamples)
	log.Printf("vaporcurve %s: %d compounds loaded from %s", cfg.ServiceID, len(svc.Names()), cfg.Data.Path)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 3)
	controllers := 0

	if cfg.Controllers.HTTP.Enabled {
		hcfg, err := cfg.HTTPServerConfig()
		if err != nil {
			log.Fatal(err)
		}
		srv := httpctrl.New(svc, hcfg)
		controllers++
		go func() {
			log.Printf("http listening on %s", cfg.Controllers.HTTP.Addr)
			errCh <- srv.Run(ctx)
		}()
	}

	if cfg.Controllers.MQTT.Enabled {
		mcfg, err := cfg.MQTTControllerConfig()
		if err != nil {
			log.Fatal(err)
		}
		ctrl, err := mqttctrl.New(svc, mcfg)
		if err != nil {
			log.Fatal(err)
		}
		controllers++
		go func() {
			log.Print("mqtt controller running")
			errCh <- ctrl.Run(ctx)
		}()
	}

	if cfg.Controllers.MODBUS.Enabled {
		ctrl, err := modbusctrl.New(svc, cfg.ModbusControllerConfig())
		if err != nil {
			log.Fatal(err)
		}
		controllers++
		go func() {
			log.Printf("modbus listening on %s", cfg.Controllers.MODBUS.Addr)
			errCh <- ctrl.Run(ctx)
		}()
	}

	// First failure shuts everything down; drain so every controller has
	// finished before exiting.
	for i := 0; i < controllers; i++ {
		if err := <-errCh; err != nil && err != context.Canceled {
			log.Printf("controller exited: %v", err)
			cancel()
		}
	}
}
