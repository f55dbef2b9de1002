package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/robotalks/nvreg/pkg/config"
	"github.com/robotalks/nvreg/pkg/device"
	fx "github.com/robotalks/nvreg/pkg/framework"
	"github.com/robotalks/nvreg/pkg/hal"
	"github.com/robotalks/nvreg/pkg/hal/sim"
	"github.com/robotalks/nvreg/pkg/hal/uart"
	"github.com/robotalks/nvreg/pkg/l0/comm"
	"github.com/robotalks/nvreg/pkg/nvstore"
)

var (
	configPath string
	portName   string
	flashDir   string
)

func init() {
	if val := os.Getenv("NVREG_CONFIG"); val != "" {
		configPath = val
	}
	if val := os.Getenv("NVREG_PORT"); val != "" {
		portName = val
	}
	flag.StringVar(&configPath, "config", configPath, "Configuration file (YAML).")
	flag.StringVar(&portName, "port", portName, "Serial port, overrides serial.port.")
	flag.StringVar(&flashDir, "flash-dir", flashDir, "Directory of flash images, overrides flash.dir.")
}

func loadConfig() *config.Config {
	cfg := &config.Config{}
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			glog.Fatalf("config load failed: %v", err)
		}
	}
	if portName != "" {
		cfg.Serial.Port = portName
	}
	if flashDir != "" {
		cfg.Flash.Dir = flashDir
	}
	if err := config.Validate(cfg); err != nil {
		glog.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)
	if cfg.Serial.Port == "" {
		glog.Fatal("serial port required (-port or serial.port)")
	}
	return cfg
}

func openPeripherals(cfg *config.Config) (hal.Peripherals, *uart.Port) {
	fs := afero.NewOsFs()
	if cfg.Flash.Dir != "" {
		if err := fs.MkdirAll(cfg.Flash.Dir, 0755); err != nil {
			glog.Fatalf("flash dir: %v", err)
		}
	}
	flash, err := sim.NewFlash(fs,
		&sim.Bank{Name: "factory", Base: cfg.Flash.FactoryBase, Size: nvstore.BankSize, Path: cfg.Flash.FactoryImage},
		&sim.Bank{Name: "config", Base: cfg.Flash.ConfigBase, Size: nvstore.BankSize, Path: cfg.Flash.ConfigImage},
	)
	if err != nil {
		glog.Fatalf("flash init failed: %v", err)
	}
	flash.BusyPolls = cfg.Flash.BusyPolls

	port, err := uart.Open(uart.Config{
		Device:      cfg.Serial.Port,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout(),
	})
	if err != nil {
		glog.Fatalf("open %s failed: %v", cfg.Serial.Port, err)
	}
	return hal.Peripherals{Flash: flash, LED: &sim.Pin{Name: "led"}, Serial: port}, port
}

// serialLink closes the port on shutdown so a pending read returns.
type serialLink struct {
	*comm.Link
	port io.Closer
}

func (l *serialLink) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, l.port, func() error {
		return l.Link.Run(ctx)
	})
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := loadConfig()
	periph, port := openPeripherals(cfg)

	store := nvstore.New(periph.Flash,
		nvstore.WithBanks(cfg.Flash.FactoryBase, cfg.Flash.ConfigBase),
		nvstore.WithFlashTimeout(cfg.Flash.Timeout()))
	if src := store.Load(); src != nvstore.SourceConfig {
		glog.Warningf("no committed configuration, using %s", src)
	}

	link := comm.NewLink(periph.Serial)
	dev := device.New(store, link, periph.LED)
	dev.BlinkInterval = cfg.Loop.Blink()

	loop := fx.NewLoop().Add(dev)
	loop.Interval = cfg.Loop.Interval()
	link.OnReceive = loop.TriggerNext

	glog.Infof("serving registers on %s (%d baud)", cfg.Serial.Port, cfg.Serial.Baud)
	runner := fx.NewRunner().HandleSignals()
	runner.Go(loop, &serialLink{Link: link, port: port})
	if err := runner.Wait(); err != nil {
		glog.Errorf("stopped: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}
