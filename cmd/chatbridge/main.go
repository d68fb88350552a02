package main

import (
	"context"
	"errors"
	"flag"

	"chatbridge/lib/chatdom"
	"chatbridge/lib/configutil"
	"chatbridge/lib/serviceutil"
	"chatbridge/services/bridge"
)

type BrowserConfig struct {
	DevtoolsAddr string `json:"devtools_addr"`
	TargetURL    string `json:"target_url"`
}

type ControlConfig struct {
	Addr string `json:"addr"`
}

type Config struct {
	Browser BrowserConfig `json:"browser"`
	Control ControlConfig `json:"control"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	page, err := chatdom.Attach(ctx, chatdom.CDPOptions{
		DevtoolsAddr: cfg.Browser.DevtoolsAddr,
		TargetURL:    cfg.Browser.TargetURL,
	})
	if err != nil {
		serviceutil.Fatal("attach browser", err)
	}
	defer page.Close()

	engine := bridge.NewEngine(page, bridge.DefaultEngineOptions())
	b := bridge.New(page, engine, bridge.Options{Addr: cfg.Control.Addr})

	err = b.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		serviceutil.Fatal("run bridge", err)
	}
}
