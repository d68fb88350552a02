package main

import (
	"context"
	"log/slog"
	"os"

	"chatbridge/lib/chatdom"
	"chatbridge/lib/restyutil"
	"chatbridge/lib/serviceutil"
	"chatbridge/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
		chatdom.SetRestyInstrumentOutput(
			restyutil.NewFilesystemOutput(".dev/resty/devtools"),
		)
	}

	tel, err := telemetry.SetupFromEnv(ctx, "chatbridge")
	if os.IsNotExist(err) {
		slog.DebugContext(ctx, "no telemetry.json5 in scope, tracing disabled")
		return
	}
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		tel.Shutdown(context.Background())
	}()
}
