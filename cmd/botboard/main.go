package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"botboard/internal/config"
	"botboard/internal/engine"
	"botboard/internal/tui"

	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.botboard/config.toml)")
	backendFlag := flag.String("backend", "", "backend base URL (overrides config)")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = config.Path()
	}

	app := fx.New(
		engine.Module(engine.Params{
			ConfigPath: configPath,
			BackendURL: *backendFlag,
		}),
		fx.Provide(tui.NewApp),
		fx.Invoke(runConsole),
		fx.NopLogger,
	)

	app.Run()

	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runConsole ties the TUI to the fx lifecycle: the app exits when the
// console does.
func runConsole(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *tui.App) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := app.Run(); err != nil {
					fmt.Fprintf(os.Stderr, "console error: %v\n", err)
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			return nil
		},
	})
}
