// File: cmd/tsignal/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Command tsignal is a small operator CLI over the facade: run the
// stock-monitor worked example, dump/load config, and print build info.

package main

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/momentics/tsignal-go/adapters"
	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/examples/stockmonitor"
	"github.com/momentics/tsignal-go/facade"
	"github.com/momentics/tsignal-go/internal/obslog"
)

func mustGet(ctx api.Context, key string) any {
	v, _ := ctx.Get(key)
	return v
}

var opts struct {
	Demo struct {
		Duration time.Duration `default:"10s" help:"How long to run the stock-monitor demo before shutting down"`
	} `cmd:"" help:"Runs the stock-monitor worked example until interrupted or the duration elapses"`

	Config struct {
		Dump struct {
		} `cmd:"" help:"Prints the current config store as YAML"`
		Load struct {
			File string `arg:"" help:"YAML file to merge into the config store"`
		} `cmd:"" help:"Loads a YAML file into the config store and prints the result"`
	} `cmd:"" help:"Config store inspection commands"`

	Version struct {
	} `cmd:"" help:"Prints build and instance info"`
}

func main() {
	cliCtx := kong.Parse(&opts,
		kong.Name("tsignal"),
		kong.Description("Operator CLI for the tsignal-go dispatcher"))

	var err error
	switch cliCtx.Command() {
	case "demo":
		err = runDemo(opts.Demo.Duration)
	case "config dump":
		err = configDump()
	case "config load <file>":
		err = configLoad(opts.Config.Load.File)
	case "version":
		printVersion()
	default:
		err = fmt.Errorf("unknown command: %s", cliCtx.Command())
	}
	if err != nil {
		obslog.Log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func runDemo(duration time.Duration) error {
	app := facade.New(facade.Config{})
	defer app.Shutdown(time.Second)

	runCtx := app.ContextFactory().NewContext()
	runCtx.Set("run_id", fmt.Sprintf("demo-%d", time.Now().UnixNano()), true)
	app.Control().SetMetric("demo.run_id", mustGet(runCtx, "run_id"))

	logrus.Infof("starting stock-monitor demo %s for %s (Ctrl-C to stop early)", mustGet(runCtx, "run_id"), duration)

	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("interrupt received, shutting down demo")
		cancel()
	}()

	d := stockmonitor.NewDemo()
	if err := d.Run(ctx); err != nil {
		return err
	}

	for code, price := range d.ViewModel.CurrentPrices() {
		fmt.Printf("%s $%.2f (%+.2f%%)\n", code, price.Price, price.Change)
	}
	for _, a := range d.ViewModel.Alerts() {
		fmt.Printf("alert: %s %s $%.2f\n", a.Code, a.Kind, a.Price)
	}
	return nil
}

func configDump() error {
	ca := adapters.NewControlAdapter().(*adapters.ControlAdapter)
	out, err := ca.DumpYAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func configLoad(path string) error {
	ca := adapters.NewControlAdapter().(*adapters.ControlAdapter)
	if err := ca.LoadYAMLFile(path); err != nil {
		return err
	}
	out, err := ca.DumpYAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func printVersion() {
	app := facade.New(facade.Config{})
	defer app.Shutdown(time.Second)
	info := app.Info()
	fmt.Printf("%s %s (instance %s, started %s)\n", info.Name, info.Version, info.InstanceID, info.StartedAt.Format(time.RFC3339))
}
