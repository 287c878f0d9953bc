package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/pflag"

	"github.com/honeytrace/honeypot/internal/ctlclient"
	"github.com/honeytrace/honeypot/internal/lifecycle"
)

const usage = `usage: honeypotctl [flags] <start|stop|restart|status|health>

flags:
`

func main() {
	flags := pflag.NewFlagSet("honeypotctl", pflag.ExitOnError)
	addr := flags.String("addr", envOr("CONTROL_BIND_ADDR", "127.0.0.1:18080"), "control API address")
	token := flags.String("token", os.Getenv("CONTROL_TOKEN"), "bearer token for the control API")
	yes := flags.BoolP("yes", "y", false, "skip confirmation for stop and restart")
	wait := flags.Duration("wait", 0, "wait up to this long for the daemon to answer")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	client, err := ctlclient.New(*addr, *token)
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second+*wait)
	defer cancel()

	if *wait > 0 {
		waitCtx, cancelWait := context.WithTimeout(ctx, *wait)
		_, err := client.WaitReady(waitCtx)
		cancelWait()
		if err != nil {
			fail(err)
		}
	}

	switch cmd := flags.Arg(0); cmd {
	case "start":
		res, err := client.Start(ctx)
		printResult(res, err)
	case "stop":
		if !*yes && !confirm("Stop the honeypot listeners") {
			return
		}
		res, err := client.Stop(ctx)
		printResult(res, err)
	case "restart":
		if !*yes && !confirm("Restart the honeypot listeners") {
			return
		}
		res, err := client.Restart(ctx)
		printResult(res, err)
	case "status":
		st, err := client.Status(ctx)
		if err != nil {
			fail(err)
		}
		printStatus(st)
	case "health":
		h, err := client.Health(ctx)
		if err != nil {
			fail(err)
		}
		printHealth(h)
	default:
		color.Red("unknown command %q", cmd)
		flags.Usage()
		os.Exit(2)
	}
}

func confirm(label string) bool {
	prompt := promptui.Select{
		Label: label + "?",
		Items: []string{"Yes", "No"},
	}
	idx, _, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			fmt.Println("cancelled")
		}
		return false
	}
	return idx == 0
}

func printResult(res lifecycle.Result, err error) {
	if err != nil {
		fail(err)
	}
	switch res.Status {
	case lifecycle.StatusSuccess:
		color.Green("%s", res.Message)
	default:
		color.Yellow("%s", res.Message)
	}
}

func printStatus(st lifecycle.Status) {
	if st.Running {
		color.Green("%s: %s", st.Status, st.Message)
	} else {
		color.Red("%s: %s", st.Status, st.Message)
	}

	names := make([]string, 0, len(st.Services))
	for name := range st.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		svc := st.Services[name]
		state := color.RedString("inactive")
		if svc.Active {
			state = color.GreenString("active")
		}
		fmt.Printf("  %-7s port %-5d %s  %s\n", name, svc.Port, state, svc.Description)
	}
	fmt.Printf("  sessions active=%d accepted=%d\n", st.ActiveSessions, st.AcceptedTotal)
}

func printHealth(h lifecycle.Health) {
	if h.Status == "UP" {
		color.Green("health: %s", h.Status)
	} else {
		color.Yellow("health: %s", h.Status)
	}
	fmt.Printf("  honeypot %s, uptime %s, starts %d\n", h.Honeypot.Status, h.Honeypot.Uptime, h.Honeypot.StartCount)
	if !h.Honeypot.LastStarted.IsZero() {
		fmt.Printf("  last started %s\n", h.Honeypot.LastStarted.Format(time.RFC3339))
	}
	if h.Honeypot.LastError != "" {
		color.Red("  last start error: %s", h.Honeypot.LastError)
	}
	if h.RecordsError != "" {
		color.Red("  records: %s", h.RecordsError)
	} else {
		fmt.Printf("  records %d\n", h.RecordsTotal)
	}
}

func fail(err error) {
	color.Red("error: %v", err)
	os.Exit(1)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
