// cornerknockctl is the control CLI for cornerknockd.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cornerknock/internal/config"
	"cornerknock/internal/ipc"
	"cornerknock/internal/store"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath(), "path to config file")
	socketPath = flag.String("socket", "", "IPC socket path (overrides config)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "enable":
		cmdEnable(true)
	case "disable":
		cmdEnable(false)
	case "reload":
		cmdReload()
	case "watch":
		cmdWatch()
	case "inject":
		cmdInject(flag.Args()[1:])
	case "export":
		output := ""
		if flag.NArg() >= 2 {
			output = flag.Arg(1)
		}
		cmdExport(output)
	case "verify":
		cmdVerify()
	case "validate":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: cornerknockctl validate <report.json>")
			os.Exit(1)
		}
		cmdValidate(flag.Arg(1))
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `cornerknockctl - Control utility for cornerknockd

Usage: cornerknockctl [options] <command> [args]

Commands:
  status                      Show daemon status
  enable                      Enable the gesture recognizer
  disable                     Disable the gesture recognizer
  reload                      Reload the daemon configuration file
  watch                       Stream match events until interrupted
  inject <kind> <x> <y>       Inject a pointer event (down, move, up, cancel)
  export [output.json]        Export the audit report
  verify                      Verify the audit chain
  validate <report.json>      Validate an exported report against the schema
  help                        Show this help message

Options:
  -config <path>  Path to config file
  -socket <path>  IPC socket path (overrides config)`)
}

func dial() *ipc.Client {
	socket := *socketPath
	if socket == "" {
		loader := config.NewLoader(*configPath)
		cfg, err := loader.Load()
		if err != nil {
			// Fall back to the default socket when no config is readable.
			cfg = config.DefaultConfig()
		}
		socket = cfg.IPC.SocketPath
	}

	client, err := ipc.NewClient(ipc.ClientConfig{SocketPath: socket})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Is cornerknockd running? (socket: %s)\n", socket)
		os.Exit(1)
	}
	return client
}

func cmdStatus() {
	client := dial()
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		fatal(err)
	}

	fmt.Println("=== cornerknockd Status ===")
	fmt.Printf("Version:        %s\n", status.Version)
	fmt.Printf("Started:        %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Printf("Uptime:         %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
	fmt.Printf("Recognizer:     %s\n", enabledWord(status.Enabled))
	fmt.Printf("Armed:          %v\n", status.Armed)
	fmt.Printf("Candidate:      %s\n", orNone(status.Candidate))
	fmt.Printf("Sequences:      %d configured\n", status.Sequences)
	fmt.Printf("Matches:        %d since start\n", status.MatchCount)
	fmt.Printf("Audit store:    %s\n", enabledWord(status.StoreEnabled))
	fmt.Printf("Subscribers:    %d\n", status.Subscribers)
}

func cmdEnable(enabled bool) {
	client := dial()
	defer client.Close()

	resp, err := client.SetEnabled(enabled)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Recognizer %s\n", enabledWord(resp.Enabled))
}

func cmdReload() {
	client := dial()
	defer client.Close()

	resp, err := client.ReloadConfig()
	if err != nil {
		fatal(err)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Reload failed: %s\n", resp.Error)
		os.Exit(1)
	}
	fmt.Println("Configuration reloaded")
}

func cmdWatch() {
	client := dial()
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Watching for knock sequences (Ctrl-C to stop)...")
	err := client.Watch(ctx, func(ev ipc.MatchEvent) {
		fmt.Printf("%s  %s  (source: %s)\n",
			ev.Timestamp.Format(time.RFC3339), ev.Sequence, ev.Source)
	})
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

func cmdInject(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: cornerknockctl inject <kind> <x> <y>")
		os.Exit(1)
	}
	x, errX := strconv.Atoi(args[1])
	y, errY := strconv.Atoi(args[2])
	if errX != nil || errY != nil {
		fmt.Fprintln(os.Stderr, "inject: coordinates must be integers")
		os.Exit(1)
	}

	client := dial()
	defer client.Close()

	resp, err := client.Inject(args[0], x, y)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Consumed: %v  Candidate: %s\n", resp.Consumed, orNone(resp.Candidate))
}

func cmdExport(output string) {
	client := dial()
	defer client.Close()

	report, err := client.ExportReport()
	if err != nil {
		fatal(err)
	}

	if output == "" {
		fmt.Println(string(report))
		return
	}
	if err := os.WriteFile(output, report, 0600); err != nil {
		fatal(err)
	}
	fmt.Printf("Audit report written to %s\n", output)
}

func cmdVerify() {
	client := dial()
	defer client.Close()

	resp, err := client.VerifyChain()
	if err != nil {
		fatal(err)
	}
	if resp.Valid {
		fmt.Printf("Audit chain OK (%d records)\n", resp.Records)
		return
	}
	fmt.Fprintf(os.Stderr, "Audit chain BROKEN: %s\n", resp.Error)
	os.Exit(1)
}

func cmdValidate(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}
	if err := store.ValidateReport(data); err != nil {
		fmt.Fprintf(os.Stderr, "Report invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Report valid")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
