// Command loopbackctl is a developer tool for inspecting and controlling a
// running loopback-mixerd instance, either as a one-shot status dump or an
// interactive console.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", "http://127.0.0.1:8787", "loopback-mixerd HTTP control address")
	statusOnly := pflag.BoolP("status", "s", false, "Print a single status snapshot and exit")
	pflag.Parse()

	client := newStatusClient(*addr)

	if *statusOnly {
		printStatus(client)
		return
	}

	p := tea.NewProgram(newModel(client))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "loopbackctl: %v\n", err)
		os.Exit(1)
	}
}

func printStatus(client *statusClient) {
	status, err := client.fetchStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Sample Rate : %d Hz\n", status.SampleRate)
	fmt.Printf("Buffer Size : %d frames\n", status.BufferFrames)
	fmt.Printf("Latency     : %.2f ms\n", status.LatencyMS)
	fmt.Printf("Buffer Fill : %.1f%%\n", status.BufferFill*100)
	fmt.Printf("Drift       : %.1f ppm\n", status.DriftPPM)
	fmt.Println("Sources:")
	for _, s := range status.Sources {
		fmt.Printf("  [%d] %s | gain=%.1f dB | mute=%s | rms=%.2f | latency=%d frames | fill=%.1f%% | drift=%.1f ppm\n",
			s.ID, s.Name, s.GainDB, yesNo(s.Muted), s.RMS, s.LatencyFrames, s.BufferFill*100, s.DriftPPM)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
