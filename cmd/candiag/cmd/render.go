package cmd

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/report"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func printEvent(ev candiag.Event) {
	switch ev.Type {
	case candiag.EventTypeError:
		log.Println(red(ev.String()))
	case candiag.EventTypeWarning:
		log.Println(yellow(ev.String()))
	default:
		log.Println(ev.String())
	}
}

func classificationColor(c report.Classification) string {
	switch c {
	case report.Healthy:
		return green(c.String())
	case report.NoSignal, report.InvalidSignal:
		return yellow(c.String())
	default:
		return red(c.String())
	}
}

// hints lists what to check on the bus for a classification.
var hints = map[report.Classification][]string{
	report.NoSignal: {
		"check that CAN-H and CAN-L are connected and not swapped",
		"check the 120 ohm termination at both ends of the bus",
		"check that the nodes are powered and use the same bitrate",
	},
	report.InvalidSignal: {
		"error frames without valid traffic usually mean a bitrate mismatch",
		"check termination and cable length",
		"look for a node transmitting with a broken transceiver",
	},
	report.BusOff: {
		"the controller left the bus after too many transmit errors",
		"check for a short between CAN-H and CAN-L or to ground",
		"check that at least one other node acknowledges frames",
	},
	report.TransportUnreachable: {
		"check that the diagnostic node is powered and reachable",
		"check the node address or serial port and baudrate",
	},
}

func printScanResult(res *report.ScanResult) {
	switch {
	case res.Failed:
		fmt.Printf("%02X %s %v\n", res.Address, red("failed"), res.Err)
	case res.Responded:
		fmt.Printf("%02X %s in %s\n", res.Address, green("responded"), res.RoundTrip)
		for _, f := range res.Frames {
			fmt.Println("   ", f.ColorString())
		}
	default:
		fmt.Printf("%02X no response\n", res.Address)
	}
}

func printReport(r *report.Report) {
	fmt.Println(bold("CAN diagnostics report"))
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("started:        %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("duration:       %s\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("classification: %s\n", classificationColor(r.Classification))
	fmt.Printf("initial status: %s\n", r.InitialStatus)
	fmt.Printf("final status:   %s\n", r.FinalStatus)
	if r.BusOffSeen {
		fmt.Printf("bus-off seen:   %s, recoveries %d\n", red("yes"), r.Recoveries)
	}
	if r.Cancelled {
		fmt.Println(yellow("session cancelled, report is partial"))
	}

	responders := r.Responders()
	fmt.Printf("\nscanned %d addresses, %d responded\n", len(r.Scanned), len(responders))
	for _, addr := range responders {
		printScanResult(r.Scanned[addr])
	}
	for _, addr := range r.Addresses() {
		if res := r.Scanned[addr]; res.Failed {
			printScanResult(res)
		}
	}

	if len(r.PassiveFrames) > 0 {
		fmt.Printf("\n%d passive frames\n", len(r.PassiveFrames))
		for _, f := range r.PassiveFrames {
			fmt.Println("   ", f.ColorString())
		}
	}

	if len(r.Failures) > 0 {
		fmt.Println("\nfailures:")
		for _, f := range r.Failures {
			if f.Address >= 0 {
				fmt.Printf("  %-8s %02X %v\n", f.Step, f.Address, f.Err)
				continue
			}
			fmt.Printf("  %-8s    %v\n", f.Step, f.Err)
		}
	}

	if h := hints[r.Classification]; len(h) > 0 {
		fmt.Println("\ntroubleshooting:")
		for _, line := range h {
			fmt.Println("  -", line)
		}
	}
}
