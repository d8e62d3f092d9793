package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/config"
	"github.com/roffe/candiag/pkg/diag"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "candiag",
	Short:        "CAN bus diagnostics for J1939 nodes",
	Long:         `Scan, monitor and health-check a J1939 bus through a node reachable over HTTP or a serial console`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagPort      = "port"
	flagBaudrate  = "baudrate"
	flagDebug     = "debug"
	flagTransport = "transport"
	flagURL       = "url"
	flagProfile   = "profile"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", "*", "com-port, * = print available")
	pf.IntP(flagBaudrate, "b", 115200, "baudrate")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.StringP(flagTransport, "t", "http", "what transport to use")
	pf.StringP(flagURL, "u", "http://192.168.7.116", "node address for the http transport")
	pf.StringP(flagProfile, "c", "", "YAML run profile")
}

// loadProfile reads the profile named by --profile, or the defaults, and
// applies the flags the user set explicitly on top.
func loadProfile(cmd *cobra.Command) (*config.Profile, error) {
	pf := cmd.Flags()
	p := config.Default()
	if path, _ := pf.GetString(flagProfile); path != "" {
		var err error
		if p, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if pf.Changed(flagTransport) {
		p.Transport.Name, _ = pf.GetString(flagTransport)
	}
	if pf.Changed(flagPort) || p.Transport.Port == "" {
		p.Transport.Port, _ = pf.GetString(flagPort)
	}
	if pf.Changed(flagBaudrate) {
		p.Transport.Baudrate, _ = pf.GetInt(flagBaudrate)
	}
	if pf.Changed(flagURL) {
		p.Transport.URL, _ = pf.GetString(flagURL)
	}
	if pf.Changed(flagDebug) {
		p.Transport.Debug, _ = pf.GetBool(flagDebug)
	}
	config.Normalize(p)
	if err := config.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func onMessage(msg string) {
	log.Println(msg)
}

// openTransport creates and opens the transport named in the profile.
func openTransport(ctx context.Context, p *config.Profile) (candiag.Transport, error) {
	tr, err := candiag.NewTransport(p.Transport.Name, p.TransportConfig(onMessage))
	if err != nil {
		return nil, err
	}
	if err := tr.Open(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w", tr.Name(), err)
	}
	return tr, nil
}

// initEngine loads the profile, opens the transport and wraps it in an
// engine. Events up to info level are logged, everything when debugging.
// The caller closes the transport.
func initEngine(cmd *cobra.Command, onEvent candiag.EventHandler) (*config.Profile, candiag.Transport, *diag.Engine, error) {
	p, err := loadProfile(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	tr, err := openTransport(cmd.Context(), p)
	if err != nil {
		return nil, nil, nil, err
	}
	debug := p.Transport.Debug
	e, err := diag.New(tr, p.EngineConfig(), diag.WithEventHandler(func(ev candiag.Event) {
		if debug || ev.Type <= candiag.EventTypeInfo {
			printEvent(ev)
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}))
	if err != nil {
		tr.Close()
		return nil, nil, nil, err
	}
	return p, tr, e, nil
}
