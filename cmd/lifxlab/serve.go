package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/lifxlab/internal/server"
	"github.com/muurk/lifxlab/internal/ui"
)

// Serve and bridges command flags
var (
	listenAddr    string
	noAdvertise   bool
	certPath      string
	keyPath       string
	staleAfter    time.Duration
	seedCached    bool
	browseTimeout time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (default from config)")
	serveCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not announce the bridge over mDNS")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (serves HTTPS with --key)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "Forget devices unseen for this long (default from config; 0 = never)")
	serveCmd.Flags().BoolVar(&seedCached, "cached", true, "Start with devices remembered in the config file")

	bridgesCmd.Flags().DurationVar(&browseTimeout, "wait", server.DefaultBrowseTimeout, "How long to listen for bridges")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bridgesCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP bridge",
	Long: `Start an HTTP bridge so other programs can discover and control lights.

The bridge exposes the same commands as the CLI under /api/invoke/{command}
and streams device events over a websocket at /api/events. It announces
itself over mDNS unless --no-advertise is given; find running bridges with
'lifxlab bridges'.`,
	Example: `  # Serve on the configured address
  lifxlab serve

  # Listen on all interfaces with TLS
  lifxlab serve --listen 0.0.0.0:8756 --cert cert.pem --key key.pem

  # Forget lights that stop answering for ten minutes
  lifxlab serve --stale-after 10m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd)
	if listenAddr != "" {
		cfg.Server.ListenAddress = listenAddr
	}
	if noAdvertise {
		cfg.Server.Advertise = false
	}
	if staleAfter > 0 {
		cfg.Discovery.StaleAfter = staleAfter
	}
	if (certPath == "") != (keyPath == "") {
		return fmt.Errorf("both --cert and --key must be provided together")
	}

	s := newStack()
	if seedCached {
		s.seedFromConfig()
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.Server.ListenAddress,
		Advertise:     cfg.Server.Advertise,
		InstanceName:  cfg.Server.InstanceName,
		CertPath:      certPath,
		KeyPath:       keyPath,
		StaleAfter:    cfg.Discovery.StaleAfter,
		PruneInterval: cfg.Discovery.PruneInterval,
	}, s.ctrl, s.hub)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	go func() {
		select {
		case <-srv.Ready():
			scheme := "http"
			if certPath != "" {
				scheme = "https"
			}
			fmt.Println(ui.NewHeader("HTTP bridge", "lifxlab serve",
				ui.Param{Key: "URL", Value: fmt.Sprintf("%s://%s", scheme, srv.Addr())},
				ui.Param{Key: "Devices", Value: fmt.Sprint(s.registry.Len())},
				ui.Param{Key: "mDNS", Value: fmt.Sprint(cfg.Server.Advertise)},
			).Render())
		case <-cmd.Context().Done():
		}
	}()

	err = srv.Run(cmd.Context())
	saveConfig()
	return err
}

var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "Find lifxlab bridges on the network",
	Long:  `Browse mDNS for HTTP bridges started with 'lifxlab serve'.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridges, err := server.Browse(cmd.Context(), browseTimeout)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd, bridges)
		}
		fmt.Println(ui.RenderBridges(bridges))
		return nil
	},
}
