// Command zapiclientd is a demo embedding daemon for the zapi client: it
// wires a zclient.Client to flags, structured logging, and an optional
// prometheus metrics endpoint, then runs until signaled.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openrib/zapi/internal/transport"
	"github.com/openrib/zapi/internal/wire"
	"github.com/openrib/zapi/internal/zclient"
)

var (
	sockFile             = flag.String("sock-file", transport.DefaultUnixPath, "path to the route manager's domain socket")
	network              = flag.String("network", "unix", "transport to dial: \"unix\" or \"tcp\"")
	tcpAddr              = flag.String("tcp-addr", "", "loopback address to dial in tcp mode (default 127.0.0.1:2600)")
	redistDefaultType    = flag.Int("redist-default-type", -1, "this client's own route-source type, announced via HELLO (-1 means unset)")
	defaultInformation   = flag.Bool("default-information", false, "subscribe to default-route redistribution on connect")
	redistributeTypes    = flag.String("redistribute", "", "comma-separated route-source types to subscribe to on connect")
	enableVerboseLogging = flag.Bool("v", false, "enable debug logging")
	metricsEnable        = flag.Bool("metrics-enable", false, "enable the prometheus metrics endpoint")
	metricsAddr          = flag.String("metrics-addr", "localhost:0", "address to listen on for prometheus metrics")
	versionFlag          = flag.Bool("version", false, "print build version and exit")

	// set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	flag.Parse()

	opts := &slog.HandlerOptions{}
	if *enableVerboseLogging {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	if *versionFlag {
		fmt.Printf("build: %s\n", commit)
		fmt.Printf("version: %s\n", version)
		fmt.Printf("date: %s\n", date)
		os.Exit(0)
	}

	if *metricsEnable {
		buildInfo := promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zapi_build_info",
				Help: "Build information of the zapi client daemon",
			},
			[]string{"version", "commit", "date"},
		)
		buildInfo.WithLabelValues(version, commit, date).Set(1)

		go func() {
			listener, err := net.Listen("tcp", *metricsAddr)
			if err != nil {
				slog.Error("failed to start prometheus metrics listener", "error", err)
				os.Exit(1)
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("prometheus metrics server started", "address", listener.Addr().String())
			if err := http.Serve(listener, mux); err != nil {
				slog.Error("prometheus metrics server stopped", "error", err)
			}
		}()
	}

	cfg := zclient.Config{
		Network:            networkFromFlag(*network),
		SockPath:           *sockFile,
		TCPAddr:            *tcpAddr,
		DefaultInformation: *defaultInformation,
		Logger:             logger,
	}
	if *redistDefaultType >= 0 {
		cfg.RedistDefaultSet = true
		cfg.RedistDefault = uint8(*redistDefaultType)
	}

	client, err := zclient.New(cfg)
	if err != nil {
		slog.Error("failed to construct zapi client", "error", err)
		os.Exit(1)
	}

	client.RegisterHandler(wire.CommandRouterIDUpdate, func(cmd wire.Command, c *zclient.Client, body []byte) error {
		upd, err := wire.DecodeRouterIDUpdate(body)
		if err != nil {
			return err
		}
		slog.Info("router id update", "family", upd.Family, "address", upd.Address, "prefix_len", upd.PrefixLen)
		return nil
	})
	client.RegisterHandler(wire.CommandInterfaceAdd, func(cmd wire.Command, c *zclient.Client, body []byte) error {
		ev, err := wire.DecodeInterfaceAdd(body, wire.EncodingHWAddrLen)
		if err != nil {
			return err
		}
		slog.Info("interface add", "name", ev.Name, "ifindex", ev.IfIndex, "mtu", ev.MTU)
		return nil
	})

	for _, t := range parseRouteTypes(*redistributeTypes) {
		if err := client.Redistribute(zclient.RedistAdd, t); err != nil {
			slog.Error("failed to subscribe to route type", "route_type", t, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run() }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-runErr:
		if err != nil {
			slog.Error("client run returned early", "error", err)
		}
	}

	if err := client.Close(); err != nil {
		slog.Error("error closing client", "error", err)
	}
}

func networkFromFlag(s string) transport.Network {
	if s == "tcp" {
		return transport.NetworkTCP
	}
	return transport.NetworkUnix
}

func parseRouteTypes(csv string) []uint8 {
	if csv == "" {
		return nil
	}
	var out []uint8
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				var v int
				if _, err := fmt.Sscanf(csv[start:i], "%d", &v); err == nil && v >= 0 && v <= 255 {
					out = append(out, uint8(v))
				}
			}
			start = i + 1
		}
	}
	return out
}
