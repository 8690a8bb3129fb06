package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shenjiangwei/slaballoc/internal/xlog"
	rpcpkg "github.com/shenjiangwei/slaballoc/rpc"
)

// newServeCmd stands up the rpc server, replacing the teacher's inline
// "server, _ := rpc.NewServer(); go server.Start(...)" snippet in main.go
// with a standalone subcommand. A Prometheus endpoint rides alongside it so
// the directory's allocation counters can be scraped during a bench run
// driven against the server.
func newServeCmd() *cobra.Command {
	var (
		address    string
		metricsAdr string
		maxOrder   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the allocator RPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := rpcpkg.NewServer(maxOrder)
			if err != nil {
				return fmt.Errorf("create rpc server: %w", err)
			}
			defer server.Close()

			if metricsAdr != "" {
				registry := prometheus.NewRegistry()
				for _, c := range server.Collectors() {
					registry.MustRegister(c)
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				go func() {
					xlog.Info("metrics listening on %s", metricsAdr)
					if err := http.ListenAndServe(metricsAdr, mux); err != nil {
						xlog.Error("metrics server stopped: %v", err)
					}
				}()
			}

			return server.Start(address)
		},
	}

	cmd.Flags().StringVar(&address, "address", "127.0.0.1:1234", "address to listen on for RPC connections")
	cmd.Flags().StringVar(&metricsAdr, "metrics-address", "", "if set, serve Prometheus metrics on this address")
	cmd.Flags().IntVar(&maxOrder, "max-order", defaultMaxOrder, "largest buddy order the backing arena may split to")
	return cmd
}
