package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/t77yq/txservice/internal/rpcproxy"
)

func newProxyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "proxy",
		Short: "Serve an ethereum compatible JSON-RPC endpoint in front of an XDC node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			proxy, err := rpcproxy.New(rpcproxy.Config{
				Target:       cfg.Proxy.TargetURL,
				Debug:        cfg.Proxy.Debug,
				MaxBodyBytes: cfg.Proxy.MaxBodyBytes,
			}, logger)
			if err != nil {
				return err
			}

			addr := cfg.Proxy.ListenAddr
			if port := os.Getenv("PORT"); port != "" {
				addr = ":" + port
			}

			serveHTTP(ctx, &http.Server{Addr: addr, Handler: rpcproxy.NewRouter(proxy)}, logger.Named("proxy"))
			<-ctx.Done()
			return nil
		},
	}
}
