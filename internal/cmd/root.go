// Package cmd implements puttle's command-line interface: flag parsing,
// config-file/flag merging, and the accept loop that binds incoming
// connections to the executor pool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/puttle-proxy/puttle/internal/clog"
	"github.com/puttle-proxy/puttle/internal/config"
	"github.com/puttle-proxy/puttle/internal/executor"
	"github.com/puttle-proxy/puttle/internal/puttleproxy"
	"github.com/puttle-proxy/puttle/internal/stats"
	"github.com/puttle-proxy/puttle/internal/term"
	"github.com/puttle-proxy/puttle/internal/version"
)

var (
	numThreadsFlag int
	listenPortFlag int
	proxyFlags     []string
	configFileFlag string
	verbosityFlag  string
	dialTTLFlag    int
)

var rootCmd = &cobra.Command{
	Use:   "puttle",
	Short: "Transparent CONNECT-tunneling proxy",
	Long: `puttle accepts transparently redirected TCP connections, recovers their
original destination via the kernel's SO_ORIGINAL_DST facility, and
forwards them through one or more authenticating upstream HTTP proxies
using the CONNECT tunnel method.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().IntVarP(&numThreadsFlag, "num-threads", "n", 0, "reactor pool size (default 2)")
	rootCmd.Flags().IntVarP(&listenPortFlag, "listen-port", "l", 0, "local bind port (default 8888)")
	rootCmd.Flags().StringArrayVarP(&proxyFlags, "proxy", "p", nil, "upstream proxy URL (repeatable, required)")
	rootCmd.Flags().StringVarP(&configFileFlag, "config-file", "c", "", "path to a key=value config file")
	rootCmd.Flags().StringVarP(&verbosityFlag, "verbosity", "v", "", "log level (EMERG..DEBUG, default INFO)")
	rootCmd.Flags().IntVarP(&dialTTLFlag, "dial-ttl", "t", 0, "IP TTL set on upstream sockets (default 42)")
}

// Execute runs the root command and returns any error, wrapping
// configuration and startup failures in an ExitCodeError(1).
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitCodeError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		return NewExitCodeError(1)
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	flags := &config.Config{
		NumThreads: numThreadsFlag,
		ListenPort: listenPortFlag,
		Proxies:    proxyFlags,
		Verbosity:  verbosityFlag,
		DialTTL:    dialTTLFlag,
	}

	var fileCfg *config.Config
	if configFileFlag != "" {
		loaded, err := config.LoadFile(configFileFlag)
		if err != nil {
			term.Error("%v", err)
			return NewExitCodeError(1)
		}
		fileCfg = loaded
	}

	cfg := config.Merge(config.Defaults(), fileCfg, flags)
	if err := config.Validate(cfg); err != nil {
		term.Error("%v", err)
		return NewExitCodeError(1)
	}

	if err := clog.Configure(clog.DefaultLogPath(), clog.ParseLevel(cfg.Verbosity), false); err != nil {
		term.Warn("failed to configure logging: %v", err)
	}
	defer func() { _ = clog.Close() }()

	upstreams := make([]puttleproxy.Upstream, 0, len(cfg.Proxies))
	for _, raw := range cfg.Proxies {
		up, err := puttleproxy.ParseUpstream(raw)
		if err != nil {
			term.Error("proxy %q: %v", raw, err)
			return NewExitCodeError(1)
		}
		upstreams = append(upstreams, up)
	}

	addr := fmt.Sprintf(":%d", cfg.ListenPort)
	lis, err := net.Listen("tcp4", addr)
	if err != nil {
		term.Error("listen on %s: %v", addr, err)
		return NewExitCodeError(1)
	}
	clog.Notice("listening on %s with %d reactors and %d upstreams", addr, cfg.NumThreads, len(upstreams))

	pool := executor.NewPool(cfg.NumThreads, upstreams, cfg.DialTTL)

	statsCtx, cancelStats := context.WithCancel(context.Background())
	statsWriter := &stats.Writer{Path: stats.DefaultPath(), Interval: time.Minute, Pool: pool}
	go statsWriter.Run(statsCtx)

	acceptDone := make(chan struct{})
	go acceptLoop(lis, pool, acceptDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	clog.Notice("shutting down")
	_ = lis.Close()
	cancelStats()
	<-acceptDone

	return nil
}

// acceptLoop accepts connections until lis is closed, dispatching each to
// the pool. It never tears itself down on a transient accept error.
func acceptLoop(lis net.Listener, pool *executor.Pool, done chan<- struct{}) {
	defer close(done)
	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			clog.Error("accept: %v", err)
			continue
		}
		pool.Dispatch(conn)
	}
}
