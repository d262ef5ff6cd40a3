package servercli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hdt3213/pdis/config"
	"github.com/hdt3213/pdis/database"
	"github.com/hdt3213/pdis/gnet"
	"github.com/hdt3213/pdis/lib/logger"
	"github.com/hdt3213/pdis/lib/metrics"
	"github.com/hdt3213/pdis/lib/sync/shutdown"
	RedisServer "github.com/hdt3213/pdis/redis/server"
	"github.com/hdt3213/pdis/tcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var banner = `
    ____       ___
   / __ \ ____/ (_)____
  / /_/ // __  / / ___/
 / ____// /_/ / (__  )
/_/     \__,_/_/____/
`

var configFile string

// flags overriding the config file, by config key
var overrideFlags = map[string]string{
	"bind":         "listen address",
	"dir":          "data directory holding the engine files and the RDB dump",
	"engine":       "storage engine: badger or bolt",
	"transport":    "network transport: tcp or gnet",
	"loglevel":     "debug, info, warn or error",
	"logdir":       "write rotated log files into this directory",
	"metrics-addr": "serve prometheus metrics on this address, e.g. :9121",
}

var rootCmd = &cobra.Command{
	Use:   "pdis",
	Short: "pdis is a redis compatible key value server persisting its data on disk.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return StartServer(configFile, collectOverrides(cmd))
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file in redis.conf or yaml format, defaults to ./"+config.DefaultConfPath+" if present")
	for name, usage := range overrideFlags {
		flags.String(name, "", usage)
	}
	flags.IntP("port", "p", 0, "listen port")
	flags.Int("maxclients", 0, "max number of connected clients, 0 means unlimited")
	flags.Int("queue-size", 0, "max number of commands waiting for the store")
}

// collectOverrides returns the flags given on the command line
func collectOverrides(cmd *cobra.Command) map[string]any {
	overrides := make(map[string]any)
	flags := cmd.Flags()
	for name := range overrideFlags {
		if flags.Changed(name) {
			overrides[name], _ = flags.GetString(name)
		}
	}
	for _, name := range []string{"port", "maxclients", "queue-size"} {
		if flags.Changed(name) {
			overrides[name], _ = flags.GetInt(name)
		}
	}
	return overrides
}

// AddCommand add command into Cli
func AddCommand(cmdline *cobra.Command) {
	rootCmd.AddCommand(cmdline)
}

// Execute runs the command line
func Execute() error {
	return rootCmd.Execute()
}

func setupLogger(props *config.ServerProperties) error {
	level, err := logger.ParseLevel(props.LogLevel)
	if err != nil {
		return err
	}
	if props.LogDir == "" {
		logger.SetLevel(level)
		return nil
	}
	logger.Setup(&logger.Settings{
		Path:       props.LogDir,
		Name:       "pdis",
		Ext:        "log",
		TimeFormat: "2006-01-02",
		Level:      props.LogLevel,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	})
	return nil
}

// StartServer loads the config and serves until a stop signal arrives
func StartServer(cf string, overrides map[string]any) error {
	if err := config.Setup(cf, overrides); err != nil {
		return err
	}
	props := config.Properties
	print(banner)
	if err := setupLogger(props); err != nil {
		return err
	}
	defer logger.Sync()
	if props.CfPath != "" {
		logger.Infof("config loaded from %s", props.CfPath)
	}

	db, err := database.OpenDB(props)
	if err != nil {
		logger.Errorf("open %s store at %s failed: %v", props.Engine, props.EngineDir(), err)
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Errorf("close store failed: %v", err)
		}
	}()
	worker := database.NewWorker(db, props.QueueSize)

	sig := shutdown.New()
	stopSignals := tcp.NotifySignals(sig)
	defer stopSignals()

	var g errgroup.Group
	if props.MetricsAddr != "" {
		serveMetrics(&g, props.MetricsAddr, sig)
	}
	g.Go(func() error {
		defer sig.Shutdown()
		return serve(props, worker, sig)
	})
	if err := g.Wait(); err != nil {
		logger.Errorf("server stopped: %v", err)
		return err
	}
	logger.Info("bye")
	return nil
}

func serve(props *config.ServerProperties, worker *database.Worker, sig *shutdown.Signal) error {
	switch props.Transport {
	case "gnet":
		logger.Infof("bind: %s, start gnet event loops...", props.Address())
		return gnet.ListenAndServe(props.Address(), worker, sig)
	default:
		listener, err := net.Listen("tcp", props.Address())
		if err != nil {
			return err
		}
		logger.Infof("bind: %s, start listening...", listener.Addr())
		return RedisServer.Serve(listener, worker, sig)
	}
}

func serveMetrics(g *errgroup.Group, addr string, sig *shutdown.Signal) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Infof("metrics available on http://%s/metrics", addr)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		sig.Shutdown()
		return err
	})
	g.Go(func() error {
		<-sig.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}
