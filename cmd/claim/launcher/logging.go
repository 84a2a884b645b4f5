package launcher

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// verbosityLevels maps --log.verbosity onto logrus levels.
var verbosityLevels = []logrus.Level{
	logrus.FatalLevel,
	logrus.ErrorLevel,
	logrus.WarnLevel,
	logrus.InfoLevel,
	logrus.DebugLevel,
	logrus.TraceLevel,
}

func newLogger(cfg LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.Out = out

	v := cfg.Verbosity
	if v < 0 {
		v = 0
	}
	if v >= len(verbosityLevels) {
		v = len(verbosityLevels) - 1
	}
	log.SetLevel(verbosityLevels[v])

	switch cfg.Format {
	case "", "text":
		log.Formatter = &logrus.TextFormatter{
			ForceColors:     cfg.Color,
			DisableColors:   !cfg.Color,
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		}
	case "json":
		log.Formatter = &logrus.JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry hook: %w", err)
		}
		hook.Timeout = 5 * time.Second
		log.Hooks.Add(hook)
	}
	return log, nil
}

// startMetrics serves /metrics in the background for the lifetime of the
// command. The returned function stops the server.
func startMetrics(cfg MetricsConfig, log *logrus.Entry) (func(), error) {
	if !cfg.Enable {
		return func() {}, nil
	}
	addr := net.JoinHostPort(cfg.HTTPAddr, strconv.Itoa(cfg.HTTPPort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.WithField("address", listener.Addr().String()).Info("Prometheus metrics server listening")
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
	return func() { srv.Close() }, nil
}
