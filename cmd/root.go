// cmd/root.go
package cmd

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtschedsim/rtschedsim/internal/audit"
	"github.com/rtschedsim/rtschedsim/internal/engine"
	"github.com/rtschedsim/rtschedsim/internal/eventbus"
	"github.com/rtschedsim/rtschedsim/internal/metrics"
	"github.com/rtschedsim/rtschedsim/internal/model"
	"github.com/rtschedsim/rtschedsim/internal/simerr"
	"github.com/rtschedsim/rtschedsim/internal/trace"
)

var (
	modelPath     string
	modelFormat   string
	logLevel      string
	traceOut      string
	metricsOut    string
	auditOut      string
	prometheusOut string
)

var rootCmd = &cobra.Command{
	Use:   "rtschedsim",
	Short: "Discrete-event simulator for real-time scheduling on heterogeneous multi-core platforms",
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Build and run a model document to completion",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		m := mustLoadModel()

		bus := eventbus.New()
		w := trace.NewWriter()
		bus.Subscribe(w)

		e := engine.New()
		logrus.Infof("build: loading model %s", modelPath)
		if err := e.Build(m, bus); err != nil {
			exitWithErr(err)
		}

		logrus.Info("run: starting simulation")
		if err := e.Run(); err != nil {
			exitWithErr(err)
		}
		logrus.Infof("run: complete at clock=%.3f", e.Clock())

		events := w.Events()
		coreIDs := make([]string, len(m.Platform.Cores))
		for i, c := range m.Platform.Cores {
			coreIDs[i] = c.ID
		}

		if traceOut != "" {
			writeFile(traceOut, func(f *os.File) error { return w.Flush(f) })
		}
		if metricsOut != "" || prometheusOut != "" {
			doc := metrics.Compute(e.Jobs(), events, coreIDs, m.Sim.Duration)
			if metricsOut != "" {
				writeJSON(metricsOut, doc)
			}
			if prometheusOut != "" {
				writePrometheus(prometheusOut, doc)
			}
		}
		if auditOut != "" {
			report := audit.Run(events, e.Jobs())
			writeJSON(auditOut, report)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and semantically validate a model document, without running it",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		mustLoadModel()
		logrus.Info("validate: model document is semantically valid")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	for _, c := range []*cobra.Command{simulateCmd, validateCmd} {
		c.Flags().StringVar(&modelPath, "model", "", "path to the model document (required)")
		c.Flags().StringVar(&modelFormat, "format", "", "model document format: yaml or json (default: sniffed)")
		c.Flags().StringVar(&logLevel, "log", "info", "log level (debug, info, warn, error)")
		_ = c.MarkFlagRequired("model")
	}
	simulateCmd.Flags().StringVar(&traceOut, "trace-out", "", "path to write the NDJSON event trace")
	simulateCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "path to write the metrics JSON document")
	simulateCmd.Flags().StringVar(&auditOut, "audit-out", "", "path to write the audit JSON report")
	simulateCmd.Flags().StringVar(&prometheusOut, "prometheus-out", "", "path to write the metrics summary in Prometheus text exposition format")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(validateCmd)
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// mustLoadModel reads and semantically validates modelPath, exiting with
// the appropriate spec §7 exit code on any failure.
func mustLoadModel() *model.Model {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		logrus.Errorf("reading model document: %v", err)
		os.Exit(1)
	}
	m, err := model.Load(data, modelFormat)
	if err != nil {
		exitWithErr(err)
	}
	if err := model.Validate(m); err != nil {
		exitWithErr(err)
	}
	return m
}

// exitWithErr logs err and exits with the code its simerr.Error class
// maps to (spec §7), or 1 for an error outside the taxonomy.
func exitWithErr(err error) {
	logrus.Error(err)
	var se *simerr.Error
	if errors.As(err, &se) {
		os.Exit(se.Class.ExitCode())
	}
	os.Exit(1)
}

func writeFile(path string, write func(*os.File) error) {
	f, err := os.Create(path)
	if err != nil {
		logrus.Errorf("creating %s: %v", path, err)
		os.Exit(2)
	}
	defer f.Close()
	if err := write(f); err != nil {
		logrus.Errorf("writing %s: %v", path, err)
		os.Exit(2)
	}
}

func writeJSON(path string, v any) {
	writeFile(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// writePrometheus registers doc's summary counters on a private registry
// (spec §10.7) and writes them in Prometheus text exposition format by
// invoking the same promhttp.Handler a long-running service would mount
// at /metrics, against a recorder instead of a live listener — so a
// one-shot batch run's metrics can be scraped or fed to promtool without
// standing up an HTTP endpoint.
func writePrometheus(path string, doc *metrics.Document) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(doc))

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		logrus.Errorf("gathering prometheus metrics: handler returned status %d", rec.Code)
		os.Exit(2)
	}
	writeFile(path, func(f *os.File) error {
		_, err := f.Write(rec.Body.Bytes())
		return err
	})
}
