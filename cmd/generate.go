package cmd

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hammer/pkg/config"
	"hammer/pkg/ingest"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "generate random metrics into a sink",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
			log.SetLevel(lvl)
		}

		log.Infof("batchLimit : %+v", cfg.BatchLimit)
		log.Infof("batchSize : %+v. setSize : %+v", cfg.BatchSize, cfg.SetSize)
		log.Infof("sleep : %+v", cfg.SleepInterval)
		log.Infof("value : %+v", cfg.MaxValue)
		log.Infof("tags : %+v", cfg.Tags)
		log.Infof("processCount : %+v", cfg.ProcessCount)
		log.Infof("sink : %+v. dest : %+v", cfg.Sink.Kind, cfg.Sink.Address)

		if err := ingest.StartGeneration(cmd.Context(), cfg, os.Stdout); err != nil {
			log.Fatalf("Generation failed: %v", err)
		}
	},
}

// loadConfig reads the config file if one is given and applies the flags
// that were set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if flags.Changed("batchLimit") {
		cfg.BatchLimit, _ = flags.GetUint64("batchLimit")
	}
	if flags.Changed("batchSize") {
		cfg.BatchSize, _ = flags.GetInt("batchSize")
	}
	if flags.Changed("setSize") {
		cfg.SetSize, _ = flags.GetInt("setSize")
	}
	if flags.Changed("sleep") {
		d, _ := flags.GetDuration("sleep")
		cfg.SleepInterval = config.Duration(d)
	}
	if flags.Changed("value") {
		cfg.MaxValue, _ = flags.GetInt64("value")
	}
	if flags.Changed("tags") {
		cfg.Tags, _ = flags.GetStringSlice("tags")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint32("seed")
	}
	if flags.Changed("hostname") {
		cfg.Hostname, _ = flags.GetString("hostname")
	}
	if flags.Changed("processCount") {
		cfg.ProcessCount, _ = flags.GetInt("processCount")
	}
	if flags.Changed("sink") {
		cfg.Sink.Kind, _ = flags.GetString("sink")
	}
	if flags.Changed("dest") {
		cfg.Sink.Address, _ = flags.GetString("dest")
	}
	if flags.Changed("filePath") {
		cfg.Sink.Path, _ = flags.GetString("filePath")
	}
	if flags.Changed("prefix") {
		cfg.Sink.Prefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("compress") {
		cfg.Sink.Compress, _ = flags.GetBool("compress")
	}
	if flags.Changed("insecure") {
		cfg.Sink.Insecure, _ = flags.GetBool("insecure")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Sink.Timeout = config.Duration(d)
	}
	if flags.Changed("exportInterval") {
		d, _ := flags.GetDuration("exportInterval")
		cfg.Sink.Interval = config.Duration(d)
	}
	if flags.Changed("metricsAddr") {
		cfg.MetricsAddr, _ = flags.GetString("metricsAddr")
	}
	if flags.Changed("reportInterval") {
		d, _ := flags.GetDuration("reportInterval")
		cfg.ReportInterval = config.Duration(d)
	}
	if flags.Changed("logLevel") {
		cfg.LogLevel, _ = flags.GetString("logLevel")
	}
	return cfg, cfg.Validate()
}

func init() {
	generateCmd.Flags().Uint64P("batchLimit", "l", 0, "Number of batches to generate. 0 is unlimited")
	generateCmd.Flags().IntP("batchSize", "b", 1, "Number of metric sets in one batch")
	generateCmd.Flags().IntP("setSize", "s", 1, "Number of metrics in one set")
	generateCmd.Flags().DurationP("sleep", "w", time.Second, "Time to sleep in between batches")
	generateCmd.Flags().Int64P("value", "v", 1, "Maximum of the random metric value, inclusive")
	generateCmd.Flags().StringSliceP("tags", "t", nil, "Tags attached to every metric")
	generateCmd.Flags().Uint32("seed", 0, "Seed for the metric values. 0 picks a random seed")
	generateCmd.Flags().String("hostname", "", "Host name reported in metrics. Defaults to the local host name")
	generateCmd.Flags().IntP("processCount", "p", 1, "Number of independent generators to run")

	generateCmd.Flags().StringP("sink", "k", "stdout", "Sink to send metrics to. Options=[stdout,graphite,opentsdb,otlp,parquet]")
	generateCmd.Flags().StringP("dest", "d", "", "Destination address. host:port for graphite and otlp, base URL for opentsdb")
	generateCmd.Flags().StringP("filePath", "x", "", "Output file for the parquet sink")
	generateCmd.Flags().String("prefix", "", "Metric name prefix for graphite and opentsdb. Defaults to hammer")
	generateCmd.Flags().Bool("compress", false, "Gzip request bodies sent to opentsdb")
	generateCmd.Flags().Bool("insecure", false, "Disable TLS for the otlp sink")
	generateCmd.Flags().Duration("timeout", 0, "Sink write timeout")
	generateCmd.Flags().Duration("exportInterval", 10*time.Second, "Export interval of the otlp sink")

	generateCmd.Flags().String("metricsAddr", "", "Address to serve prometheus metrics on, e.g. :9100. Disabled when empty")
	generateCmd.Flags().Duration("reportInterval", time.Minute, "Interval of progress log lines. 0 disables them")

	rootCmd.AddCommand(generateCmd)
}
