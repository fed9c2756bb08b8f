package imp

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/redisimp/cmd/util"
	"github.com/ValentinKolb/redisimp/lib/common"
	"github.com/ValentinKolb/redisimp/lib/migrate"
	"github.com/ValentinKolb/redisimp/lib/multi"
	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/ValentinKolb/redisimp/lib/store/redisstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var plog = logger.GetLogger("cmd")

var (
	importCmdConfig = &common.RunConfig{}
	ImportCmd       = &cobra.Command{
		Use:   "import",
		Short: "Copy the keys of redis shards into a destination server",
		Long: `Copy all keys (or the keys matching a filter) of one or more source shards into a destination server or cluster.
Values are copied with their ttl using DUMP and RESTORE. By default existing keys on the destination are overwritten, with --backfill only missing keys are written.
All flags can also be set via environment variables in the format REDISIMP_<flag> (e.g. REDISIMP_BATCH_SIZE=1000)`,
		Example: `  redisimp import -s localhost:6379,localhost:6380 -d localhost:7000
  redisimp import -s redis://10.0.0.1:6379/0 -d /tmp/redis.sock -f 'session:*' --backfill
  redisimp import -s localhost:6379 -d localhost:7000 -f '/^user:[0-9]+$/' -w 4`,
		PreRunE:      processConfig,
		RunE:         run,
		SilenceUsage: true,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "src"
	ImportCmd.Flags().StringP(key, "s", "", cmdUtil.WrapString("Comma separated list of source shards. Each entry is a host:port pair, a redis:// or unix:// url or the path of a unix socket"))

	key = "dst"
	ImportCmd.Flags().StringP(key, "d", "", cmdUtil.WrapString("The destination in the same format as a source. A cluster node is detected automatically and the whole cluster is written to"))

	key = "workers"
	ImportCmd.Flags().IntP(key, "w", 0, cmdUtil.WrapString("The number of shards copied in parallel (0 = one worker per source)"))

	key = "filter"
	ImportCmd.Flags().StringP(key, "f", "", cmdUtil.WrapString("A glob-style pattern selecting the keys to copy. A pattern written as /expr/ is a regular expression matched against the start of the key name"))

	key = "backfill"
	ImportCmd.Flags().Bool(key, false, cmdUtil.WrapString("Only copy keys that do not exist on the destination, existing keys are never modified"))

	key = "batch-size"
	ImportCmd.Flags().Int(key, migrate.DefaultBatchSize, cmdUtil.WrapString("The number of keys requested from a source per scan call"))

	key = "load-timeout"
	ImportCmd.Flags().Duration(key, redisstore.DefaultLoadTimeout, cmdUtil.WrapString("How long to wait for a server that is still loading its dataset"))

	key = "verbose"
	ImportCmd.Flags().BoolP(key, "v", false, cmdUtil.WrapString("Print every copied key"))

	key = "metrics"
	ImportCmd.Flags().Bool(key, false, cmdUtil.WrapString("Print the counters of the run in the prometheus text format to stderr when the run ends"))

	key = "log-level"
	ImportCmd.Flags().String(key, "warn", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	mode := migrate.ModeClobber
	if viper.GetBool("backfill") {
		mode = migrate.ModeBackfill
	}

	*importCmdConfig = common.RunConfig{
		Sources:     cmdUtil.SplitHosts(viper.GetString("src")),
		Destination: viper.GetString("dst"),
		Workers:     viper.GetInt("workers"),
		Filter:      viper.GetString("filter"),
		Mode:        mode,
		BatchSize:   viper.GetInt("batch-size"),
		LoadTimeout: viper.GetDuration("load-timeout"),
		Verbose:     viper.GetBool("verbose"),
		Metrics:     viper.GetBool("metrics"),
		LogLevel:    viper.GetString("log-level"),
	}

	if err := importCmdConfig.Validate(); err != nil {
		return err
	}
	level, err := importCmdConfig.Level()
	if err != nil {
		return err
	}
	common.InitLoggers(level)
	return nil
}

// run copies all sources into the destination
func run(cmd *cobra.Command, _ []string) error {
	conf := importCmdConfig
	plog.Infof("configuration:%s", conf.String())

	// stop gracefully on SIGINT and SIGTERM: the running batches are finished
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolveOpts := redisstore.ResolveOptions{LoadTimeout: conf.LoadTimeout}

	dst, err := redisstore.ResolveDestination(ctx, conf.Destination, resolveOpts)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	defer dst.Close()

	resolved, err := redisstore.ResolveSources(ctx, conf.Sources, resolveOpts)
	if err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	sources := make([]store.Source, len(resolved))
	for i, src := range resolved {
		defer src.Close()
		sources[i] = src
	}

	opts := multi.Options{
		Workers:   conf.Workers,
		Mode:      conf.Mode,
		BatchSize: conf.BatchSize,
		Filter:    conf.Filter,
	}

	p := newProgress(cmd.OutOrStdout(), conf.Verbose)
	var runErr error
	for key, err := range multi.Copy(ctx, sources, dst, opts) {
		if err != nil {
			runErr = err
			break
		}
		p.Add(key)
	}
	p.Done()

	if conf.Metrics {
		metrics.WritePrometheus(cmd.ErrOrStderr(), false)
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted after %d keys: %w", p.Count(), runErr)
		}
		return runErr
	}
	return nil
}
