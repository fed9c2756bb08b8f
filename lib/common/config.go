package common

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/redisimp/lib/migrate"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Import run configuration struct
// --------------------------------------------------------------------------

// RunConfig holds all parameters of one import run.
type RunConfig struct {
	// Sources are the addresses of the source shards
	Sources []string
	// Destination is the address of the destination server or cluster
	Destination string

	// Workers is the number of shards copied in parallel (0 = one per shard)
	Workers int
	// Filter is a glob or a "/regex/" selecting the keys to copy
	Filter string
	// Mode selects clobber or backfill
	Mode migrate.Mode
	// BatchSize is the number of keys per scan call (0 = migrate.DefaultBatchSize)
	BatchSize int

	// LoadTimeout bounds the wait for servers that are still loading their dataset
	LoadTimeout time.Duration

	// Verbose prints every copied key
	Verbose bool
	// Metrics prints the counters of the run when it ends
	Metrics bool
	// LogLevel is one of debug, info, warn, error
	LogLevel string
}

// Validate checks the configuration before anything is connected
func (c *RunConfig) Validate() error {
	var errs []error

	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	if strings.TrimSpace(c.Destination) == "" {
		errs = append(errs, errors.New("a destination is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("invalid number of workers %d", c.Workers))
	}
	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("invalid batch size %d", c.BatchSize))
	}
	if c.LoadTimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid load timeout %s", c.LoadTimeout))
	}
	if _, err := migrate.ParsePattern(c.Filter); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level returns the configured log level
func (c *RunConfig) Level() (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", c.LogLevel)
	}
}

// EffectiveWorkers returns the number of workers used for the configured sources
func (c *RunConfig) EffectiveWorkers() int {
	if c.Workers <= 0 || c.Workers > len(c.Sources) {
		return len(c.Sources)
	}
	return c.Workers
}

// String returns a formatted string representation of the configuration
func (c *RunConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Sources")
	for i, src := range c.Sources {
		addField(strconv.Itoa(i), src)
	}

	addSection("Destination")
	addField("Address", c.Destination)

	addSection("Copy")
	addField("Mode", c.Mode.String())
	filter := c.Filter
	if filter == "" {
		filter = "(all keys)"
	}
	addField("Filter", filter)
	addField("Workers", strconv.Itoa(c.EffectiveWorkers()))
	batch := c.BatchSize
	if batch <= 0 {
		batch = migrate.DefaultBatchSize
	}
	addField("Batch Size", strconv.Itoa(batch))
	addField("Load Timeout", c.LoadTimeout.String())

	addSection("Output")
	addField("Verbose", strconv.FormatBool(c.Verbose))
	addField("Metrics", strconv.FormatBool(c.Metrics))
	addField("Log Level", c.LogLevel)

	return sb.String()
}
