// Package common holds the configuration and logging setup shared by the
// commands of redisimp.
//
// Libraries obtain their loggers with logger.GetLogger from
// github.com/lni/dragonboat/v4/logger. InitLoggers replaces the default
// implementation with one that writes "LEVEL | package | message" lines to
// stderr and sets the level of all loggers of this repository.
package common
