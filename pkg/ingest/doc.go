// Package ingest manages file ingestion into workspaces: strike
// processes that watch a directory, scan processes that enumerate a
// bucket once, and the ingest records tracking each file through
// transfer and ingestion. Data type tags, the hourly status rollup,
// and configuration validation live here as well.
package ingest
