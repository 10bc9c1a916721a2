package types

import (
	"time"
)

// IngestStatus is the lifecycle state of a file ingest.
type IngestStatus string

const (
	IngestTransferring IngestStatus = "TRANSFERRING"
	IngestTransferred  IngestStatus = "TRANSFERRED"
	IngestDeferred     IngestStatus = "DEFERRED"
	IngestQueued       IngestStatus = "QUEUED"
	IngestIngesting    IngestStatus = "INGESTING"
	IngestIngested     IngestStatus = "INGESTED"
	IngestErrored      IngestStatus = "ERRORED"
	IngestDuplicate    IngestStatus = "DUPLICATE"
)

// Ingest represents a single file being ingested into a workspace. An
// ingest belongs to either a strike process or a scan process, never
// both. DataType is a comma-separated list of tags; use the helpers in
// the ingest package to manipulate it.
type Ingest struct {
	ID       int64
	FileName string
	StrikeID string
	ScanID   string
	Status   IngestStatus

	BytesTransferred int64
	TransferStarted  *time.Time
	TransferEnded    *time.Time

	MediaType string
	FileSize  int64
	DataType  string

	FilePath       string
	WorkspaceID    string
	NewFilePath    string
	NewWorkspaceID string

	JobID         string
	IngestStarted *time.Time
	IngestEnded   *time.Time

	DataStarted *time.Time
	DataEnded   *time.Time

	Created      time.Time
	LastModified time.Time
}

// IngestFileRule matches incoming files and maps them into a workspace.
type IngestFileRule struct {
	FilenameRegex  string   `yaml:"filename_regex" json:"filename_regex"`
	DataTypes      []string `yaml:"data_types" json:"data_types"`
	NewWorkspaceID string   `yaml:"new_workspace" json:"new_workspace"`
	NewFilePath    string   `yaml:"new_file_path" json:"new_file_path"`
}

// StrikeMonitorConfig selects how a strike process discovers new files.
// Without one the strike polls MonitorDir; the "s3" monitor consumes
// object-created notifications from an SQS queue instead.
type StrikeMonitorConfig struct {
	Type            string `yaml:"type" json:"type"`
	SQSName         string `yaml:"sqs_name" json:"sqs_name"`
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
}

// StrikeConfiguration configures a continuous ingest process.
type StrikeConfiguration struct {
	Version        string               `yaml:"version" json:"version"`
	MonitorDir     string               `yaml:"monitor_dir" json:"monitor_dir"`
	TransferSuffix string               `yaml:"transfer_suffix" json:"transfer_suffix"`
	WorkspaceID    string               `yaml:"workspace" json:"workspace"`
	Monitor        *StrikeMonitorConfig `yaml:"monitor,omitempty" json:"monitor,omitempty"`
	FilesToIngest  []IngestFileRule     `yaml:"files_to_ingest" json:"files_to_ingest"`
}

// ScannerConfig configures the scanner used by a scan process.
type ScannerConfig struct {
	Type            string `yaml:"type" json:"type"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
}

// ScanConfiguration configures a one-shot bucket-enumerating ingest
// process.
type ScanConfiguration struct {
	Version       string           `yaml:"version" json:"version"`
	WorkspaceID   string           `yaml:"workspace" json:"workspace"`
	Scanner       ScannerConfig    `yaml:"scanner" json:"scanner"`
	Recursive     bool             `yaml:"recursive" json:"recursive"`
	FilesToIngest []IngestFileRule `yaml:"files_to_ingest" json:"files_to_ingest"`
}

// Strike is a continuous ingest process watching a directory.
type Strike struct {
	ID            string
	Name          string
	Title         string
	Description   string
	Configuration StrikeConfiguration
	JobID         string
	Created       time.Time
	LastModified  time.Time
}

// Scan is a one-shot ingest process enumerating a bucket.
type Scan struct {
	ID            string
	Name          string
	Title         string
	Description   string
	Configuration ScanConfiguration
	JobID         string
	DryRun        bool
	Created       time.Time
	LastModified  time.Time
}
