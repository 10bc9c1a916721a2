package ingest

import (
	"errors"
	"fmt"
	"path"
	"regexp"

	"github.com/harborline/stevedore/pkg/types"
)

// ErrInvalidConfiguration is wrapped by all configuration validation
// failures.
var ErrInvalidConfiguration = errors.New("invalid configuration")

const configVersion = "1.0"

// ValidateStrikeConfiguration checks a strike configuration for
// structural problems before it is accepted.
func ValidateStrikeConfiguration(cfg *types.StrikeConfiguration) error {
	if cfg.Version == "" {
		cfg.Version = configVersion
	}
	if cfg.Version != configVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidConfiguration, cfg.Version)
	}
	if cfg.Monitor != nil {
		switch cfg.Monitor.Type {
		case "s3":
			if cfg.Monitor.SQSName == "" {
				return fmt.Errorf("%w: s3 monitor requires sqs_name", ErrInvalidConfiguration)
			}
		case "":
			return fmt.Errorf("%w: monitor type is required", ErrInvalidConfiguration)
		default:
			return fmt.Errorf("%w: unknown monitor type %q", ErrInvalidConfiguration, cfg.Monitor.Type)
		}
	} else {
		if cfg.MonitorDir == "" {
			return fmt.Errorf("%w: monitor_dir is required", ErrInvalidConfiguration)
		}
		if !path.IsAbs(cfg.MonitorDir) {
			return fmt.Errorf("%w: monitor_dir must be absolute", ErrInvalidConfiguration)
		}
		if cfg.TransferSuffix == "" {
			return fmt.Errorf("%w: transfer_suffix is required", ErrInvalidConfiguration)
		}
	}
	if cfg.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace is required", ErrInvalidConfiguration)
	}
	return validateFileRules(cfg.FilesToIngest)
}

// ValidateScanConfiguration checks a scan configuration for structural
// problems before it is accepted.
func ValidateScanConfiguration(cfg *types.ScanConfiguration) error {
	if cfg.Version == "" {
		cfg.Version = configVersion
	}
	if cfg.Version != configVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidConfiguration, cfg.Version)
	}
	if cfg.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace is required", ErrInvalidConfiguration)
	}
	switch cfg.Scanner.Type {
	case "s3":
		if cfg.Scanner.Bucket == "" {
			return fmt.Errorf("%w: s3 scanner requires a bucket", ErrInvalidConfiguration)
		}
	case "":
		return fmt.Errorf("%w: scanner type is required", ErrInvalidConfiguration)
	default:
		return fmt.Errorf("%w: unknown scanner type %q", ErrInvalidConfiguration, cfg.Scanner.Type)
	}
	return validateFileRules(cfg.FilesToIngest)
}

func validateFileRules(rules []types.IngestFileRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: at least one files_to_ingest rule is required", ErrInvalidConfiguration)
	}
	for i, rule := range rules {
		if rule.FilenameRegex == "" {
			return fmt.Errorf("%w: rule %d: filename_regex is required", ErrInvalidConfiguration, i)
		}
		if _, err := regexp.Compile(rule.FilenameRegex); err != nil {
			return fmt.Errorf("%w: rule %d: bad filename_regex: %v", ErrInvalidConfiguration, i, err)
		}
		for _, tag := range rule.DataTypes {
			if !tagPattern.MatchString(tag) {
				return fmt.Errorf("%w: rule %d: %v", ErrInvalidConfiguration, i, &ErrInvalidDataTypeTag{Tag: tag})
			}
		}
	}
	return nil
}

// MatchFileRule returns the first rule whose filename regex matches
// fileName, or nil if none match.
func MatchFileRule(rules []types.IngestFileRule, fileName string) *types.IngestFileRule {
	for i := range rules {
		re, err := regexp.Compile(rules[i].FilenameRegex)
		if err != nil {
			continue
		}
		if re.MatchString(fileName) {
			return &rules[i]
		}
	}
	return nil
}
