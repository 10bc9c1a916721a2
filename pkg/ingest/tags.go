package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/harborline/stevedore/pkg/types"
)

// tagPattern matches a single data type tag. Tags may contain letters,
// digits, underscores, and spaces; commas are reserved as the separator
// in the stored form.
var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_ ]+$`)

// ErrInvalidDataTypeTag is returned when a tag contains characters
// outside the allowed set.
type ErrInvalidDataTypeTag struct {
	Tag string
}

func (e *ErrInvalidDataTypeTag) Error() string {
	return fmt.Sprintf("invalid data type tag %q", e.Tag)
}

// DataTypeTags splits the stored comma-separated tag list into a set.
func DataTypeTags(in *types.Ingest) map[string]struct{} {
	tags := make(map[string]struct{})
	if in.DataType == "" {
		return tags
	}
	for _, tag := range strings.Split(in.DataType, ",") {
		tags[tag] = struct{}{}
	}
	return tags
}

// AddDataTypeTag adds a tag to the ingest's data type list. Adding a tag
// that is already present is a no-op. The stored form is kept sorted so
// equal tag sets compare equal as strings.
func AddDataTypeTag(in *types.Ingest, tag string) error {
	if !tagPattern.MatchString(tag) {
		return &ErrInvalidDataTypeTag{Tag: tag}
	}

	tags := DataTypeTags(in)
	if _, ok := tags[tag]; ok {
		return nil
	}
	tags[tag] = struct{}{}

	sorted := make([]string, 0, len(tags))
	for t := range tags {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)
	in.DataType = strings.Join(sorted, ",")
	return nil
}

// HasDataTypeTag reports whether the ingest carries the given tag.
func HasDataTypeTag(in *types.Ingest, tag string) bool {
	_, ok := DataTypeTags(in)[tag]
	return ok
}
