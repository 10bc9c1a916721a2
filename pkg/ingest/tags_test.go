package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stevedore/pkg/types"
)

// TestAddDataTypeTag tests tag addition and the stored form
func TestAddDataTypeTag(t *testing.T) {
	in := &types.Ingest{}

	require.NoError(t, AddDataTypeTag(in, "foo"))
	assert.Equal(t, "foo", in.DataType)

	require.NoError(t, AddDataTypeTag(in, "bar"))
	assert.Equal(t, "bar,foo", in.DataType)

	// Set semantics: re-adding is a no-op
	require.NoError(t, AddDataTypeTag(in, "foo"))
	assert.Equal(t, "bar,foo", in.DataType)

	tags := DataTypeTags(in)
	assert.Len(t, tags, 2)
	assert.True(t, HasDataTypeTag(in, "foo"))
	assert.True(t, HasDataTypeTag(in, "bar"))
	assert.False(t, HasDataTypeTag(in, "baz"))
}

// TestAddDataTypeTagAllowedCharacters tests the tag character set
func TestAddDataTypeTagAllowedCharacters(t *testing.T) {
	valid := []string{"simple", "with_underscore", "with space", "MixedCase123"}
	for _, tag := range valid {
		in := &types.Ingest{}
		assert.NoError(t, AddDataTypeTag(in, tag), "tag %q should be valid", tag)
	}

	invalid := []string{"", "has,comma", "has-dash", "has.dot", "has/slash"}
	for _, tag := range invalid {
		in := &types.Ingest{}
		err := AddDataTypeTag(in, tag)
		require.Error(t, err, "tag %q should be invalid", tag)
		var tagErr *ErrInvalidDataTypeTag
		assert.ErrorAs(t, err, &tagErr)
		assert.Empty(t, in.DataType)
	}
}

// TestDataTypeTagsEmpty tests the empty stored form
func TestDataTypeTagsEmpty(t *testing.T) {
	in := &types.Ingest{}
	assert.Empty(t, DataTypeTags(in))
}
