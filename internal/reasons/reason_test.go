package reasons

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonCombineIsOrderIndependent(t *testing.T) {
	a := Valid.Combine(FileUpdate, EnvChange)
	b := Valid.Combine(EnvChange, FileUpdate)
	assert.Equal(t, a, b)
	assert.True(t, a.Has(FileUpdate))
	assert.True(t, a.Has(EnvChange))
	assert.False(t, a.Has(FileDelete))
}

func TestReasonValidResets(t *testing.T) {
	r := Valid.Combine(FileCreate)
	require.False(t, r.IsValid())
	r = Valid
	require.True(t, r.IsValid())
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "Valid", Valid.String())
	assert.Equal(t, "FileUpdate", FileUpdate.String())
	assert.Equal(t, "EnvChange|FileUpdate", Valid.Combine(FileUpdate, EnvChange).String())
}

func TestReasonAny(t *testing.T) {
	r := Valid.Combine(Startup)
	assert.True(t, r.Any(Startup|Error))
	assert.False(t, r.Any(Error))
}
