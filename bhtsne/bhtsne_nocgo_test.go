//go:build !cgo || !nativetsne

package bhtsne

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

func TestStub_Unavailable(t *testing.T) {
	assert.False(t, Available)

	_, err := Version()
	require.Error(t, err)
	assert.True(t, errors.IsServiceUnavailableError(err))

	_, err = New(DefaultSeed, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built without nativetsne support")

	var n *Native
	_, err = n.Embed(&tsne.Request{})
	assert.True(t, errors.IsServiceUnavailableError(err))
}
