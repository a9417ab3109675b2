package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSocksTransport(t *testing.T) {
	tr, err := NewSocksTransport("127.0.0.1:1080")
	require.NoError(t, err)
	assert.NotNil(t, tr.DialContext)
}
