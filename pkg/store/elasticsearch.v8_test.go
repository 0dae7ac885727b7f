package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Needs a throwaway cluster, eg. CASHSTER_TEST_ES=http://localhost:9200
func TestElasticsearchV8(t *testing.T) {
	addr := os.Getenv("CASHSTER_TEST_ES")
	if addr == "" {
		t.Skip("CASHSTER_TEST_ES not set")
	}

	es, err := NewElasticsearchV8(context.Background(), zap.NewNop(), addr)
	require.NoError(t, err)

	testStore(t, es)
}

func TestEscapeWildcard(t *testing.T) {
	assert.Equal(t, `caf\*e\?`, escapeWildcard("caf*e?"))
	assert.Equal(t, `a\\b`, escapeWildcard(`a\b`))
	assert.Equal(t, "plain", escapeWildcard("plain"))
}
