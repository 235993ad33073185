package keystore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allmhq/allm"
)

func TestSeedMasterKey(t *testing.T) {
	s := New("master-123")

	key, err := s.Resolve(allm.DefaultProvider, "mistral-small-latest")
	require.NoError(t, err)
	assert.Equal(t, "master-123", key)
}

func TestModelKeyTakesPrecedence(t *testing.T) {
	s := New("")
	s.Apply([]allm.APIKeySpec{
		{Provider: allm.ProviderOpenAI, Key: "master"},
		{Provider: allm.ProviderOpenAI, Model: "gpt-4o", Key: "model-specific"},
	})

	key, err := s.Resolve(allm.ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "model-specific", key)

	key, err = s.Resolve(allm.ProviderOpenAI, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "master", key)
}

func TestResolveUnknownProvider(t *testing.T) {
	s := New("")
	_, err := s.Resolve(allm.ProviderGoogle, "gemini-2.0-flash")
	require.Error(t, err)
	assert.Equal(t, allm.KindKeyNotFound, allm.KindOf(err))
}

func TestRemovingModelKeyFallsBackToMaster(t *testing.T) {
	s := New("")
	s.Apply([]allm.APIKeySpec{
		{Provider: allm.ProviderAnthropic, Key: "master"},
		{Provider: allm.ProviderAnthropic, Model: "claude-sonnet-4-20250514", Key: "scoped"},
	})

	key, err := s.Resolve(allm.ProviderAnthropic, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, "scoped", key)

	// Empty key removes the entry; resolution falls back to the master.
	s.Apply([]allm.APIKeySpec{{Provider: allm.ProviderAnthropic, Model: "claude-sonnet-4-20250514"}})

	key, err = s.Resolve(allm.ProviderAnthropic, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, "master", key)
}

func TestRemovingMasterKeyLosesAccess(t *testing.T) {
	s := New("master")
	s.Apply([]allm.APIKeySpec{{Provider: allm.DefaultProvider}})

	_, err := s.Resolve(allm.DefaultProvider, "")
	assert.Equal(t, allm.KindKeyNotFound, allm.KindOf(err))
	assert.Equal(t, 0, s.Len())
}

func TestApplyOverwrites(t *testing.T) {
	s := New("")
	s.Apply([]allm.APIKeySpec{{Provider: allm.ProviderOpenAI, Key: "old"}})
	s.Apply([]allm.APIKeySpec{{Provider: allm.ProviderOpenAI, Key: "new"}})

	key, err := s.Resolve(allm.ProviderOpenAI, "")
	require.NoError(t, err)
	assert.Equal(t, "new", key)
	assert.Equal(t, 1, s.Len())
}

func TestConcurrentResolveDuringApply(t *testing.T) {
	s := New("seed")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Apply([]allm.APIKeySpec{{Provider: allm.DefaultProvider, Key: fmt.Sprintf("key-%d-%d", n, j)}})
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key, err := s.Resolve(allm.DefaultProvider, "any-model")
				assert.NoError(t, err)
				assert.NotEmpty(t, key)
			}
		}()
	}
	wg.Wait()
}
