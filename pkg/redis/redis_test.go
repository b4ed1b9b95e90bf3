package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Options(t *testing.T) {
	cfg := Config{URL: "redis://localhost:6379/2", ReadTimeout: 1, WriteTimeout: 2, DialTimeout: 4}

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
	assert.Equal(t, 4*time.Second, opts.DialTimeout)
}

func TestConfig_OptionsRejectsEmptyURL(t *testing.T) {
	_, err := (&Config{}).Options()
	assert.Error(t, err)
}

func TestConfig_New(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := Config{URL: "redis://" + mr.Addr(), ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1}
	client, err := cfg.New(context.Background())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
