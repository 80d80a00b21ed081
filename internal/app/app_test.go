package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-app/followup/internal/config"
	"github.com/contact-app/followup/internal/mail"
)

func TestOpenDB_RequiresURL(t *testing.T) {
	_, err := OpenDB(context.Background(), config.DatabaseConfig{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestOpenRedis(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, OpenRedis(ctx, ""))

	mr := miniredis.RunT(t)
	c := OpenRedis(ctx, "redis://"+mr.Addr()+"/0")
	require.NotNil(t, c)
	defer c.Close()
	require.NoError(t, c.Set(ctx, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, OpenRedis(ctx, "redis://"+addr+"/0"))
}

func TestNewTransport(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	tr, err := newTransport(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, mail.LogTransport{}, tr)

	cfg.Environment = "production"
	_, err = newTransport(context.Background(), cfg)
	assert.Error(t, err)
}
