package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
)

func TestOpenBackendsFallsBackToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := OpenBackends(context.Background(), &Config{}, logger)
	require.NoError(t, err)
	defer b.Close()
	require.IsType(t, &store.Memory{}, b.Store)
	require.Nil(t, b.Redis)
	require.NoError(t, b.Ping(context.Background()))
}

func TestOpenBackendsWithRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := OpenBackends(context.Background(), &Config{RedisAddr: srv.Addr()}, logger)
	require.NoError(t, err)
	defer b.Close()
	require.NotNil(t, b.Redis)
	require.NoError(t, b.Ping(context.Background()))

	svc := PayrollService(&Config{}, b, nil, nil, nil, logger)
	require.NotNil(t, svc)
}

func TestSealingRejectsLongKey(t *testing.T) {
	_, signer, err := Sealing(&Config{})
	require.NoError(t, err)
	require.Nil(t, signer)

	_, _, err = Sealing(&Config{SealSigningKey: strings.Repeat("k", 65)})
	require.ErrorIs(t, err, shared.ErrConfiguration)
}
