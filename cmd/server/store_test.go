package main

import (
	"context"
	"testing"

	"github.com/dkeye/memoboard/internal/app"
	"github.com/dkeye/memoboard/internal/config"
	"github.com/dkeye/memoboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreMemory(t *testing.T) {
	s, err := openStore(context.Background(), &config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}})
	require.NoError(t, err)
	assert.IsType(t, &app.Registry{}, s)

	_, err = s.FindByName(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "sqlite"}})
	assert.ErrorContains(t, err, `unknown store driver "sqlite"`)
}
