package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeHealthChecker_AllHealthy(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("postgres", func(ctx context.Context) error { return nil })
	c.AddCheck("redis", func(ctx context.Context) error { return nil })

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "v1", status.Version)
	require.Len(t, status.Checks, 2)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.True(t, status.Checks["redis"].Healthy)
}

func TestCompositeHealthChecker_FailurePropagates(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("postgres", func(ctx context.Context) error { return nil })
	c.AddCheck("gateway", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Contains(t, status.Message, "gateway")
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.False(t, status.Checks["gateway"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["gateway"].Message)
}

func TestCompositeHealthChecker_RemoveCheck(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("gateway", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	require.False(t, c.Check(context.Background()).Healthy)

	c.RemoveCheck("gateway")

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	c := NewCompositeHealthChecker("v1")

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.False(t, status.Timestamp.IsZero())
}
