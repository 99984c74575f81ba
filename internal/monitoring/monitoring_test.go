package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/monitoring"
	"github.com/charlesng35/userapi/internal/monitoring/checks"
)

func up(context.Context) monitoring.CheckResult {
	return monitoring.CheckResult{Status: monitoring.StatusUp}
}

func down(context.Context) monitoring.CheckResult {
	return monitoring.CheckResult{Status: monitoring.StatusDown, Details: "connection refused"}
}

func TestHealthManagerRequiredCheckDown(t *testing.T) {
	manager := monitoring.NewHealthManager(
		monitoring.NewCheck("database", down).Require(),
		monitoring.NewCheck("cache:primary", up),
	)

	report := manager.Evaluate(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "connection refused", report.Checks[0].Details)
}

func TestHealthManagerOptionalCheckDegrades(t *testing.T) {
	manager := monitoring.NewHealthManager(
		monitoring.NewCheck("database", up).Require(),
		monitoring.NewCheck("cache:primary", down),
	)

	report := manager.Evaluate(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.Register(monitoring.NewCheck("boom", func(context.Context) monitoring.CheckResult {
		panic("kaboom")
	}).Require())
	manager.Register(monitoring.Check{})

	report := manager.Evaluate(context.Background())
	require.Len(t, report.Checks, 1)
	require.Equal(t, monitoring.StatusDown, report.Checks[0].Status)
	require.Equal(t, "kaboom", report.Checks[0].Details)
	require.Equal(t, "boom", report.Checks[0].Component)
}

func TestResultFromError(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError(nil, time.Second).Status)
	require.Equal(t, monitoring.StatusDown, monitoring.ResultFromError(errors.New("refused"), 0).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.ResultFromError(context.DeadlineExceeded, 0).Status)
}

func TestServiceCheck(t *testing.T) {
	ctx := context.Background()

	skipped := checks.Service("mongodb", func(context.Context) error { return checks.ErrNotConfigured }, 0).Run(ctx)
	require.Equal(t, monitoring.StatusSkipped, skipped.Status)

	failing := checks.Database(func(context.Context) error { return errors.New("refused") }, time.Second)
	require.True(t, failing.Required)
	require.Equal(t, monitoring.StatusDown, failing.Run(ctx).Status)

	require.Equal(t, monitoring.StatusSkipped, checks.Service("none", nil, 0).Run(ctx).Status)
}

func TestCacheCheck(t *testing.T) {
	ctx := context.Background()

	unconfigured := checks.Cache(cache.NewFacade("primary", nil), 0)
	require.Equal(t, "cache:primary", unconfigured.Name)
	require.False(t, unconfigured.Required)
	require.Equal(t, monitoring.StatusSkipped, unconfigured.Run(ctx).Status)

	broken := checks.Cache(cache.NewFacade("secondary", func(context.Context) (cache.Backend, error) {
		return nil, errors.New("dial failed")
	}), 0)
	require.Equal(t, monitoring.StatusDown, broken.Run(ctx).Status)
}
