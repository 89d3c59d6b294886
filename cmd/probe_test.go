// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
	"github.com/Thermoquad/lidarscope/pkg/simulator"
)

func simulatedSession(t *testing.T, cfg simulator.Config) (*rplidar.Session, *simulator.Simulator) {
	t.Helper()

	sim := simulator.New(cfg)
	opts := rplidar.Options{
		SettleTime:        time.Millisecond,
		MotorSettleTime:   time.Millisecond,
		StopSettleTime:    time.Millisecond,
		ResponseTimeout:   50 * time.Millisecond,
		JunkReadTimeout:   5 * time.Millisecond,
		ScanReadTimeout:   10 * time.Millisecond,
		SingleScanTimeout: 2 * time.Second,
	}
	session := rplidar.NewSession(sim.Opener(), opts)
	require.NoError(t, session.Connect())
	t.Cleanup(func() { _ = session.Close() })
	return session, sim
}

func TestProbe_Healthy(t *testing.T) {
	session, _ := simulatedSession(t, simulator.DefaultConfig())
	assert.Equal(t, 0, probe(session))
}

func TestProbe_Unhealthy(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Health = rplidar.HealthError
	cfg.HealthErrorCode = 0x8001

	session, _ := simulatedSession(t, cfg)
	assert.Equal(t, 1, probe(session))
}

func TestProbe_ConnectionLost(t *testing.T) {
	session, sim := simulatedSession(t, simulator.DefaultConfig())
	sim.Fail(errors.New("cable unplugged"))

	assert.Equal(t, 2, probe(session))
}

func TestCheckLink_Query(t *testing.T) {
	sim := simulator.New(simulator.DefaultConfig())
	defer sim.Close()

	result := checkLink(sim, 300*time.Millisecond, true)
	require.NoError(t, result.Err)
	assert.Equal(t, rplidar.ResponseHeaderSize+rplidar.HealthStatusSize, result.Bytes)
	assert.Equal(t, 1, sim.Commands(rplidar.OpGetHealth))
	assert.GreaterOrEqual(t, result.Elapsed, 300*time.Millisecond)
}

func TestCheckLink_Closed(t *testing.T) {
	sim := simulator.New(simulator.DefaultConfig())
	require.NoError(t, sim.Close())

	result := checkLink(sim, time.Second, false)
	assert.ErrorIs(t, result.Err, simulator.ErrClosed)
	assert.Less(t, result.Elapsed, time.Second)
}
