// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

func setupConnector(t *testing.T, backend *fakeBackend) (*Device, *Connector) {
	core := newCore(testConfig(), nil)
	d := newTestDevice(core, "card0", singleOutputSource(), backend)
	c := d.findConnector(61)
	require.NotNil(t, c)
	return d, c
}

func waitRenders(t *testing.T, b *fakeBackend, n int) {
	require.Eventually(t, func() bool {
		renders, _, _ := b.stats()
		return renders >= n
	}, waitTimeout, waitTick)
}

func waitFlipArms(t *testing.T, b *fakeBackend, n int) {
	require.Eventually(t, func() bool {
		_, flips, _ := b.stats()
		return flips >= n
	}, waitTimeout, waitTick)
}

func Test_InitializeAndUninitialize(t *testing.T) {
	b := &fakeBackend{}
	d, c := setupConnector(t, b)

	err := c.Initialize(nil)
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, c.GetState())
	assert.Equal(t, "Initialized", c.State)
	assert.Equal(t, uint32(31), c.CrtcId)
	assert.Equal(t, uint32(41), c.EncoderId)
	assert.True(t, c.HasCursorPlane)
	assert.Equal(t, c, d.crtcs[0].boundConnector)

	// 初始化后自动画第一帧
	waitRenders(t, b, 1)

	// 已经初始化
	assert.Equal(t, ErrInvalidState, c.Initialize(nil))

	err = c.Uninitialize()
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, c.GetState())
	assert.False(t, c.isRunning())
	assert.True(t, b.hasCall("Uninitialize"))
	assert.Nil(t, d.crtcs[0].boundConnector)
	assert.Nil(t, d.planes[0].owner)
	assert.Nil(t, d.planes[1].owner)
	assert.Equal(t, uint32(0), c.CrtcId)

	// 未初始化时什么也不做
	assert.NoError(t, c.Uninitialize())
}

func Test_InitializeFailure(t *testing.T) {
	b := &fakeBackend{initErr: errFake}
	d, c := setupConnector(t, b)

	err := c.Initialize(nil)
	assert.Equal(t, ErrRenderInitFailed, err)
	assert.Equal(t, StateUninitialized, c.GetState())
	assert.False(t, c.isRunning())
	assert.Nil(t, c.GetCrtc())
	assert.Nil(t, d.crtcs[0].boundConnector)
	assert.Equal(t, ErrInvalidState, c.Repaint())

	// 失败后可以重试
	b.mu.Lock()
	b.initErr = nil
	b.mu.Unlock()
	require.NoError(t, c.Initialize(nil))
	require.NoError(t, c.Uninitialize())
}

func Test_InitializeRequiresConnection(t *testing.T) {
	src := singleOutputSource().addConnector(62, typeDP, false, []uint32{41})
	core := newCore(testConfig(), nil)
	d := newTestDevice(core, "card0", src, &fakeBackend{})

	assert.Equal(t, ErrNotConnected, d.findConnector(62).Initialize(nil))
}

func Test_InitializeConcurrentSingleCrtc(t *testing.T) {
	src := singleOutputSource().addConnector(62, typeDP, true, []uint32{41}, testModeInfo(1920, 1080, true))
	core := newCore(testConfig(), nil)
	d := newTestDevice(core, "card0", src, nil)
	d.newBackend = func() RenderBackend {
		return &fakeBackend{}
	}
	connectors := []*Connector{d.findConnector(61), d.findConnector(62)}

	var wg sync.WaitGroup
	errs := make([]error, len(connectors))
	for i, c := range connectors {
		wg.Add(1)
		go func(i int, c *Connector) {
			defer wg.Done()
			errs[i] = c.Initialize(nil)
		}(i, c)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, ErrNoValidConfiguration, err)
		}
	}
	assert.Equal(t, 1, succeeded)

	for _, c := range connectors {
		assert.NoError(t, c.Uninitialize())
	}
}

func Test_SetMode(t *testing.T) {
	b := &fakeBackend{}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint

	modes := c.GetModes()
	require.Len(t, modes, 2)
	err := c.SetMode(modes[1])
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, c.GetState())
	assert.Equal(t, modes[1], c.GetCurrentMode())
	assert.Equal(t, uint32(2), c.CurrentMode.Id)

	b.mu.Lock()
	assert.Equal(t, []ConnectorState{StateChangingMode}, b.updateStates)
	b.mu.Unlock()

	// 不属于该 connector 的模式
	other := newConnectorMode(2, testModeInfo(1280, 720, false))
	assert.Equal(t, ErrModeNotFound, c.SetMode(other))
	assert.Equal(t, ErrModeNotFound, c.SetMode(nil))
	assert.Equal(t, modes[1], c.GetCurrentMode())
}

func Test_SetModeRevert(t *testing.T) {
	b := &fakeBackend{updateModeErrs: []error{errFake}}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint

	modes := c.GetModes()
	waitRenders(t, b, 1)
	renders, _, _ := b.stats()

	err := c.SetMode(modes[1])
	assert.True(t, errors.Is(err, ErrModeReverted))
	assert.Equal(t, StateInitialized, c.GetState())
	assert.Equal(t, modes[0], c.GetCurrentMode())
	assert.Equal(t, uint32(1), c.CurrentMode.Id)

	b.mu.Lock()
	assert.Equal(t, []ConnectorState{StateChangingMode, StateRevertingMode}, b.updateStates)
	b.mu.Unlock()

	// 恢复后继续重绘
	waitRenders(t, b, renders+1)
}

func Test_SetModeWaitsPageFlip(t *testing.T) {
	b := &fakeBackend{manualFlip: true}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint
	waitFlipArms(t, b, 1)

	// 第一帧的翻页一直没完成，换模式前要先等它超时
	start := time.Now()
	require.NoError(t, c.SetMode(c.GetModes()[1]))
	assert.GreaterOrEqual(t, time.Since(start), testConfig().pageFlipTimeout)

	b.mu.Lock()
	assert.Equal(t, []bool{false}, b.updateFlipPending)
	b.mu.Unlock()
}

func Test_SetModeAfterPageFlip(t *testing.T) {
	b := &fakeBackend{manualFlip: true}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint
	waitFlipArms(t, b, 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.completeFlip()
	}()
	require.NoError(t, c.SetMode(c.GetModes()[1]))

	b.mu.Lock()
	assert.Equal(t, []bool{false}, b.updateFlipPending)
	b.mu.Unlock()
	_, flipped := c.FrameStats()
	assert.Equal(t, uint64(1), flipped)
}

func Test_SetModeInvalidState(t *testing.T) {
	_, c := setupConnector(t, &fakeBackend{})
	assert.Equal(t, ErrInvalidState, c.SetMode(c.GetModes()[1]))
}

func Test_RepaintCollapse(t *testing.T) {
	b := &fakeBackend{manualFlip: true}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint

	// 第一帧的翻页还没完成
	waitFlipArms(t, b, 1)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Repaint())
	}
	time.Sleep(50 * time.Millisecond)
	renders, flips, _ := b.stats()
	assert.Equal(t, 1, renders)
	assert.Equal(t, 1, flips)

	// 翻页完成后合并的请求只画一帧
	require.True(t, b.completeFlip())
	waitFlipArms(t, b, 2)
	require.True(t, b.completeFlip())
	time.Sleep(50 * time.Millisecond)

	renders, flips, doubleRenders := b.stats()
	assert.Equal(t, 2, renders)
	assert.Equal(t, 2, flips)
	assert.Equal(t, 0, doubleRenders)

	rendered, flipped := c.FrameStats()
	assert.Equal(t, uint64(2), rendered)
	assert.Equal(t, uint64(2), flipped)
}

func Test_RepaintManyRequests(t *testing.T) {
	b := &fakeBackend{}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint
	waitRenders(t, b, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Repaint()
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return !c.repaintRequested && !c.pendingPageFlip
	}, waitTimeout, waitTick)

	renders, flips, doubleRenders := b.stats()
	assert.GreaterOrEqual(t, renders, 2)
	assert.LessOrEqual(t, renders, 401)
	assert.Equal(t, renders, flips)
	assert.Equal(t, 0, doubleRenders)
}

func Test_PauseResume(t *testing.T) {
	b := &fakeBackend{}
	_, c := setupConnector(t, b)
	assert.Equal(t, ErrInvalidState, c.Pause())

	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint
	waitRenders(t, b, 1)

	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.GetState())
	assert.True(t, b.hasCall("Pause"))
	assert.NotNil(t, c.GetCrtc())
	assert.Equal(t, ErrInvalidState, c.Pause())

	renders, _, _ := b.stats()
	require.NoError(t, c.Repaint())
	time.Sleep(30 * time.Millisecond)
	paused, _, _ := b.stats()
	assert.Equal(t, renders, paused)

	require.NoError(t, c.Resume())
	assert.Equal(t, StateInitialized, c.GetState())
	assert.True(t, b.hasCall("Resume"))
	waitRenders(t, b, renders+1)
	assert.Equal(t, ErrInvalidState, c.Resume())
}

func Test_ResumeFailure(t *testing.T) {
	b := &fakeBackend{}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint
	waitRenders(t, b, 1)
	require.NoError(t, c.Pause())

	b.mu.Lock()
	b.resumeErr = errFake
	b.mu.Unlock()
	assert.Equal(t, errFake, c.Resume())
	assert.Equal(t, StatePaused, c.GetState())
	assert.Equal(t, "Paused", c.State)

	// 恢复失败时不重绘
	renders, _, _ := b.stats()
	require.NoError(t, c.Repaint())
	time.Sleep(30 * time.Millisecond)
	after, _, _ := b.stats()
	assert.Equal(t, renders, after)

	b.mu.Lock()
	b.resumeErr = nil
	b.mu.Unlock()
	require.NoError(t, c.Resume())
	assert.Equal(t, StateInitialized, c.GetState())
	waitRenders(t, b, renders+1)
}

func Test_StalePageFlipIgnored(t *testing.T) {
	b := &fakeBackend{manualFlip: true}
	d, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint
	waitFlipArms(t, b, 1)
	stale := b.lastFlipUserData()

	// 暂停时翻页超时，恢复后提交了新的翻页
	require.NoError(t, c.Pause())
	require.NoError(t, c.Resume())
	waitFlipArms(t, b, 2)
	assert.NotEqual(t, stale, b.lastFlipUserData())

	// 迟到的旧事件不能结束新的翻页
	d.handlePageFlip(31, 99, time.Now(), stale)
	c.mu.Lock()
	assert.True(t, c.pendingPageFlip)
	c.mu.Unlock()

	require.NoError(t, c.Repaint())
	time.Sleep(50 * time.Millisecond)
	_, flips, _ := b.stats()
	assert.Equal(t, 2, flips)
	_, flipped := c.FrameStats()
	assert.Equal(t, uint64(0), flipped)

	require.True(t, b.completeFlip())
	waitFlipArms(t, b, 3)
}

func Test_UninitializeWhilePaused(t *testing.T) {
	b := &fakeBackend{}
	d, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	require.NoError(t, c.Pause())

	require.NoError(t, c.Uninitialize())
	assert.Equal(t, StateUninitialized, c.GetState())
	assert.Nil(t, d.crtcs[0].boundConnector)
}

func Test_UninitializeWithPendingFlip(t *testing.T) {
	b := &fakeBackend{manualFlip: true}
	_, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	waitRenders(t, b, 1)

	// 翻页一直没完成，超时后继续
	start := time.Now()
	require.NoError(t, c.Uninitialize())
	assert.GreaterOrEqual(t, time.Since(start), testConfig().pageFlipTimeout)
	assert.False(t, c.isRunning())
}

func Test_deviceDestroyUninitializes(t *testing.T) {
	b := &fakeBackend{}
	d, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))

	d.core.removeDevice("card0")
	assert.Equal(t, StateUninitialized, c.GetState())
	assert.Equal(t, "", c.GetName())
	assert.Nil(t, c.GetCurrentMode())
	assert.True(t, b.hasCall("Uninitialize"))
}

func Test_disconnectUninitializes(t *testing.T) {
	b := &fakeBackend{}
	core := newCore(testConfig(), nil)
	src := singleOutputSource()
	d := newTestDevice(core, "card0", src, b)
	c := d.findConnector(61)
	require.NoError(t, c.Initialize(nil))

	src.setConnected(61, false)
	core.refreshConnectors()
	assert.False(t, c.IsConnected())
	assert.Equal(t, StateUninitialized, c.GetState())
	assert.Nil(t, d.crtcs[0].boundConnector)
}
