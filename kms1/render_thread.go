// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/xerrors"
)

type ConnectorState uint32

const (
	StateUninitialized ConnectorState = iota
	StateInitialized
	StateChangingMode
	StateRevertingMode
	StatePausing
	StatePaused
	StateResuming
	StateUninitializing
)

func (s ConnectorState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateChangingMode:
		return "ChangingMode"
	case StateRevertingMode:
		return "RevertingMode"
	case StatePausing:
		return "Pausing"
	case StatePaused:
		return "Paused"
	case StateResuming:
		return "Resuming"
	case StateUninitializing:
		return "Uninitializing"
	}
	return fmt.Sprintf("ConnectorState(%d)", uint32(s))
}

// renderRequest 是控制线程交给渲染线程处理的状态切换请求。
type renderRequest uint8

const (
	requestNone renderRequest = iota
	requestChangeMode
	requestPause
	requestResume
	requestUninitialize
)

// initResult 只由渲染线程写一次。
type initResult int8

const (
	initPending initResult = iota
	initSuccess
	initFailed
)

// renderLoop 运行在独占的系统线程上，直到 connector 被反初始化。
func (c *Connector) renderLoop(done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	err := c.backend.Initialize(c)
	if err != nil {
		logger.Warningf("device %s connector %d render backend init failed: %v", c.device.name, c.id, err)
		c.mu.Lock()
		c.initResult = initFailed
		c.threadRunning = false
		c.cond.Broadcast()
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.state = StateInitialized
	c.mu.Unlock()
	c.updateStateProp(StateInitialized)

	c.mu.Lock()
	c.initResult = initSuccess
	// 初始化完成后先画第一帧
	c.repaintRequested = true
	c.cond.Broadcast()
	c.mu.Unlock()

	for {
		c.mu.Lock()
		for !c.hasWorkLocked() {
			c.cond.Wait()
		}

		// 状态切换请求优先于重绘
		if c.request != requestNone {
			req := c.request
			seq := c.requestSeq
			c.request = requestNone
			c.mu.Unlock()

			if !c.handleRequest(req, seq) {
				return
			}
			continue
		}

		c.repaintRequested = false
		c.pendingPageFlip = true
		c.flipGen++
		c.renderCount++
		c.mu.Unlock()

		c.backend.Render(c)
		err := c.backend.FlipPage(c)
		if err != nil {
			logger.Warningf("connector %d page flip failed: %v", c.id, err)
			c.mu.Lock()
			c.pendingPageFlip = false
			c.cond.Broadcast()
			c.mu.Unlock()
		}
	}
}

// NOTE: 调用者需持有 c.mu
func (c *Connector) hasWorkLocked() bool {
	if c.request != requestNone {
		return true
	}
	return c.repaintRequested && !c.pendingPageFlip && c.state == StateInitialized
}

// handleRequest 处理一个状态切换请求，返回 false 表示线程应该退出。
func (c *Connector) handleRequest(req renderRequest, seq uint64) bool {
	var err error
	repaint := false
	keepRunning := true

	switch req {
	case requestChangeMode:
		// 旧缓冲区可能还在扫描输出，先等翻页完成
		c.waitPageFlip()
		c.setState(StateChangingMode)
		err = c.backend.UpdateMode(c)
		if err != nil {
			logger.Warningf("connector %d update mode failed: %v", c.id, err)
			c.setState(StateRevertingMode)
			c.revertMode()
			if err1 := c.backend.UpdateMode(c); err1 != nil {
				logger.Warningf("connector %d restore prior mode failed: %v", c.id, err1)
			}
			err = xerrors.Errorf("%w: %v", ErrModeReverted, err)
		}
		c.setState(StateInitialized)
		repaint = true

	case requestPause:
		c.waitPageFlip()
		c.setState(StatePausing)
		c.backend.Pause(c)
		c.setState(StatePaused)
		logger.Debugf("[%s] connector %d paused", c.device.name, c.id)

	case requestResume:
		c.setState(StateResuming)
		err = c.backend.Resume(c)
		if err != nil {
			logger.Warningf("connector %d resume failed: %v", c.id, err)
			c.setState(StatePaused)
			break
		}
		c.setState(StateInitialized)
		repaint = true
		logger.Debugf("[%s] connector %d resumed", c.device.name, c.id)

	case requestUninitialize:
		c.waitPageFlip()
		c.setState(StateUninitializing)
		c.backend.Uninitialize(c)
		c.setState(StateUninitialized)
		keepRunning = false
	}

	c.mu.Lock()
	c.handledSeq = seq
	c.requestErr = err
	if repaint {
		c.repaintRequested = true
	}
	if !keepRunning {
		c.threadRunning = false
		c.repaintRequested = false
	}
	c.cond.Broadcast()
	c.mu.Unlock()
	return keepRunning
}

// setState 只由渲染线程调用。
func (c *Connector) setState(state ConnectorState) {
	c.mu.Lock()
	c.state = state
	c.cond.Broadcast()
	c.mu.Unlock()
	c.updateStateProp(state)
}

func (c *Connector) updateStateProp(state ConnectorState) {
	c.PropsMu.Lock()
	c.setPropState(state.String())
	c.PropsMu.Unlock()
}

func (c *Connector) revertMode() {
	c.PropsMu.Lock()
	defer c.PropsMu.Unlock()
	if c.prevMode != nil {
		c.currentMode = c.prevMode
		c.prevMode = nil
	}
}

// waitPageFlip 等待未完成的翻页，超时后放弃。
func (c *Connector) waitPageFlip() {
	timeout := c.device.pageFlipTimeout()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pendingPageFlip {
		return
	}

	expired := false
	timer := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		expired = true
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	for c.pendingPageFlip && !expired {
		c.cond.Wait()
	}
	timer.Stop()

	if c.pendingPageFlip {
		logger.Warningf("connector %d page flip timeout after %v", c.id, timeout)
		c.pendingPageFlip = false
	}
}

// submitRequest 由控制线程调用，请求在唤醒渲染线程之前写入。
func (c *Connector) submitRequest(req renderRequest) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.request = req
	c.requestSeq++
	c.cond.Broadcast()
	return c.requestSeq
}

func (c *Connector) waitRequest(seq uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.handledSeq < seq && c.threadRunning {
		c.cond.Wait()
	}
	if c.handledSeq < seq {
		return ErrInvalidState
	}
	return c.requestErr
}

// pageFlipUserData 编码提交翻页时带给内核的 user data：
// 低 32 位是 connector id，高 32 位是本次翻页的代数。
// 只由渲染线程在 FlipPage 中调用。
func (c *Connector) pageFlipUserData() uint64 {
	c.mu.Lock()
	gen := c.flipGen
	c.mu.Unlock()
	return uint64(gen)<<32 | uint64(c.id)
}

func splitPageFlipUserData(userData uint64) (connectorId, gen uint32) {
	return uint32(userData), uint32(userData >> 32)
}

// handlePageFlip 在事件线程上调用，翻页完成后如果有挂起的重绘请求，
// 渲染线程会被唤醒开始下一帧。
// 等待超时后才送达的旧事件代数对不上，直接丢弃。
func (c *Connector) handlePageFlip(gen, sequence uint32, ts time.Time) bool {
	c.mu.Lock()
	if !c.pendingPageFlip || gen != c.flipGen {
		c.mu.Unlock()
		logger.Debugf("connector %d drop stale page flip, gen %d", c.id, gen)
		return false
	}
	c.pendingPageFlip = false
	c.flipCount++
	c.lastFlipSequence = sequence
	c.lastFlipTime = ts
	c.cond.Broadcast()
	c.mu.Unlock()
	return true
}

// FrameStats 返回已渲染和已完成翻页的帧数。
func (c *Connector) FrameStats() (rendered, flipped uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderCount, c.flipCount
}
