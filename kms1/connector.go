// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/xerrors"
)

var (
	ErrInvalidState     = errors.New("invalid connector state")
	ErrNotConnected     = errors.New("connector is not connected")
	ErrNoModes          = errors.New("connector has no modes")
	ErrModeNotFound     = errors.New("mode does not belong to connector")
	ErrRenderInitFailed = errors.New("render backend initialization failed")
	ErrModeReverted     = errors.New("mode change failed, prior mode restored")
	errNoEdid           = errors.New("connector has no EDID property")
)

type Connector struct {
	id      uint32
	device  *Device
	service busService
	// 由 core.namesMu 保护，第一次读到 connector 信息后不再改变
	typ       uint32
	typeKnown bool

	// 由 core.namesMu 保护，-1 表示还没有分配名字
	nameId int

	PropsMu       sync.RWMutex
	encoders      []*Encoder
	modes         []*ConnectorMode
	preferredMode *ConnectorMode
	currentMode   *ConnectorMode
	prevMode      *ConnectorMode
	propIDs       ConnectorPropIDs
	propValues    connectorPropValues

	Name           string
	Uuid           string
	Manufacturer   string
	Model          string
	Connected      bool
	MmWidth        uint32
	MmHeight       uint32
	NonDesktop     bool
	VrrCapable     bool
	State          string
	CrtcId         uint32
	EncoderId      uint32
	HasCursorPlane bool
	CurrentMode    ModeInfo
	PreferredMode  ModeInfo
	// dbusutil-gen: equal=modeInfosEqual
	Modes []ModeInfo

	// 由 device.allocMu 保护
	encoder      *Encoder
	crtc         *Crtc
	primaryPlane *Plane
	cursorPlane  *Plane

	// 串行化 Initialize、SetMode、Pause、Resume、Uninitialize
	ctrlMu sync.Mutex

	// 以下由 mu 保护，渲染线程通过 cond 等待
	mu               sync.Mutex
	cond             *sync.Cond
	state            ConnectorState
	initResult       initResult
	threadRunning    bool
	threadDone       chan struct{}
	request          renderRequest
	requestSeq       uint64
	handledSeq       uint64
	requestErr       error
	repaintRequested bool
	pendingPageFlip  bool
	// 每次提交翻页加一，跨越多次初始化也不清零
	flipGen          uint32
	renderCount      uint64
	flipCount        uint64
	lastFlipSequence uint32
	lastFlipTime     time.Time

	backend RenderBackend
	painter Painter
}

func newConnector(device *Device, id uint32) *Connector {
	c := &Connector{
		id:     id,
		device: device,
		nameId: -1,
		state:  StateUninitialized,
		State:  StateUninitialized.String(),
	}
	c.cond = sync.NewCond(&c.mu)

	c.updateProperties()
	// 名字在 device 加入 core 之后才分配
	c.updateEncoders()
	c.updateModes()
	return c
}

func (c *Connector) String() string {
	return fmt.Sprintf("<Connector id=%d name=%s>", c.id, c.GetName())
}

func (c *Connector) ID() uint32 {
	return c.id
}

func (c *Connector) Device() *Device {
	return c.device
}

func (c *Connector) lockNames() {
	if c.device.core != nil {
		c.device.core.namesMu.Lock()
	}
}

func (c *Connector) unlockNames() {
	if c.device.core != nil {
		c.device.core.namesMu.Unlock()
	}
}

func (c *Connector) Type() uint32 {
	c.lockNames()
	defer c.unlockNames()
	return c.typ
}

func (c *Connector) TypeString() string {
	return connectorTypeString(c.Type())
}

func (c *Connector) isTypeKnown() bool {
	c.lockNames()
	defer c.unlockNames()
	return c.typeKnown
}

func (c *Connector) GetName() string {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.Name
}

func (c *Connector) GetManufacturer() string {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.Manufacturer
}

func (c *Connector) GetModel() string {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.Model
}

func (c *Connector) IsConnected() bool {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.Connected
}

func (c *Connector) isNonDesktop() bool {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.NonDesktop
}

func (c *Connector) GetModes() []*ConnectorMode {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	modes := make([]*ConnectorMode, len(c.modes))
	copy(modes, c.modes)
	return modes
}

func (c *Connector) GetCurrentMode() *ConnectorMode {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.currentMode
}

func (c *Connector) GetPreferredMode() *ConnectorMode {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.preferredMode
}

func (c *Connector) getEncoders() []*Encoder {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	encoders := make([]*Encoder, len(c.encoders))
	copy(encoders, c.encoders)
	return encoders
}

func (c *Connector) GetPropIDs() ConnectorPropIDs {
	c.PropsMu.RLock()
	defer c.PropsMu.RUnlock()
	return c.propIDs
}

func (c *Connector) GetState() ConnectorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connector) GetCrtc() *Crtc {
	c.device.allocMu.Lock()
	defer c.device.allocMu.Unlock()
	return c.crtc
}

func (c *Connector) GetEncoder() *Encoder {
	c.device.allocMu.Lock()
	defer c.device.allocMu.Unlock()
	return c.encoder
}

func (c *Connector) GetPrimaryPlane() *Plane {
	c.device.allocMu.Lock()
	defer c.device.allocMu.Unlock()
	return c.primaryPlane
}

func (c *Connector) GetCursorPlane() *Plane {
	c.device.allocMu.Lock()
	defer c.device.allocMu.Unlock()
	return c.cursorPlane
}

// updateProperties 重新读取连接状态、物理尺寸和属性表。
func (c *Connector) updateProperties() bool {
	info, err := c.device.source.Connector(c.id)
	if err != nil {
		logger.Warningf("could not get device %s connector %d resources: %v", c.device.name, c.id, err)
		return false
	}
	c.lockNames()
	if !c.typeKnown {
		c.typ = info.Type
		c.typeKnown = true
	}
	c.unlockNames()

	c.PropsMu.Lock()
	c.setPropConnected(info.Connected)
	c.setPropMmWidth(info.MmWidth)
	c.setPropMmHeight(info.MmHeight)
	c.PropsMu.Unlock()

	table, err := c.device.source.ConnectorProperties(c.id)
	if err != nil {
		logger.Warningf("could not get device %s connector %d properties: %v", c.device.name, c.id, err)
		return false
	}
	ids, values := resolveConnectorProps(table)

	c.PropsMu.Lock()
	c.propIDs = ids
	c.propValues = values
	c.setPropNonDesktop(values.nonDesktop)
	c.setPropVrrCapable(values.vrrCapable)
	c.PropsMu.Unlock()
	return true
}

func (c *Connector) updateEncoders() bool {
	c.PropsMu.Lock()
	c.encoders = nil
	c.PropsMu.Unlock()

	info, err := c.device.source.Connector(c.id)
	if err != nil {
		logger.Warningf("could not get device %s connector %d resources: %v", c.device.name, c.id, err)
		return false
	}

	var encoders []*Encoder
	for _, encoderId := range info.Encoders {
		encoder := c.device.findEncoder(encoderId)
		if encoder != nil {
			encoders = append(encoders, encoder)
		}
	}

	c.PropsMu.Lock()
	c.encoders = encoders
	c.PropsMu.Unlock()
	return true
}

// updateModes 重建模式列表，preferred 模式同时作为当前模式。
// 渲染线程运行时当前模式正在使用，不允许刷新。
func (c *Connector) updateModes() bool {
	if c.isRunning() {
		logger.Debugf("connector %d is running, skip updating modes", c.id)
		return false
	}

	c.PropsMu.Lock()
	c.destroyModes()
	c.PropsMu.Unlock()

	info, err := c.device.source.Connector(c.id)
	if err != nil {
		logger.Warningf("could not get device %s connector %d resources: %v", c.device.name, c.id, err)
		return false
	}

	modes := make([]*ConnectorMode, 0, len(info.Modes))
	for i, m := range info.Modes {
		modes = append(modes, newConnectorMode(uint32(i+1), m))
	}
	preferred := findPreferredMode(modes)

	c.PropsMu.Lock()
	c.modes = modes
	c.preferredMode = preferred
	c.currentMode = preferred
	c.setPropModes(toModeInfos(modes))
	c.setPropPreferredMode(toModeInfoOrZero(preferred))
	c.setPropCurrentMode(toModeInfoOrZero(preferred))
	c.PropsMu.Unlock()
	return true
}

// NOTE: 调用者需持有 c.PropsMu
func (c *Connector) destroyModes() {
	c.modes = nil
	c.preferredMode = nil
	c.currentMode = nil
	c.prevMode = nil
	c.setPropModes(nil)
	c.setPropPreferredMode(ModeInfo{})
	c.setPropCurrentMode(ModeInfo{})
}

// NOTE: 调用者需持有 core.namesMu
func (c *Connector) destroyNames() {
	c.nameId = -1
	c.PropsMu.Lock()
	c.setPropName("")
	c.setPropManufacturer("")
	c.setPropModel("")
	c.PropsMu.Unlock()
}

func (c *Connector) readEdid() ([]byte, error) {
	c.PropsMu.RLock()
	propId := c.propIDs.EDID
	blobId := c.propValues.edidBlob
	c.PropsMu.RUnlock()

	if propId == 0 || blobId == 0 {
		return nil, errNoEdid
	}
	return c.device.source.Blob(blobId)
}

func toModeInfoOrZero(m *ConnectorMode) ModeInfo {
	if m == nil {
		return ModeInfo{}
	}
	return m.toModeInfo()
}

func (c *Connector) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadRunning
}

// Initialize 为 connector 分配硬件资源并启动渲染线程，
// 等渲染后端初始化有了结果才返回。
func (c *Connector) Initialize(painter Painter) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	c.mu.Lock()
	if c.state != StateUninitialized || c.threadRunning {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.mu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	if c.GetCurrentMode() == nil {
		return ErrNoModes
	}

	cfg, err := c.device.claimConfiguration(c)
	if err != nil {
		logger.Warningf("connector %d: %v", c.id, err)
		return err
	}

	if painter == nil {
		painter = newSolidPainter(0, 0, 0)
	}
	done := make(chan struct{})

	c.mu.Lock()
	c.backend = c.device.newRenderBackend()
	c.painter = painter
	c.initResult = initPending
	c.request = requestNone
	c.requestErr = nil
	c.repaintRequested = false
	c.pendingPageFlip = false
	c.threadRunning = true
	c.threadDone = done
	c.mu.Unlock()

	go c.renderLoop(done)

	c.mu.Lock()
	for c.initResult == initPending {
		c.cond.Wait()
	}
	result := c.initResult
	c.mu.Unlock()

	if result == initFailed {
		<-done
		c.device.releaseConfiguration(c)
		c.mu.Lock()
		c.backend = nil
		c.painter = nil
		c.mu.Unlock()
		return ErrRenderInitFailed
	}

	c.PropsMu.Lock()
	c.setPropCrtcId(cfg.crtc.id)
	c.setPropEncoderId(cfg.encoder.id)
	c.setPropHasCursorPlane(cfg.cursorPlane != nil)
	c.PropsMu.Unlock()

	logger.Infof("connector %s initialized, crtc %d", c.GetName(), cfg.crtc.id)
	return nil
}

// SetMode 切换模式，后端失败时恢复原模式并返回 ErrModeReverted。
func (c *Connector) SetMode(m *ConnectorMode) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	if c.GetState() != StateInitialized {
		return ErrInvalidState
	}

	c.PropsMu.Lock()
	if m == nil || findMode(c.modes, m.id) != m {
		c.PropsMu.Unlock()
		return ErrModeNotFound
	}
	if c.currentMode == m {
		c.PropsMu.Unlock()
		return nil
	}
	c.prevMode = c.currentMode
	c.currentMode = m
	c.PropsMu.Unlock()

	err := c.waitRequest(c.submitRequest(requestChangeMode))

	c.PropsMu.Lock()
	c.setPropCurrentMode(toModeInfoOrZero(c.currentMode))
	c.PropsMu.Unlock()
	return err
}

func (c *Connector) Pause() error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	if c.GetState() != StateInitialized {
		return ErrInvalidState
	}
	return c.waitRequest(c.submitRequest(requestPause))
}

func (c *Connector) Resume() error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	if c.GetState() != StatePaused {
		return ErrInvalidState
	}
	return c.waitRequest(c.submitRequest(requestResume))
}

// Uninitialize 结束渲染线程并释放 crtc 和 plane，未初始化时什么也不做。
func (c *Connector) Uninitialize() error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	c.mu.Lock()
	if !c.threadRunning {
		c.mu.Unlock()
		return nil
	}
	done := c.threadDone
	c.mu.Unlock()

	err := c.waitRequest(c.submitRequest(requestUninitialize))
	<-done
	c.device.releaseConfiguration(c)

	c.mu.Lock()
	c.backend = nil
	c.painter = nil
	c.mu.Unlock()

	c.PropsMu.Lock()
	c.setPropCrtcId(0)
	c.setPropEncoderId(0)
	c.setPropHasCursorPlane(false)
	c.PropsMu.Unlock()

	if err != nil {
		return xerrors.Errorf("uninitialize connector %d: %w", c.id, err)
	}
	logger.Infof("connector %s uninitialized", c.GetName())
	return nil
}

// Repaint 请求重绘一帧，多次请求在被处理前会合并成一次。
func (c *Connector) Repaint() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.threadRunning {
		return ErrInvalidState
	}
	c.repaintRequested = true
	c.cond.Broadcast()
	return nil
}

func (c *Connector) destroy() {
	err := c.Uninitialize()
	if err != nil {
		logger.Warning(err)
	}
	if c.device.core != nil {
		c.device.core.releaseConnectorName(c)
	}

	c.PropsMu.Lock()
	c.encoders = nil
	c.destroyModes()
	c.PropsMu.Unlock()
}
