// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NeowayLabs/drm/mode"
)

const (
	typeVGA   uint32 = 1
	typeDP    uint32 = 10
	typeHDMIA uint32 = 11
	typeEDP   uint32 = 14
)

var errFake = errors.New("fake failure")

type fakeSource struct {
	mu         sync.Mutex
	crtcs      []uint32
	encoders   []*EncoderInfo
	planes     []*PlaneInfo
	connectors []*ConnectorInfo
	props      map[uint32]PropertyTable
	blobs      map[uint32][]byte
	// 读取这些 connector 时返回错误
	brokenConnectors map[uint32]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		props:            make(map[uint32]PropertyTable),
		blobs:            make(map[uint32][]byte),
		brokenConnectors: make(map[uint32]bool),
	}
}

func (s *fakeSource) addCrtcs(ids ...uint32) *fakeSource {
	s.crtcs = append(s.crtcs, ids...)
	return s
}

func (s *fakeSource) addEncoder(id, possibleCrtcs uint32) *fakeSource {
	s.encoders = append(s.encoders, &EncoderInfo{ID: id, PossibleCrtcs: possibleCrtcs})
	return s
}

func (s *fakeSource) addPlane(id, possibleCrtcs uint32, typ PlaneType) *fakeSource {
	s.planes = append(s.planes, &PlaneInfo{ID: id, PossibleCrtcs: possibleCrtcs, Type: typ})
	return s
}

func (s *fakeSource) addConnector(id, typ uint32, connected bool, encoders []uint32, modes ...mode.Info) *fakeSource {
	s.connectors = append(s.connectors, &ConnectorInfo{
		ID:        id,
		Type:      typ,
		Connected: connected,
		MmWidth:   600,
		MmHeight:  340,
		Encoders:  encoders,
		Modes:     modes,
	})
	return s
}

func (s *fakeSource) setEdid(connectorId, blobId uint32, edid []byte) *fakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[connectorId] = append(s.props[connectorId], Property{ID: 1001, Name: connectorPropEDID, Value: uint64(blobId)})
	s.blobs[blobId] = edid
	return s
}

func (s *fakeSource) setConnected(connectorId uint32, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, info := range s.connectors {
		if info.ID == connectorId {
			info.Connected = connected
		}
	}
}

func (s *fakeSource) setConnectorBroken(connectorId uint32, broken bool) *fakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brokenConnectors[connectorId] = broken
	return s
}

func (s *fakeSource) Resources() (*DeviceResources, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := &DeviceResources{Crtcs: append([]uint32(nil), s.crtcs...)}
	for _, e := range s.encoders {
		res.Encoders = append(res.Encoders, e.ID)
	}
	for _, p := range s.planes {
		res.Planes = append(res.Planes, p.ID)
	}
	for _, c := range s.connectors {
		res.Connectors = append(res.Connectors, c.ID)
	}
	return res, nil
}

func (s *fakeSource) Encoder(id uint32) (*EncoderInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.encoders {
		if e.ID == id {
			info := *e
			return &info, nil
		}
	}
	return nil, fmt.Errorf("no encoder %d", id)
}

func (s *fakeSource) Plane(id uint32) (*PlaneInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.planes {
		if p.ID == id {
			info := *p
			return &info, nil
		}
	}
	return nil, fmt.Errorf("no plane %d", id)
}

func (s *fakeSource) Connector(id uint32) (*ConnectorInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.brokenConnectors[id] {
		return nil, errFake
	}
	for _, c := range s.connectors {
		if c.ID == id {
			info := *c
			info.Encoders = append([]uint32(nil), c.Encoders...)
			info.Modes = append([]mode.Info(nil), c.Modes...)
			return &info, nil
		}
	}
	return nil, fmt.Errorf("no connector %d", id)
}

func (s *fakeSource) ConnectorProperties(id uint32) (PropertyTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(PropertyTable(nil), s.props[id]...), nil
}

func (s *fakeSource) Blob(id uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("no blob %d", id)
	}
	return blob, nil
}

// testModeInfo 生成一个 60Hz 的模式。
func testModeInfo(width, height uint16, preferred bool) mode.Info {
	info := mode.Info{
		Hdisplay: width,
		Htotal:   width + 160,
		Vdisplay: height,
		Vtotal:   height + 40,
		Vrefresh: 60,
	}
	info.Clock = uint32(info.Htotal) * uint32(info.Vtotal) * 60 / 1000
	if preferred {
		info.Type |= modeTypePreferred
	}
	copy(info.Name[:], fmt.Sprintf("%dx%d", width, height))
	return info
}

// fakeBackend 记录调用，翻页默认立即完成。
type fakeBackend struct {
	mu sync.Mutex

	initErr        error
	updateModeErrs []error
	resumeErr      error
	manualFlip     bool

	calls         []string
	updateStates  []ConnectorState
	// UpdateMode 被调用时是否还有未完成的翻页
	updateFlipPending []bool
	renders           int
	flipArms          int
	flipUserData      []uint64
	flipPending       bool
	doubleRenders     int
	connector         *Connector
	flipSequence      uint32
}

func (b *fakeBackend) record(call string) {
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) Initialize(c *Connector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Initialize")
	b.connector = c
	return b.initErr
}

func (b *fakeBackend) Render(c *Connector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Render")
	if b.flipPending {
		b.doubleRenders++
	}
	b.renders++
}

func (b *fakeBackend) FlipPage(c *Connector) error {
	userData := c.pageFlipUserData()
	b.mu.Lock()
	b.record("FlipPage")
	b.flipArms++
	b.flipUserData = append(b.flipUserData, userData)
	b.flipPending = true
	manual := b.manualFlip
	b.mu.Unlock()

	if !manual {
		b.completeFlip()
	}
	return nil
}

// completeFlip 模拟事件线程送达翻页完成事件。
func (b *fakeBackend) completeFlip() bool {
	b.mu.Lock()
	if !b.flipPending {
		b.mu.Unlock()
		return false
	}
	b.flipPending = false
	b.flipSequence++
	seq := b.flipSequence
	c := b.connector
	userData := b.flipUserData[len(b.flipUserData)-1]
	b.mu.Unlock()

	c.device.handlePageFlip(0, seq, time.Now(), userData)
	return true
}

func (b *fakeBackend) lastFlipUserData() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flipUserData[len(b.flipUserData)-1]
}

func (b *fakeBackend) UpdateMode(c *Connector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("UpdateMode")
	b.updateStates = append(b.updateStates, c.GetState())
	c.mu.Lock()
	b.updateFlipPending = append(b.updateFlipPending, c.pendingPageFlip)
	c.mu.Unlock()
	if len(b.updateModeErrs) > 0 {
		err := b.updateModeErrs[0]
		b.updateModeErrs = b.updateModeErrs[1:]
		return err
	}
	return nil
}

func (b *fakeBackend) Pause(c *Connector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Pause")
}

func (b *fakeBackend) Resume(c *Connector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Resume")
	return b.resumeErr
}

func (b *fakeBackend) Uninitialize(c *Connector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Uninitialize")
}

func (b *fakeBackend) stats() (renders, flipArms, doubleRenders int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renders, b.flipArms, b.doubleRenders
}

func (b *fakeBackend) hasCall(call string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c == call {
			return true
		}
	}
	return false
}

func testConfig() *Config {
	cfg := newDefaultConfig()
	cfg.AutoEnable = false
	cfg.pageFlipTimeout = 100 * time.Millisecond
	return cfg
}

// newTestDevice 创建设备并加入 core，所有 connector 共用 backend。
func newTestDevice(core *Core, name string, src *fakeSource, backend *fakeBackend) *Device {
	d, err := newDevice(core, name, src, nil)
	if err != nil {
		panic(err)
	}
	if backend != nil {
		d.newBackend = func() RenderBackend {
			return backend
		}
	}
	core.addDevice(d)
	return d
}

// singleOutputSource 是一个 crtc、一个 primary plane、一个 cursor plane 的设备。
func singleOutputSource() *fakeSource {
	return newFakeSource().
		addCrtcs(31).
		addEncoder(41, 0x1).
		addPlane(51, 0x1, PlaneTypePrimary).
		addPlane(52, 0x1, PlaneTypeCursor).
		addConnector(61, typeHDMIA, true, []uint32{41},
			testModeInfo(1920, 1080, true),
			testModeInfo(1280, 720, false))
}

func makeEdid(pnpId string, productCode uint16, name string) []byte {
	edid := make([]byte, edidBlockLen)
	copy(edid, edidHeader)
	var brand uint16
	for _, ch := range []byte(pnpId) {
		brand = brand<<5 | uint16(ch-'A'+1)
	}
	edid[8] = byte(brand >> 8)
	edid[9] = byte(brand)
	edid[10] = byte(productCode)
	edid[11] = byte(productCode >> 8)
	if name != "" {
		desc := edid[edidDescriptorStart : edidDescriptorStart+edidDescriptorLen]
		desc[3] = edidDescriptorTagName
		text := []byte(name + "\n")
		for len(text) < 13 {
			text = append(text, ' ')
		}
		copy(desc[5:], text)
	}
	return edid
}
