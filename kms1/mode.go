// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"bytes"
	"fmt"

	"github.com/NeowayLabs/drm/mode"
)

const (
	modeTypePreferred uint32 = 1 << 3

	modeFlagInterlace uint32 = 1 << 4
	modeFlagDblScan   uint32 = 1 << 5
)

// ConnectorMode 属于唯一的 connector，刷新模式列表时整体替换。
type ConnectorMode struct {
	id        uint32
	info      mode.Info
	preferred bool
}

func newConnectorMode(id uint32, info mode.Info) *ConnectorMode {
	return &ConnectorMode{
		id:        id,
		info:      info,
		preferred: info.Type&modeTypePreferred != 0,
	}
}

func (m *ConnectorMode) ID() uint32 {
	return m.id
}

func (m *ConnectorMode) Width() uint16 {
	return m.info.Hdisplay
}

func (m *ConnectorMode) Height() uint16 {
	return m.info.Vdisplay
}

func (m *ConnectorMode) Preferred() bool {
	return m.preferred
}

func (m *ConnectorMode) Rate() float64 {
	return calcModeRate(m.info)
}

func (m *ConnectorMode) Name() string {
	name := m.info.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if len(name) == 0 {
		return fmt.Sprintf("%dx%d", m.Width(), m.Height())
	}
	return string(name)
}

func (m *ConnectorMode) area() int {
	return int(m.info.Hdisplay) * int(m.info.Vdisplay)
}

func (m *ConnectorMode) String() string {
	return fmt.Sprintf("<Mode %s %.2fHz preferred=%v>", m.Name(), m.Rate(), m.preferred)
}

func (m *ConnectorMode) toModeInfo() ModeInfo {
	return ModeInfo{
		Id:     m.id,
		Width:  m.Width(),
		Height: m.Height(),
		Rate:   m.Rate(),
	}
}

// ModeInfo 是通过 DBus 导出的模式描述。
type ModeInfo struct {
	Id     uint32
	Width  uint16
	Height uint16
	Rate   float64
}

func (mi ModeInfo) isZero() bool {
	return mi == ModeInfo{}
}

func modeInfosEqual(v1, v2 []ModeInfo) bool {
	if len(v1) != len(v2) {
		return false
	}
	for i, e1 := range v1 {
		if e1 != v2[i] {
			return false
		}
	}
	return true
}

func calcModeRate(info mode.Info) float64 {
	vTotal := float64(info.Vtotal)
	if info.Flags&modeFlagDblScan != 0 {
		/* doublescan doubles the number of lines */
		vTotal *= 2
	}
	if info.Flags&modeFlagInterlace != 0 {
		/* interlace splits the frame into two fields */
		vTotal /= 2
	}
	if vTotal > 0 && info.Vscan > 1 {
		vTotal *= float64(info.Vscan)
	}

	if info.Htotal == 0 || vTotal == 0 {
		return float64(info.Vrefresh)
	}
	// Clock 的单位是 kHz
	return float64(info.Clock) * 1000 / (float64(info.Htotal) * vTotal)
}

// findPreferredMode 返回第一个带 preferred 标记的模式，
// 都没有时返回面积最大的，面积相同取先出现的。
func findPreferredMode(modes []*ConnectorMode) *ConnectorMode {
	var preferred *ConnectorMode
	greatestSize := -1
	for _, m := range modes {
		if m.preferred {
			return m
		}
		if size := m.area(); size > greatestSize {
			greatestSize = size
			preferred = m
		}
	}
	return preferred
}

func findMode(modes []*ConnectorMode, id uint32) *ConnectorMode {
	for _, m := range modes {
		if m.id == id {
			return m
		}
	}
	return nil
}

func toModeInfos(modes []*ConnectorMode) []ModeInfo {
	result := make([]ModeInfo, 0, len(modes))
	for _, m := range modes {
		result = append(result, m.toModeInfo())
	}
	return result
}
