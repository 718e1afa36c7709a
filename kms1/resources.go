// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"fmt"
)

// PlaneType 与内核 plane 的 "type" 枚举属性取值一致。
type PlaneType uint32

const (
	PlaneTypeOverlay PlaneType = 0
	PlaneTypePrimary PlaneType = 1
	PlaneTypeCursor  PlaneType = 2
)

func (t PlaneType) String() string {
	switch t {
	case PlaneTypeOverlay:
		return "overlay"
	case PlaneTypePrimary:
		return "primary"
	case PlaneTypeCursor:
		return "cursor"
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

type Encoder struct {
	id     uint32
	device *Device
	// 能驱动的 crtc，只在创建时读取一次
	crtcs []*Crtc
}

func (e *Encoder) ID() uint32 {
	return e.id
}

func (e *Encoder) String() string {
	return fmt.Sprintf("<Encoder id=%d>", e.id)
}

type Crtc struct {
	id     uint32
	index  int
	device *Device

	// 由 device.allocMu 保护
	boundConnector *Connector
}

func (c *Crtc) ID() uint32 {
	return c.id
}

func (c *Crtc) String() string {
	return fmt.Sprintf("<Crtc id=%d>", c.id)
}

type Plane struct {
	id     uint32
	typ    PlaneType
	device *Device
	crtcs  []*Crtc

	// 由 device.allocMu 保护
	owner *Connector
}

func (p *Plane) ID() uint32 {
	return p.id
}

func (p *Plane) Type() PlaneType {
	return p.typ
}

func (p *Plane) String() string {
	return fmt.Sprintf("<Plane id=%d type=%s>", p.id, p.typ)
}

func (p *Plane) canAttach(crtc *Crtc) bool {
	for _, c := range p.crtcs {
		if c == crtc {
			return true
		}
	}
	return false
}

// crtcsFromMask 把 possible_crtcs 位掩码转换成 crtc 列表，保持 crtc 枚举顺序。
func crtcsFromMask(crtcs []*Crtc, mask uint32) []*Crtc {
	var result []*Crtc
	for _, crtc := range crtcs {
		if crtc.index < 32 && mask&(1<<uint(crtc.index)) != 0 {
			result = append(result, crtc)
		}
	}
	return result
}
