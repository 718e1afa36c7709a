// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"github.com/NeowayLabs/drm/mode"
)

// DeviceResources 是设备上所有模式设置对象的 id，保持内核枚举顺序。
type DeviceResources struct {
	Crtcs      []uint32
	Encoders   []uint32
	Connectors []uint32
	Planes     []uint32
}

type EncoderInfo struct {
	ID uint32
	// 第 i 位对应 DeviceResources.Crtcs[i]
	PossibleCrtcs uint32
}

type PlaneInfo struct {
	ID            uint32
	PossibleCrtcs uint32
	Type          PlaneType
}

type ConnectorInfo struct {
	ID        uint32
	Type      uint32
	Connected bool
	MmWidth   uint32
	MmHeight  uint32
	Encoders  []uint32
	Modes     []mode.Info
}

type Property struct {
	ID    uint32
	Name  string
	Value uint64
}

type PropertyTable []Property

// Source 提供只读的硬件查询，每个 Device 一个。
type Source interface {
	Resources() (*DeviceResources, error)
	Encoder(id uint32) (*EncoderInfo, error)
	Plane(id uint32) (*PlaneInfo, error)
	Connector(id uint32) (*ConnectorInfo, error)
	ConnectorProperties(id uint32) (PropertyTable, error)
	Blob(id uint32) ([]byte, error)
}
