// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"strconv"
)

// 与内核 drm_connector_enum_list 顺序一致
var connectorTypeStrings = []string{
	"Unknown",
	"VGA",
	"DVI-I",
	"DVI-D",
	"DVI-A",
	"Composite",
	"SVIDEO",
	"LVDS",
	"Component",
	"DIN",
	"DP",
	"HDMI-A",
	"HDMI-B",
	"TV",
	"eDP",
	"Virtual",
	"DSI",
	"DPI",
	"Writeback",
	"SPI",
	"USB",
}

func connectorTypeString(typ uint32) string {
	if int(typ) < len(connectorTypeStrings) {
		return connectorTypeStrings[typ]
	}
	return "Unknown"
}

func formatConnectorName(typ uint32, nameId int) string {
	return connectorTypeString(typ) + "-" + strconv.Itoa(nameId)
}

// getFreeNameId 返回最小的未被其他同类型 connector 使用的编号。
// 每次都完整扫描所有设备。
// NOTE: 调用者需持有 core.namesMu
func (core *Core) getFreeNameId(connector *Connector) int {
	used := make(map[int]struct{})
	for _, device := range core.getDevices() {
		for _, other := range device.connectors {
			if other == connector || other.typ != connector.typ || other.nameId < 0 {
				continue
			}
			used[other.nameId] = struct{}{}
		}
	}

	id := 0
	for {
		if _, ok := used[id]; !ok {
			return id
		}
		id++
	}
}

// updateConnectorNames 重新分配 connector 的名字，已连接时再从 EDID 读取厂商和型号。
// 返回 false 表示识别信息没能读出来，名字本身总是会分配。
func (core *Core) updateConnectorNames(connector *Connector) bool {
	core.namesMu.Lock()
	connector.destroyNames()
	nameId := core.getFreeNameId(connector)
	connector.nameId = nameId
	name := formatConnectorName(connector.typ, nameId)
	core.namesMu.Unlock()

	connector.PropsMu.Lock()
	connector.setPropName(name)
	connected := connector.Connected
	connector.PropsMu.Unlock()

	if !connected {
		connector.PropsMu.Lock()
		connector.setPropUuid(getConnectorUuid(name, nil))
		connector.PropsMu.Unlock()
		return false
	}

	edid, err := connector.readEdid()
	if err != nil {
		logger.Warningf("read edid of connector %s failed: %v", name, err)
	}
	manufacturer, model := parseEdid(edid)
	if manufacturer == "" && len(edid) > 0 {
		logger.Warningf("failed to parse edid of connector %s", name)
	}

	connector.PropsMu.Lock()
	connector.setPropManufacturer(manufacturer)
	connector.setPropModel(model)
	connector.setPropUuid(getConnectorUuid(name, edid))
	connector.PropsMu.Unlock()
	return err == nil && manufacturer != ""
}
