// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

const (
	connectorPropCrtcId           = "CRTC_ID"
	connectorPropDPMS             = "DPMS"
	connectorPropEDID             = "EDID"
	connectorPropPath             = "PATH"
	connectorPropLinkStatus       = "link-status"
	connectorPropNonDesktop       = "non-desktop"
	connectorPropPanelOrientation = "panel orientation"
	connectorPropSubconnector     = "subconnector"
	connectorPropVrrCapable       = "vrr_capable"
)

// ConnectorPropIDs 记录 connector 各属性的 id，0 表示驱动没有提供该属性。
type ConnectorPropIDs struct {
	CrtcId           uint32
	DPMS             uint32
	EDID             uint32
	Path             uint32
	LinkStatus       uint32
	NonDesktop       uint32
	PanelOrientation uint32
	Subconnector     uint32
	VrrCapable       uint32
}

// connectorPropValues 是属性的当前值，目前只关心这几个。
type connectorPropValues struct {
	edidBlob   uint32
	nonDesktop bool
	vrrCapable bool
}

func resolveConnectorProps(table PropertyTable) (ids ConnectorPropIDs, values connectorPropValues) {
	for _, prop := range table {
		switch prop.Name {
		case connectorPropCrtcId:
			ids.CrtcId = prop.ID
		case connectorPropDPMS:
			ids.DPMS = prop.ID
		case connectorPropEDID:
			ids.EDID = prop.ID
			values.edidBlob = uint32(prop.Value)
		case connectorPropPath:
			ids.Path = prop.ID
		case connectorPropLinkStatus:
			ids.LinkStatus = prop.ID
		case connectorPropNonDesktop:
			ids.NonDesktop = prop.ID
			values.nonDesktop = prop.Value != 0
		case connectorPropPanelOrientation:
			ids.PanelOrientation = prop.ID
		case connectorPropSubconnector:
			ids.Subconnector = prop.ID
		case connectorPropVrrCapable:
			ids.VrrCapable = prop.ID
			values.vrrCapable = prop.Value != 0
		}
	}
	return
}
