// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"os"

	"github.com/NeowayLabs/drm/mode"
	"golang.org/x/xerrors"
)

const planePropType = "type"

// drmSource 通过 ioctl 直接查询 card 节点。
type drmSource struct {
	file *os.File
}

func newDrmSource(file *os.File) *drmSource {
	return &drmSource{file: file}
}

func (s *drmSource) Resources() (*DeviceResources, error) {
	res, err := mode.GetResources(s.file)
	if err != nil {
		return nil, xerrors.Errorf("get resources: %w", err)
	}
	result := &DeviceResources{
		Crtcs:      res.Crtcs,
		Encoders:   res.Encoders,
		Connectors: res.Connectors,
	}

	result.Planes, err = getPlaneResources(s.file)
	if err != nil {
		return nil, xerrors.Errorf("get plane resources: %w", err)
	}
	return result, nil
}

func (s *drmSource) Encoder(id uint32) (*EncoderInfo, error) {
	encoder, err := mode.GetEncoder(s.file, id)
	if err != nil {
		return nil, xerrors.Errorf("get encoder %d: %w", id, err)
	}
	return &EncoderInfo{
		ID:            encoder.ID,
		PossibleCrtcs: encoder.PossibleCrtcs,
	}, nil
}

func (s *drmSource) Plane(id uint32) (*PlaneInfo, error) {
	plane, err := getPlane(s.file, id)
	if err != nil {
		return nil, xerrors.Errorf("get plane %d: %w", id, err)
	}
	info := &PlaneInfo{
		ID:            plane.planeId,
		PossibleCrtcs: plane.possibleCrtcs,
		Type:          PlaneTypeOverlay,
	}

	props, err := s.objectProperties(id, objectPlane)
	if err != nil {
		return nil, err
	}
	for _, prop := range props {
		if prop.Name == planePropType {
			info.Type = PlaneType(prop.Value)
			break
		}
	}
	return info, nil
}

func (s *drmSource) Connector(id uint32) (*ConnectorInfo, error) {
	conn, err := mode.GetConnector(s.file, id)
	if err != nil {
		return nil, xerrors.Errorf("get connector %d: %w", id, err)
	}
	info := &ConnectorInfo{
		ID:        conn.ID,
		Type:      conn.Type,
		Connected: conn.Connection == mode.Connected,
		MmWidth:   conn.Width,
		MmHeight:  conn.Height,
		Encoders:  conn.Encoders,
	}
	// 没有模式时内核接口仍会返回一个全零的占位项
	for _, m := range conn.Modes {
		if m.Hdisplay == 0 || m.Vdisplay == 0 {
			continue
		}
		info.Modes = append(info.Modes, m)
	}
	return info, nil
}

func (s *drmSource) ConnectorProperties(id uint32) (PropertyTable, error) {
	return s.objectProperties(id, objectConnector)
}

func (s *drmSource) objectProperties(id uint32, objectType uint32) (PropertyTable, error) {
	propIds, values, err := getObjectProperties(s.file, id, objectType)
	if err != nil {
		return nil, xerrors.Errorf("get properties of object %d: %w", id, err)
	}
	table := make(PropertyTable, 0, len(propIds))
	for i, propId := range propIds {
		name, err := getPropertyName(s.file, propId)
		if err != nil {
			logger.Warningf("get property %d of object %d failed: %v", propId, id, err)
			continue
		}
		table = append(table, Property{
			ID:    propId,
			Name:  name,
			Value: values[i],
		})
	}
	return table, nil
}

func (s *drmSource) Blob(id uint32) ([]byte, error) {
	data, err := getBlob(s.file, id)
	if err != nil {
		return nil, xerrors.Errorf("get blob %d: %w", id, err)
	}
	return data, nil
}
