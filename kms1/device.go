// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/NeowayLabs/drm"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Device 对应一个 DRM card 节点，拥有它的全部 crtc、encoder、plane 和 connector。
type Device struct {
	core *Core
	// card 节点路径，例如 /dev/dri/card0
	name    string
	driver  string
	pciId   string
	bootVGA bool

	file   *os.File
	source Source

	renderMode RenderMode
	newBackend renderBackendFactory

	// 创建后不再改变
	crtcs      []*Crtc
	encoders   []*Encoder
	planes     []*Plane
	connectors []*Connector

	// 保护 crtc.boundConnector、plane.owner 以及 connector 的资源字段
	allocMu sync.Mutex

	events *eventLoop
}

// openDevice 打开 card 节点并加载资源，事件线程随之启动。
func openDevice(core *Core, card cardInfo) (*Device, error) {
	file, err := os.OpenFile(card.path, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, xerrors.Errorf("open %s: %w", card.path, err)
	}

	err = setClientCap(file, clientCapUniversalPlanes, 1)
	if err != nil {
		_ = file.Close()
		return nil, xerrors.Errorf("%s does not support universal planes: %w", card.path, err)
	}

	d, err := newDevice(core, card.path, newDrmSource(file), file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	d.pciId = card.pciId
	d.bootVGA = card.bootVGA

	version, err := drm.GetVersion(file)
	if err != nil {
		logger.Warningf("get driver version of %s failed: %v", card.path, err)
	} else {
		d.driver = version.Name
	}

	d.events = newEventLoop(file, &eventContext{
		pageFlipHandler: d.handlePageFlip,
	})
	d.events.start()
	return d, nil
}

func newDevice(core *Core, name string, source Source, file *os.File) (*Device, error) {
	d := &Device{
		core:   core,
		name:   name,
		file:   file,
		source: source,
	}
	if core != nil && core.cfg != nil {
		d.renderMode = core.cfg.renderMode
	}
	d.newBackend = getRenderBackendFactory(d.renderMode)

	res, err := source.Resources()
	if err != nil {
		return nil, xerrors.Errorf("could not get device %s resources: %w", name, err)
	}

	for i, crtcId := range res.Crtcs {
		d.crtcs = append(d.crtcs, &Crtc{
			id:     crtcId,
			index:  i,
			device: d,
		})
	}

	for _, encoderId := range res.Encoders {
		info, err := source.Encoder(encoderId)
		if err != nil {
			logger.Warningf("could not get device %s encoder %d: %v", name, encoderId, err)
			continue
		}
		d.encoders = append(d.encoders, &Encoder{
			id:     info.ID,
			device: d,
			crtcs:  crtcsFromMask(d.crtcs, info.PossibleCrtcs),
		})
	}

	for _, planeId := range res.Planes {
		info, err := source.Plane(planeId)
		if err != nil {
			logger.Warningf("could not get device %s plane %d: %v", name, planeId, err)
			continue
		}
		d.planes = append(d.planes, &Plane{
			id:     info.ID,
			typ:    info.Type,
			device: d,
			crtcs:  crtcsFromMask(d.crtcs, info.PossibleCrtcs),
		})
	}

	for _, connectorId := range res.Connectors {
		d.connectors = append(d.connectors, newConnector(d, connectorId))
	}

	logger.Debugf("device %s: %d crtcs, %d encoders, %d planes, %d connectors",
		name, len(d.crtcs), len(d.encoders), len(d.planes), len(d.connectors))
	return d, nil
}

func (d *Device) String() string {
	return fmt.Sprintf("<Device %s driver=%s>", d.name, d.driver)
}

func (d *Device) Name() string {
	return d.name
}

// shortName 返回节点文件名，用于拼 DBus 路径。
func (d *Device) shortName() string {
	return filepath.Base(d.name)
}

func (d *Device) Connectors() []*Connector {
	return d.connectors
}

func (d *Device) findEncoder(id uint32) *Encoder {
	for _, encoder := range d.encoders {
		if encoder.id == id {
			return encoder
		}
	}
	return nil
}

func (d *Device) findConnector(id uint32) *Connector {
	for _, connector := range d.connectors {
		if connector.id == id {
			return connector
		}
	}
	return nil
}

func (d *Device) newRenderBackend() RenderBackend {
	return d.newBackend()
}

func (d *Device) pageFlipTimeout() time.Duration {
	if d.core != nil && d.core.cfg != nil && d.core.cfg.pageFlipTimeout > 0 {
		return d.core.cfg.pageFlipTimeout
	}
	return defaultPageFlipTimeout
}

// handlePageFlip 在事件线程上调用，user data 由 Connector.pageFlipUserData 生成。
func (d *Device) handlePageFlip(crtcId, sequence uint32, ts time.Time, userData uint64) {
	connectorId, gen := splitPageFlipUserData(userData)
	connector := d.findConnector(connectorId)
	if connector == nil {
		logger.Warningf("device %s: page flip on crtc %d for unknown connector %d", d.name, crtcId, connectorId)
		return
	}
	connector.handlePageFlip(gen, sequence, ts)
}

// updateConnectors 重新探测 connector 的连接状态，返回连接状态变化了的 connector。
// 断开的 connector 会先反初始化。
func (d *Device) updateConnectors() []*Connector {
	var changed []*Connector
	for _, connector := range d.connectors {
		wasConnected := connector.IsConnected()
		wasTypeKnown := connector.isTypeKnown()
		ok := connector.updateProperties()
		if !wasTypeKnown && connector.isTypeKnown() {
			// 创建时没读到 connector 信息，编码器、模式和名字都要补上
			connector.updateEncoders()
			connector.updateModes()
			if d.core != nil {
				d.core.updateConnectorNames(connector)
			}
		}
		if !ok {
			continue
		}
		connected := connector.IsConnected()
		if connected == wasConnected {
			continue
		}

		logger.Infof("device %s connector %d connected: %v -> %v", d.name, connector.id, wasConnected, connected)
		if !connected {
			err := connector.Uninitialize()
			if err != nil {
				logger.Warning(err)
			}
		}
		connector.updateEncoders()
		connector.updateModes()
		if d.core != nil {
			d.core.updateConnectorNames(connector)
		}
		changed = append(changed, connector)
	}
	return changed
}

// destroy 先销毁 connector，再停止事件线程，最后关闭节点。
func (d *Device) destroy() {
	for _, connector := range d.connectors {
		connector.destroy()
	}
	if d.events != nil {
		d.events.stop()
		d.events = nil
	}
	if d.file != nil {
		err := d.file.Close()
		if err != nil {
			logger.Warning(err)
		}
		d.file = nil
	}
}
