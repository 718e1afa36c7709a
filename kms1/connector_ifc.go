// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

func (c *Connector) GetInterfaceName() string {
	return dbusConnectorInterface
}

func (c *Connector) getPath() dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/Connector_%s_%d", dbusPath, c.device.shortName(), c.id))
}

// Pause、Resume 等名字已被控制接口占用，DBus 方法用 dbus 后缀的实现。
func (c *Connector) GetExportedMethods() dbusutil.ExportedMethods {
	return dbusutil.ExportedMethods{
		{
			Name: "Enable",
			Fn:   c.enableDBus,
		},
		{
			Name: "Disable",
			Fn:   c.disableDBus,
		},
		{
			Name: "Pause",
			Fn:   c.pauseDBus,
		},
		{
			Name: "Resume",
			Fn:   c.resumeDBus,
		},
		{
			Name:   "SetMode",
			Fn:     c.setModeDBus,
			InArgs: []string{"id"},
		},
		{
			Name: "Repaint",
			Fn:   c.repaintDBus,
		},
		{
			Name:    "GetFrameStats",
			Fn:      c.getFrameStatsDBus,
			OutArgs: []string{"rendered", "flipped"},
		},
	}
}

func (c *Connector) enableDBus() *dbus.Error {
	logger.Debug("dbus call Enable", c.getPath())
	var painter Painter
	if c.device.core != nil {
		painter = c.device.core.cfg.newPainter()
	}
	err := c.Initialize(painter)
	return dbusutil.ToError(err)
}

func (c *Connector) disableDBus() *dbus.Error {
	logger.Debug("dbus call Disable", c.getPath())
	err := c.Uninitialize()
	return dbusutil.ToError(err)
}

func (c *Connector) pauseDBus() *dbus.Error {
	logger.Debug("dbus call Pause", c.getPath())
	err := c.Pause()
	return dbusutil.ToError(err)
}

func (c *Connector) resumeDBus() *dbus.Error {
	logger.Debug("dbus call Resume", c.getPath())
	err := c.Resume()
	return dbusutil.ToError(err)
}

func (c *Connector) setModeDBus(id uint32) *dbus.Error {
	logger.Debug("dbus call SetMode", c.getPath(), id)
	c.PropsMu.RLock()
	m := findMode(c.modes, id)
	c.PropsMu.RUnlock()
	if m == nil {
		return dbusutil.ToError(fmt.Errorf("%w: %d", ErrModeNotFound, id))
	}
	err := c.SetMode(m)
	return dbusutil.ToError(err)
}

func (c *Connector) repaintDBus() *dbus.Error {
	err := c.Repaint()
	return dbusutil.ToError(err)
}

func (c *Connector) getFrameStatsDBus() (rendered, flipped uint64, busErr *dbus.Error) {
	rendered, flipped = c.FrameStats()
	return rendered, flipped, nil
}

// setService 在导出成功后调用，停止导出前先置空。
func (c *Connector) setService(service *dbusutil.Service) {
	c.PropsMu.Lock()
	c.service = busService{service}
	c.PropsMu.Unlock()
}
