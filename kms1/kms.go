// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"errors"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

const (
	dbusServiceName        = "org.deepin.dde.Kms1"
	dbusInterface          = dbusServiceName
	dbusPath               = "/org/deepin/dde/Kms1"
	dbusConnectorInterface = dbusInterface + ".Connector"
)

var logger = log.NewLogger("daemon/kms")

var _manager *Manager

func ServiceName() string {
	return dbusServiceName
}

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}

// Start 导出 Manager，打开所有 card 并开始监听热插拔，最后申请服务名。
func Start(service *dbusutil.Service, cfg *Config) error {
	if _manager != nil {
		return errors.New("already started")
	}
	if cfg == nil {
		cfg = newDefaultConfig()
	}
	if cfg.Debug {
		logger.SetLogLevel(log.LevelDebug)
	}

	m := newManager(service, cfg)
	err := service.Export(dbusPath, m)
	if err != nil {
		return err
	}

	m.core.rescan()
	m.core.startHotplug(service.Conn())

	err = service.RequestName(dbusServiceName)
	if err != nil {
		m.core.destroy()
		_ = service.StopExport(m)
		return err
	}
	_manager = m
	return nil
}

// Stop 反初始化所有 connector 并关闭设备。
func Stop() error {
	if _manager == nil {
		return nil
	}
	_manager.core.destroy()
	err := _manager.service.StopExport(_manager)
	_manager = nil
	return err
}
