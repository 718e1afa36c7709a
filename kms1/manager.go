// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"sort"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

//go:generate dbusutil-gen -output kms1_dbusutil.go -import github.com/godbus/dbus/v5 -type Manager,Connector manager.go connector.go

// Manager 是 DBus 上的入口对象，connector 随设备增删而导出和撤销。
type Manager struct {
	service busService
	core    *Core

	PropsMu sync.RWMutex
	// dbusutil-gen: equal=objectPathsEqual
	Connectors []dbus.ObjectPath

	signals *struct { // nolint
		ConnectorAdded struct {
			path dbus.ObjectPath
		}
		ConnectorRemoved struct {
			path dbus.ObjectPath
		}
	}
}

func newManager(service *dbusutil.Service, cfg *Config) *Manager {
	m := &Manager{
		service: busService{service},
	}
	m.core = newCore(cfg, m)
	return m
}

func (m *Manager) connectorAdded(c *Connector) {
	path := c.getPath()
	if m.service.Service != nil {
		err := m.service.Export(path, c)
		if err != nil {
			logger.Warningf("export connector %s failed: %v", c.GetName(), err)
			return
		}
		c.setService(m.service.Service)
	}

	m.PropsMu.Lock()
	paths := append(m.Connectors[:len(m.Connectors):len(m.Connectors)], path)
	sortPaths(paths)
	m.setPropConnectors(paths)
	m.PropsMu.Unlock()

	m.emitSignal("ConnectorAdded", path)
}

func (m *Manager) connectorRemoved(c *Connector) {
	path := c.getPath()
	if m.service.Service != nil {
		c.setService(nil)
		err := m.service.StopExport(c)
		if err != nil {
			logger.Warning(err)
		}
	}

	m.PropsMu.Lock()
	var paths []dbus.ObjectPath
	for _, p := range m.Connectors {
		if p != path {
			paths = append(paths, p)
		}
	}
	m.setPropConnectors(paths)
	m.PropsMu.Unlock()

	m.emitSignal("ConnectorRemoved", path)
}

func (m *Manager) emitSignal(name string, path dbus.ObjectPath) {
	if m.service.Service == nil {
		return
	}
	err := m.service.Emit(m, name, path)
	if err != nil {
		logger.Warning(err)
	}
}

func (m *Manager) findConnectorByName(name string) *Connector {
	for _, c := range m.core.getConnectors() {
		if c.GetName() == name {
			return c
		}
	}
	return nil
}

// busService 在对象还没导出时不发属性变化信号。
type busService struct {
	*dbusutil.Service
}

func (s busService) EmitPropertyChanged(v dbusutil.Implementer, propertyName string, value interface{}) error {
	if s.Service == nil {
		return nil
	}
	err := s.Service.EmitPropertyChanged(v, propertyName, value)
	if err != nil {
		logger.Warningf("emit %s changed failed: %v", propertyName, err)
	}
	return err
}

func objectPathsEqual(a, b []dbus.ObjectPath) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortPaths(paths []dbus.ObjectPath) {
	sort.Slice(paths, func(i, j int) bool {
		return paths[i] < paths[j]
	})
}
