// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

func (m *Manager) GetInterfaceName() string {
	return dbusInterface
}

func (m *Manager) GetExportedMethods() dbusutil.ExportedMethods {
	return dbusutil.ExportedMethods{
		{
			Name:    "ListConnectors",
			Fn:      m.ListConnectors,
			OutArgs: []string{"connectors"},
		},
		{
			Name:    "GetConnectorByName",
			Fn:      m.GetConnectorByName,
			InArgs:  []string{"name"},
			OutArgs: []string{"connector"},
		},
		{
			Name: "Rescan",
			Fn:   m.Rescan,
		},
	}
}

func (m *Manager) ListConnectors() ([]dbus.ObjectPath, *dbus.Error) {
	m.PropsMu.RLock()
	defer m.PropsMu.RUnlock()
	paths := make([]dbus.ObjectPath, len(m.Connectors))
	copy(paths, m.Connectors)
	return paths, nil
}

func (m *Manager) GetConnectorByName(name string) (dbus.ObjectPath, *dbus.Error) {
	c := m.findConnectorByName(name)
	if c == nil {
		return "/", dbusutil.ToError(fmt.Errorf("connector %q not found", name))
	}
	return c.getPath(), nil
}

func (m *Manager) Rescan() *dbus.Error {
	logger.Debug("dbus call Rescan")
	m.core.rescan()
	return nil
}
