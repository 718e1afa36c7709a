// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/linuxdeepin/go-gir/gudev-1.0"
	"github.com/linuxdeepin/go-lib/strv"
)

// coreHooks 接收 connector 的增删通知，由 DBus 层实现。
type coreHooks interface {
	connectorAdded(c *Connector)
	connectorRemoved(c *Connector)
}

type cardInfo struct {
	path    string
	pciId   string
	bootVGA bool
}

// Core 管理所有 DRM 设备，connector 的名字在所有设备之间统一分配。
type Core struct {
	cfg   *Config
	hooks coreHooks

	devicesMu sync.Mutex
	devices   []*Device

	// 保护所有 connector 的 nameId
	namesMu sync.Mutex

	// 测试时替换
	open func(card cardInfo) (*Device, error)

	// 串行化设备枚举和 connector 刷新
	scanMu  sync.Mutex
	hotplug *hotplugMonitor

	sleepMu        sync.Mutex
	pausedForSleep []*Connector
}

func newCore(cfg *Config, hooks coreHooks) *Core {
	if cfg == nil {
		cfg = newDefaultConfig()
	}
	core := &Core{
		cfg:   cfg,
		hooks: hooks,
	}
	core.open = func(card cardInfo) (*Device, error) {
		return openDevice(core, card)
	}
	return core
}

func (core *Core) getDevices() []*Device {
	core.devicesMu.Lock()
	defer core.devicesMu.Unlock()
	devices := make([]*Device, len(core.devices))
	copy(devices, core.devices)
	return devices
}

func (core *Core) findDevice(name string) *Device {
	core.devicesMu.Lock()
	defer core.devicesMu.Unlock()
	for _, d := range core.devices {
		if d.name == name {
			return d
		}
	}
	return nil
}

func (core *Core) getConnectors() []*Connector {
	var connectors []*Connector
	for _, d := range core.getDevices() {
		connectors = append(connectors, d.connectors...)
	}
	return connectors
}

// scanDevices 打开所有还没打开的 card，关闭已经消失的 card。
func (core *Core) scanDevices() {
	cards := enumerateCards(core.cfg)
	present := make(map[string]struct{}, len(cards))
	for _, card := range cards {
		present[card.path] = struct{}{}
		if core.findDevice(card.path) != nil {
			continue
		}
		err := core.addCard(card)
		if err != nil {
			logger.Warning(err)
		}
	}

	for _, d := range core.getDevices() {
		if _, ok := present[d.name]; !ok {
			core.removeDevice(d.name)
		}
	}
}

func (core *Core) addCard(card cardInfo) error {
	d, err := core.open(card)
	if err != nil {
		return err
	}
	core.addDevice(d)
	return nil
}

// addDevice 加入设备后才给它的 connector 分配名字。
func (core *Core) addDevice(d *Device) {
	core.devicesMu.Lock()
	core.devices = append(core.devices, d)
	core.devicesMu.Unlock()

	logger.Infof("add device %s, driver %q, pci id %q, boot vga %v", d.name, d.driver, d.pciId, d.bootVGA)
	for _, connector := range d.connectors {
		core.updateConnectorNames(connector)
		if core.hooks != nil {
			core.hooks.connectorAdded(connector)
		}
	}
	if core.cfg.AutoEnable {
		for _, connector := range d.connectors {
			core.autoEnable(connector)
		}
	}
}

func (core *Core) removeDevice(name string) {
	core.devicesMu.Lock()
	var d *Device
	for i, device := range core.devices {
		if device.name == name {
			d = device
			core.devices = append(core.devices[:i], core.devices[i+1:]...)
			break
		}
	}
	core.devicesMu.Unlock()
	if d == nil {
		return
	}

	logger.Infof("remove device %s", name)
	if core.hooks != nil {
		for _, connector := range d.connectors {
			core.hooks.connectorRemoved(connector)
		}
	}
	d.destroy()
}

func (core *Core) releaseConnectorName(connector *Connector) {
	core.namesMu.Lock()
	connector.destroyNames()
	core.namesMu.Unlock()
}

// refreshConnectorsLocked 重新探测所有设备的 connector 连接状态。
// NOTE: 调用者需持有 core.scanMu
func (core *Core) refreshConnectorsLocked() {
	for _, d := range core.getDevices() {
		changed := d.updateConnectors()
		if !core.cfg.AutoEnable {
			continue
		}
		for _, connector := range changed {
			core.autoEnable(connector)
		}
	}
}

func (core *Core) autoEnable(connector *Connector) {
	if !connector.IsConnected() || connector.isRunning() {
		return
	}
	if connector.isNonDesktop() {
		logger.Debugf("skip non-desktop connector %s", connector.GetName())
		return
	}
	err := connector.Initialize(core.cfg.newPainter())
	if err != nil && !errors.Is(err, ErrNotConnected) {
		logger.Warningf("enable connector %s failed: %v", connector.GetName(), err)
	}
}

func (core *Core) destroy() {
	if core.hotplug != nil {
		core.hotplug.stop()
		core.hotplug = nil
	}
	core.scanMu.Lock()
	defer core.scanMu.Unlock()
	for _, d := range core.getDevices() {
		core.removeDevice(d.name)
	}
}

// enumerateCards 通过 udev 列出 card 节点，udev 不可用时退回到匹配设备文件。
func enumerateCards(cfg *Config) []cardInfo {
	cards := queryDrmCards()
	if len(cards) == 0 {
		cards = globCards(cfg.DeviceGlob)
	}
	return filterCards(cards, cfg.DeviceBlacklist)
}

func globCards(pattern string) []cardInfo {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		logger.Warning(err)
		return nil
	}
	var cards []cardInfo
	for _, path := range paths {
		if isCardNode(filepath.Base(path)) {
			cards = append(cards, cardInfo{path: path})
		}
	}
	return cards
}

// filterCards 去掉黑名单中的设备，启动显卡排在前面先分配名字。
func filterCards(cards []cardInfo, blacklist strv.Strv) []cardInfo {
	var result []cardInfo
	for _, card := range cards {
		if blacklist.Contains(card.path) {
			logger.Debugf("device %s is in blacklist", card.path)
			continue
		}
		result = append(result, card)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].bootVGA != result[j].bootVGA {
			return result[i].bootVGA
		}
		return result[i].path < result[j].path
	})
	return result
}

// isCardNode 过滤掉 renderD 节点和 card0-HDMI-A-1 这样的 connector 设备。
func isCardNode(name string) bool {
	return strings.HasPrefix(name, "card") && !strings.Contains(name, "-")
}

func queryDrmCards() []cardInfo {
	gudevClient := gudev.NewClient([]string{"drm"})
	if gudevClient == nil {
		return nil
	}
	defer gudevClient.Unref()

	devices := gudevClient.QueryBySubsystem("drm")
	defer func() {
		for _, dev := range devices {
			dev.Unref()
		}
	}()

	var cards []cardInfo
	for _, dev := range devices {
		if !isCardNode(dev.GetName()) {
			continue
		}
		path := dev.GetDeviceFile()
		if path == "" {
			continue
		}
		card := cardInfo{path: path}
		parent := dev.GetParent()
		if parent != nil {
			card.pciId = parent.GetProperty("PCI_ID")
			card.bootVGA = parent.GetSysfsAttr("boot_vga") == "1"
			parent.Unref()
		}
		cards = append(cards, card)
	}
	return cards
}
