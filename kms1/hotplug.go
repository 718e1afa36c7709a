// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/godbus/dbus/v5"
	login1 "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.login1"
	"github.com/linuxdeepin/go-gir/gudev-1.0"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/dbusutil/proxy"
)

const cardSettleDelay = 100 * time.Millisecond

// hotplugMonitor 汇总 card 节点增删、udev 热插拔事件和定时轮询，
// 所有刷新都在同一个 goroutine 上执行。
type hotplugMonitor struct {
	core    *Core
	watcher *fsnotify.Watcher
	udev    *gudev.Client
	refresh chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup

	sigLoop       *dbusutil.SignalLoop
	login1Manager login1.Manager
}

// rescan 重新枚举设备并刷新 connector 状态。
func (core *Core) rescan() {
	core.scanMu.Lock()
	defer core.scanMu.Unlock()
	core.scanDevices()
	core.refreshConnectorsLocked()
}

func (core *Core) refreshConnectors() {
	core.scanMu.Lock()
	defer core.scanMu.Unlock()
	core.refreshConnectorsLocked()
}

func (core *Core) startHotplug(sysBus *dbus.Conn) {
	m := &hotplugMonitor{
		core:    core,
		refresh: make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warning("failed to create device watcher:", err)
	} else {
		dir := filepath.Dir(core.cfg.DeviceGlob)
		err = watcher.Add(dir)
		if err != nil {
			logger.Warningf("failed to watch %s: %v", dir, err)
			_ = watcher.Close()
		} else {
			m.watcher = watcher
		}
	}

	m.udev = gudev.NewClient([]string{"drm"})
	if m.udev != nil {
		m.udev.Connect("uevent", m.handleUEvent)
	}

	if sysBus != nil {
		m.sigLoop = dbusutil.NewSignalLoop(sysBus, 10)
		m.login1Manager = login1.NewManager(sysBus)
		m.login1Manager.InitSignalExt(m.sigLoop, true)
		_, err = m.login1Manager.ConnectPrepareForSleep(func(isSleep bool) {
			logger.Debugf("PrepareForSleep %v", isSleep)
			if isSleep {
				core.pauseAll()
			} else {
				core.resumeAll()
				m.requestRefresh()
			}
		})
		if err != nil {
			logger.Warning("failed to connect signal PrepareForSleep:", err)
		}
		m.sigLoop.Start()
	}

	core.hotplug = m
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop()
	}()
}

func (m *hotplugMonitor) loop() {
	var events <-chan fsnotify.Event
	var errs <-chan error
	if m.watcher != nil {
		events = m.watcher.Events
		errs = m.watcher.Errors
	}

	var tick <-chan time.Time
	if interval := m.core.cfg.pollInterval; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-m.quit:
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warning("device watcher error:", err)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isCardNode(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debug("card node changed:", ev)
			// 等 udev 设置好权限
			<-time.After(cardSettleDelay)
			m.core.rescan()
		case <-m.refresh:
			m.core.refreshConnectors()
		case <-tick:
			m.core.refreshConnectors()
		}
	}
}

func (m *hotplugMonitor) requestRefresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// handleUEvent 运行在 glib 主循环上，只投递刷新请求。
func (m *hotplugMonitor) handleUEvent(client *gudev.Client, action string, device *gudev.Device) {
	defer device.Unref()
	logger.Debugf("drm uevent %s %s", action, device.GetName())
	if action == "change" && device.GetProperty("HOTPLUG") == "1" {
		m.requestRefresh()
	}
}

func (m *hotplugMonitor) stop() {
	close(m.quit)
	m.wg.Wait()
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	if m.udev != nil {
		m.udev.Unref()
	}
	if m.sigLoop != nil {
		m.login1Manager.RemoveHandler(proxy.RemoveAllHandlers)
		m.sigLoop.Stop()
	}
}

// pauseAll 在系统休眠前暂停所有正在显示的 connector。
func (core *Core) pauseAll() {
	core.sleepMu.Lock()
	defer core.sleepMu.Unlock()
	for _, connector := range core.getConnectors() {
		if connector.GetState() != StateInitialized {
			continue
		}
		err := connector.Pause()
		if err != nil {
			logger.Warningf("pause connector %s failed: %v", connector.GetName(), err)
			continue
		}
		core.pausedForSleep = append(core.pausedForSleep, connector)
	}
}

// resumeAll 只恢复因休眠而暂停的 connector。
func (core *Core) resumeAll() {
	core.sleepMu.Lock()
	defer core.sleepMu.Unlock()
	for _, connector := range core.pausedForSleep {
		if connector.GetState() != StatePaused {
			continue
		}
		err := connector.Resume()
		if err != nil {
			logger.Warningf("resume connector %s failed: %v", connector.GetName(), err)
		}
	}
	core.pausedForSleep = nil
}
