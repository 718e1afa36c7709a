// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"errors"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/go-lib/log"
)

var ErrNoValidConfiguration = errors.New("no valid encoder, crtc and primary plane configuration")

const (
	scorePrimaryPlane = 100
	scoreCursorPlane  = 50
)

// configuration 是 connector 可用的一组硬件资源，cursorPlane 可以为 nil。
type configuration struct {
	encoder      *Encoder
	crtc         *Crtc
	primaryPlane *Plane
	cursorPlane  *Plane
}

func (cfg configuration) isValid() bool {
	return cfg.encoder != nil && cfg.crtc != nil && cfg.primaryPlane != nil
}

// findBestConfiguration 在 connector 的候选 encoder 中查找得分最高的组合。
// 必须有 primary plane，有 cursor plane 加分，overlay plane 不参与。
// 得分相同时保留先找到的。
// NOTE: 调用者需持有 d.allocMu
func (d *Device) findBestConfiguration(connector *Connector) (configuration, error) {
	var best configuration
	bestScore := 0

	for _, encoder := range connector.getEncoders() {
		for _, crtc := range encoder.crtcs {
			// 已经被其他 connector 使用
			if crtc.boundConnector != nil {
				continue
			}

			var primaryPlane, cursorPlane *Plane
			for _, plane := range d.planes {
				if plane.owner != nil || !plane.canAttach(crtc) {
					continue
				}
				switch plane.typ {
				case PlaneTypePrimary:
					if primaryPlane == nil {
						primaryPlane = plane
					}
				case PlaneTypeCursor:
					if cursorPlane == nil {
						cursorPlane = plane
					}
				}
			}

			// 没有 primary plane 无法显示
			if primaryPlane == nil {
				continue
			}

			score := scorePrimaryPlane
			if cursorPlane != nil {
				score += scoreCursorPlane
			}

			if score > bestScore {
				bestScore = score
				best = configuration{
					encoder:      encoder,
					crtc:         crtc,
					primaryPlane: primaryPlane,
					cursorPlane:  cursorPlane,
				}
			}
		}
	}

	if !best.isValid() {
		return configuration{}, ErrNoValidConfiguration
	}
	return best, nil
}

// claimConfiguration 查找并占用资源，查找和占用在同一次加锁内完成。
func (d *Device) claimConfiguration(connector *Connector) (configuration, error) {
	d.allocMu.Lock()
	defer d.allocMu.Unlock()

	if connector.crtc != nil {
		return configuration{}, ErrInvalidState
	}

	cfg, err := d.findBestConfiguration(connector)
	if err != nil {
		return configuration{}, err
	}

	cfg.crtc.boundConnector = connector
	cfg.primaryPlane.owner = connector
	if cfg.cursorPlane != nil {
		cfg.cursorPlane.owner = connector
	}
	connector.encoder = cfg.encoder
	connector.crtc = cfg.crtc
	connector.primaryPlane = cfg.primaryPlane
	connector.cursorPlane = cfg.cursorPlane

	if logger.GetLogLevel() == log.LevelDebug {
		logger.Debugf("connector %d claimed configuration: %s", connector.id, spew.Sdump(cfg.ids()))
	}
	return cfg, nil
}

func (d *Device) releaseConfiguration(connector *Connector) {
	d.allocMu.Lock()
	defer d.allocMu.Unlock()

	if connector.crtc != nil && connector.crtc.boundConnector == connector {
		connector.crtc.boundConnector = nil
	}
	if connector.primaryPlane != nil && connector.primaryPlane.owner == connector {
		connector.primaryPlane.owner = nil
	}
	if connector.cursorPlane != nil && connector.cursorPlane.owner == connector {
		connector.cursorPlane.owner = nil
	}
	connector.encoder = nil
	connector.crtc = nil
	connector.primaryPlane = nil
	connector.cursorPlane = nil
}

type configurationIds struct {
	Encoder      uint32
	Crtc         uint32
	PrimaryPlane uint32
	CursorPlane  uint32
}

func (cfg configuration) ids() configurationIds {
	var ids configurationIds
	if cfg.encoder != nil {
		ids.Encoder = cfg.encoder.id
	}
	if cfg.crtc != nil {
		ids.Crtc = cfg.crtc.id
	}
	if cfg.primaryPlane != nil {
		ids.PrimaryPlane = cfg.primaryPlane.id
	}
	if cfg.cursorPlane != nil {
		ids.CursorPlane = cfg.cursorPlane.id
	}
	return ids
}
