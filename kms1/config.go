// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "/etc/deepin/dde-kms-daemon/config.yaml"

	defaultDeviceGlob            = "/dev/dri/card*"
	defaultConnectorPollInterval = 5 * time.Second
	defaultPageFlipTimeout       = 1 * time.Second
	defaultBackground            = "#000000"
)

type Config struct {
	Debug           bool     `yaml:"Debug"`
	DeviceGlob      string   `yaml:"DeviceGlob"`
	DeviceBlacklist []string `yaml:"DeviceBlacklist"`
	RenderMode      string   `yaml:"RenderMode"`
	AutoEnable      bool     `yaml:"AutoEnable"`
	// 0 表示不轮询
	ConnectorPollInterval string `yaml:"ConnectorPollInterval"`
	PageFlipTimeout       string `yaml:"PageFlipTimeout"`
	Background            string `yaml:"Background"`

	renderMode      RenderMode
	pollInterval    time.Duration
	pageFlipTimeout time.Duration
	background      [3]uint8
}

func newDefaultConfig() *Config {
	cfg := &Config{
		DeviceGlob:            defaultDeviceGlob,
		RenderMode:            RenderModeItself.String(),
		AutoEnable:            true,
		ConnectorPollInterval: defaultConnectorPollInterval.String(),
		PageFlipTimeout:       defaultPageFlipTimeout.String(),
		Background:            defaultBackground,
	}
	cfg.fix()
	return cfg
}

// LoadConfig 读取配置文件，文件不存在时返回默认配置。
func LoadConfig(filename string) (*Config, error) {
	cfg := newDefaultConfig()
	content, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	err = yaml.Unmarshal(content, cfg)
	if err != nil {
		return newDefaultConfig(), err
	}
	cfg.fix()
	return cfg, nil
}

// fix 解析字符串字段，非法值回退到默认值。
func (cfg *Config) fix() {
	if cfg.DeviceGlob == "" {
		cfg.DeviceGlob = defaultDeviceGlob
	}

	renderMode, err := parseRenderMode(cfg.RenderMode)
	if err != nil {
		logger.Warning(err)
	}
	cfg.renderMode = renderMode

	cfg.pollInterval = parseDurationOr(cfg.ConnectorPollInterval, defaultConnectorPollInterval)
	cfg.pageFlipTimeout = parseDurationOr(cfg.PageFlipTimeout, defaultPageFlipTimeout)
	if cfg.pageFlipTimeout <= 0 {
		cfg.pageFlipTimeout = defaultPageFlipTimeout
	}

	bg, err := parseColor(cfg.Background)
	if err != nil {
		logger.Warning(err)
		bg, _ = parseColor(defaultBackground)
	}
	cfg.background = bg
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		logger.Warningf("invalid duration %q, use %v", s, fallback)
		return fallback
	}
	return d
}

// parseColor 解析 #rrggbb 格式的颜色。
func parseColor(s string) ([3]uint8, error) {
	var rgb [3]uint8
	if len(s) != 7 || !strings.HasPrefix(s, "#") {
		return rgb, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return rgb, fmt.Errorf("invalid color %q: %w", s, err)
	}
	rgb[0] = uint8(v >> 16)
	rgb[1] = uint8(v >> 8)
	rgb[2] = uint8(v)
	return rgb, nil
}

func (cfg *Config) newPainter() Painter {
	return newSolidPainter(cfg.background[0], cfg.background[1], cfg.background[2])
}
