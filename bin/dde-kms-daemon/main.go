// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"os"
	"os/signal"

	"github.com/linuxdeepin/dde-kms-daemon/kms1"
	glib "github.com/linuxdeepin/go-gir/glib-2.0"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/sys/unix"
)

var logger = log.NewLogger("daemon/dde-kms-daemon")

var (
	configFile string
	verbose    bool
)

func init() {
	flag.StringVar(&configFile, "config", kms1.DefaultConfigFile, "config file")
	flag.BoolVar(&verbose, "v", false, "show debug log")
}

func main() {
	flag.Parse()

	cfg, err := kms1.LoadConfig(configFile)
	if err != nil {
		logger.Warningf("load config %s failed: %v", configFile, err)
	}
	if verbose || cfg.Debug {
		logger.SetLogLevel(log.LevelDebug)
		kms1.SetLogLevel(log.LevelDebug)
	}

	service, err := dbusutil.NewSystemService()
	if err != nil {
		logger.Fatal("failed to new system service", err)
	}

	hasOwner, err := service.NameHasOwner(kms1.ServiceName())
	if err != nil {
		logger.Fatal("failed to call NameHasOwner:", err)
	}
	if hasOwner {
		logger.Warningf("name %q already has the owner", kms1.ServiceName())
		os.Exit(1)
	}

	err = kms1.Start(service, cfg)
	if err != nil {
		logger.Fatal("failed to start kms service:", err)
	}

	// NOTE: udev 热插拔通知依赖 glib 主循环
	go glib.StartLoop()

	// 退出前恢复 crtc
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal", sig)
		err := kms1.Stop()
		if err != nil {
			logger.Warning(err)
		}
		service.Quit()
	}()

	service.Wait()
}
