// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	drmEventVblank       = 0x01
	drmEventFlipComplete = 0x02
	drmEventCrtcSequence = 0x03

	drmEventHeaderLen = 8
	// struct drm_event_vblank
	drmEventVblankLen = 32

	eventPollTimeoutMs = 200
	eventBufferLen     = 1024
)

// eventContext 是事件回调表，目前只处理翻页完成事件。
type eventContext struct {
	pageFlipHandler func(crtcId, sequence uint32, ts time.Time, userData uint64)
}

type vblankEvent struct {
	userData uint64
	tvSec    uint32
	tvUsec   uint32
	sequence uint32
	crtcId   uint32
}

// handleDrmEvents 解析一次 read 得到的事件，返回处理的翻页事件个数。
func handleDrmEvents(buf []byte, ctx *eventContext) int {
	handled := 0
	for len(buf) >= drmEventHeaderLen {
		typ := binary.NativeEndian.Uint32(buf[0:4])
		length := binary.NativeEndian.Uint32(buf[4:8])
		if length < drmEventHeaderLen || int(length) > len(buf) {
			logger.Warningf("invalid drm event length %d", length)
			return handled
		}

		switch typ {
		case drmEventFlipComplete:
			if length < drmEventVblankLen {
				logger.Warningf("short flip complete event, length %d", length)
				break
			}
			ev := decodeVblankEvent(buf[:length])
			if ctx.pageFlipHandler != nil {
				ts := time.Unix(int64(ev.tvSec), int64(ev.tvUsec)*int64(time.Microsecond))
				ctx.pageFlipHandler(ev.crtcId, ev.sequence, ts, ev.userData)
				handled++
			}
		case drmEventVblank, drmEventCrtcSequence:
			// 不关心
		default:
			logger.Debugf("unknown drm event type %d", typ)
		}
		buf = buf[length:]
	}
	return handled
}

func decodeVblankEvent(buf []byte) vblankEvent {
	return vblankEvent{
		userData: binary.NativeEndian.Uint64(buf[8:16]),
		tvSec:    binary.NativeEndian.Uint32(buf[16:20]),
		tvUsec:   binary.NativeEndian.Uint32(buf[20:24]),
		sequence: binary.NativeEndian.Uint32(buf[24:28]),
		crtcId:   binary.NativeEndian.Uint32(buf[28:32]),
	}
}

// eventLoop 在独立的 goroutine 上读取 card 节点的事件，
// 把翻页完成通知转发给对应 connector 的渲染线程。
type eventLoop struct {
	file *os.File
	ctx  *eventContext
	quit chan struct{}
	wg   sync.WaitGroup
}

func newEventLoop(file *os.File, ctx *eventContext) *eventLoop {
	return &eventLoop{
		file: file,
		ctx:  ctx,
		quit: make(chan struct{}),
	}
}

func (l *eventLoop) start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run()
	}()
}

func (l *eventLoop) run() {
	fd := int(l.file.Fd())
	buf := make([]byte, eventBufferLen)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		select {
		case <-l.quit:
			return
		default:
		}

		n, err := unix.Poll(fds, eventPollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			logger.Warning("poll drm fd failed:", err)
			return
		}
		if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err = unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			logger.Warning("read drm events failed:", err)
			return
		}
		handleDrmEvents(buf[:n], l.ctx)
	}
}

func (l *eventLoop) stop() {
	close(l.quit)
	l.wg.Wait()
}
