// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"errors"
	"os"

	"github.com/NeowayLabs/drm/mode"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

const (
	dumbBufferDepth = 24
	dumbBufferBpp   = 32
)

type dumbBuffer struct {
	fb    *mode.FB
	fbID  uint32
	data  []byte
	frame Frame
}

// dumbScanout 是 dumbBackend 用到的 card 操作。
type dumbScanout interface {
	getCrtc(id uint32) (*mode.Crtc, error)
	setCrtc(crtcId, fbId, x, y uint32, connectors []uint32, info *mode.Info) error
	createBuffer(width, height uint16) (*dumbBuffer, error)
	destroyBuffer(buf *dumbBuffer)
	pageFlip(crtcId, fbId uint32, userData uint64) error
}

type cardScanout struct {
	file *os.File
}

func (s *cardScanout) getCrtc(id uint32) (*mode.Crtc, error) {
	return mode.GetCrtc(s.file, id)
}

func (s *cardScanout) setCrtc(crtcId, fbId, x, y uint32, connectors []uint32, info *mode.Info) error {
	var connPtr *uint32
	if len(connectors) > 0 {
		connPtr = &connectors[0]
	}
	return mode.SetCrtc(s.file, crtcId, fbId, x, y, connPtr, len(connectors), info)
}

func (s *cardScanout) pageFlip(crtcId, fbId uint32, userData uint64) error {
	return pageFlip(s.file, crtcId, fbId, pageFlipEvent, userData)
}

func (s *cardScanout) createBuffer(width, height uint16) (*dumbBuffer, error) {
	file := s.file
	fb, err := mode.CreateFB(file, width, height, dumbBufferBpp)
	if err != nil {
		return nil, xerrors.Errorf("create dumb buffer %dx%d: %w", width, height, err)
	}
	buf := &dumbBuffer{fb: fb}

	buf.fbID, err = mode.AddFB(file, width, height, dumbBufferDepth, dumbBufferBpp, fb.Pitch, fb.Handle)
	if err != nil {
		_ = mode.DestroyDumb(file, fb.Handle)
		return nil, xerrors.Errorf("add framebuffer: %w", err)
	}

	offset, err := mode.MapDumb(file, fb.Handle)
	if err != nil {
		s.destroyBuffer(buf)
		return nil, xerrors.Errorf("map dumb buffer: %w", err)
	}

	buf.data, err = unix.Mmap(int(file.Fd()), int64(offset), int(fb.Size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		s.destroyBuffer(buf)
		return nil, xerrors.Errorf("mmap dumb buffer: %w", err)
	}
	buf.frame = Frame{
		Width:  fb.Width,
		Height: fb.Height,
		Stride: fb.Pitch,
		Pix:    buf.data,
	}
	return buf, nil
}

func (s *cardScanout) destroyBuffer(buf *dumbBuffer) {
	if buf.data != nil {
		err := unix.Munmap(buf.data)
		if err != nil {
			logger.Warning(err)
		}
		buf.data = nil
	}
	if buf.fbID != 0 {
		err := mode.RmFB(s.file, buf.fbID)
		if err != nil {
			logger.Warning(err)
		}
	}
	err := mode.DestroyDumb(s.file, buf.fb.Handle)
	if err != nil {
		logger.Warning(err)
	}
}

// dumbBackend 用两块 dumb buffer 交替扫描输出，内容由 Painter 软件绘制。
type dumbBackend struct {
	scanout   dumbScanout
	buffers   [2]*dumbBuffer
	front     int
	savedCrtc *mode.Crtc
}

func newDumbBackend() *dumbBackend {
	return &dumbBackend{}
}

func (b *dumbBackend) Initialize(c *Connector) error {
	if b.scanout == nil {
		if c.device.file == nil {
			return errors.New("device has no card file")
		}
		b.scanout = &cardScanout{file: c.device.file}
	}
	crtc := c.GetCrtc()
	if crtc == nil {
		return errors.New("connector has no crtc")
	}

	savedCrtc, err := b.scanout.getCrtc(crtc.id)
	if err != nil {
		logger.Warningf("get crtc %d failed: %v", crtc.id, err)
	} else {
		b.savedCrtc = savedCrtc
	}

	c.painter.InitializeFrame(c)
	err = b.createBuffers(c)
	if err == nil {
		err = b.modeset(c)
	}
	if err != nil {
		// 失败时渲染线程直接退出，不会再调用 Uninitialize
		b.destroyBuffers()
		c.painter.UninitializeFrame(c)
		b.savedCrtc = nil
		return err
	}
	return nil
}

func (b *dumbBackend) modeset(c *Connector) error {
	crtc := c.GetCrtc()
	m := c.GetCurrentMode()
	if crtc == nil || m == nil {
		return errors.New("connector has no crtc or mode")
	}
	front := b.buffers[b.front]
	c.painter.PaintFrame(c, &front.frame)

	info := m.info
	err := b.scanout.setCrtc(crtc.id, front.fbID, 0, 0, []uint32{c.id}, &info)
	if err != nil {
		return xerrors.Errorf("set crtc %d: %w", crtc.id, err)
	}
	return nil
}

func (b *dumbBackend) createBuffers(c *Connector) error {
	m := c.GetCurrentMode()
	if m == nil {
		return ErrNoModes
	}
	for i := range b.buffers {
		buf, err := b.scanout.createBuffer(m.Width(), m.Height())
		if err != nil {
			b.destroyBuffers()
			return err
		}
		b.buffers[i] = buf
	}
	b.front = 0
	return nil
}

func (b *dumbBackend) destroyBuffers() {
	for i, buf := range b.buffers {
		if buf != nil {
			b.scanout.destroyBuffer(buf)
			b.buffers[i] = nil
		}
	}
}

func (b *dumbBackend) Render(c *Connector) {
	back := b.buffers[1-b.front]
	if back == nil {
		return
	}
	c.painter.PaintFrame(c, &back.frame)
}

func (b *dumbBackend) FlipPage(c *Connector) error {
	back := b.buffers[1-b.front]
	crtc := c.GetCrtc()
	if back == nil || crtc == nil {
		return errors.New("no buffer or crtc to flip")
	}
	err := b.scanout.pageFlip(crtc.id, back.fbID, c.pageFlipUserData())
	if err != nil {
		return xerrors.Errorf("page flip on crtc %d: %w", crtc.id, err)
	}
	b.front = 1 - b.front
	return nil
}

func (b *dumbBackend) UpdateMode(c *Connector) error {
	b.destroyBuffers()
	err := b.createBuffers(c)
	if err != nil {
		return err
	}
	c.painter.ResizeFrame(c)
	return b.modeset(c)
}

// Pause 释放缓冲区，保留 crtc 和 plane 的绑定。
func (b *dumbBackend) Pause(c *Connector) {
	b.destroyBuffers()
}

func (b *dumbBackend) Resume(c *Connector) error {
	err := b.createBuffers(c)
	if err != nil {
		return err
	}
	err = b.modeset(c)
	if err != nil {
		b.destroyBuffers()
		return err
	}
	return nil
}

func (b *dumbBackend) Uninitialize(c *Connector) {
	crtc := c.GetCrtc()
	if crtc != nil {
		var err error
		if b.savedCrtc != nil && b.savedCrtc.ModeValid != 0 {
			err = b.scanout.setCrtc(b.savedCrtc.ID, b.savedCrtc.BufferID,
				b.savedCrtc.X, b.savedCrtc.Y, []uint32{c.id}, &b.savedCrtc.Mode)
		} else {
			err = b.scanout.setCrtc(crtc.id, 0, 0, 0, nil, nil)
		}
		if err != nil {
			logger.Warningf("restore crtc %d failed: %v", crtc.id, err)
		}
	}
	b.destroyBuffers()
	c.painter.UninitializeFrame(c)
}
