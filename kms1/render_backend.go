// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"fmt"
	"strings"
)

// RenderBackend 驱动一个已绑定硬件资源的 connector，所有方法都在该 connector 的渲染线程上调用。
type RenderBackend interface {
	Initialize(c *Connector) error
	Render(c *Connector)
	// FlipPage 只提交异步翻页，完成通知由事件线程送达。
	FlipPage(c *Connector) error
	UpdateMode(c *Connector) error
	Pause(c *Connector)
	Resume(c *Connector) error
	Uninitialize(c *Connector)
}

type RenderMode uint8

const (
	// RenderModeItself 表示设备自己分配扫描缓冲区并渲染
	RenderModeItself RenderMode = iota
)

func (m RenderMode) String() string {
	switch m {
	case RenderModeItself:
		return "itself"
	}
	return fmt.Sprintf("RenderMode(%d)", uint8(m))
}

func parseRenderMode(s string) (RenderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "itself":
		return RenderModeItself, nil
	}
	return RenderModeItself, fmt.Errorf("unknown render mode %q", s)
}

// renderBackendFactory 在设备配置时选定一次。
type renderBackendFactory func() RenderBackend

func getRenderBackendFactory(mode RenderMode) renderBackendFactory {
	switch mode {
	case RenderModeItself:
		return func() RenderBackend {
			return newDumbBackend()
		}
	}
	return nil
}

// Frame 是一块 XRGB8888 格式的映射缓冲区。
type Frame struct {
	Width  uint32
	Height uint32
	Stride uint32
	Pix    []byte
}

func (f *Frame) Fill(r, g, b uint8) {
	for y := uint32(0); y < f.Height; y++ {
		row := f.Pix[y*f.Stride : y*f.Stride+f.Width*4]
		for x := 0; x < len(row); x += 4 {
			row[x] = b
			row[x+1] = g
			row[x+2] = r
			row[x+3] = 0xff
		}
	}
}

// Painter 负责往后端的缓冲区里画内容。
type Painter interface {
	InitializeFrame(c *Connector)
	PaintFrame(c *Connector, f *Frame)
	ResizeFrame(c *Connector)
	UninitializeFrame(c *Connector)
}

type solidPainter struct {
	r, g, b uint8
}

func newSolidPainter(r, g, b uint8) *solidPainter {
	return &solidPainter{r: r, g: g, b: b}
}

func (p *solidPainter) InitializeFrame(c *Connector) {}

func (p *solidPainter) PaintFrame(c *Connector, f *Frame) {
	f.Fill(p.r, p.g, p.b)
}

func (p *solidPainter) ResizeFrame(c *Connector) {}

func (p *solidPainter) UninitializeFrame(c *Connector) {}
