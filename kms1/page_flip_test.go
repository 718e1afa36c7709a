// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendVblankEvent(buf []byte, typ uint32, ev vblankEvent) []byte {
	b := make([]byte, drmEventVblankLen)
	binary.NativeEndian.PutUint32(b[0:4], typ)
	binary.NativeEndian.PutUint32(b[4:8], drmEventVblankLen)
	binary.NativeEndian.PutUint64(b[8:16], ev.userData)
	binary.NativeEndian.PutUint32(b[16:20], ev.tvSec)
	binary.NativeEndian.PutUint32(b[20:24], ev.tvUsec)
	binary.NativeEndian.PutUint32(b[24:28], ev.sequence)
	binary.NativeEndian.PutUint32(b[28:32], ev.crtcId)
	return append(buf, b...)
}

type flipRecord struct {
	crtcId, sequence uint32
	ts               time.Time
	userData         uint64
}

func recordFlips(records *[]flipRecord) *eventContext {
	return &eventContext{
		pageFlipHandler: func(crtcId, sequence uint32, ts time.Time, userData uint64) {
			*records = append(*records, flipRecord{crtcId, sequence, ts, userData})
		},
	}
}

func Test_handleDrmEvents(t *testing.T) {
	var buf []byte
	buf = appendVblankEvent(buf, drmEventFlipComplete, vblankEvent{
		userData: 61, tvSec: 100, tvUsec: 250, sequence: 7, crtcId: 31})
	buf = appendVblankEvent(buf, drmEventVblank, vblankEvent{userData: 99})
	buf = appendVblankEvent(buf, drmEventFlipComplete, vblankEvent{
		userData: 62, tvSec: 101, sequence: 8, crtcId: 32})

	var records []flipRecord
	n := handleDrmEvents(buf, recordFlips(&records))
	assert.Equal(t, 2, n)
	require.Len(t, records, 2)
	assert.Equal(t, uint32(31), records[0].crtcId)
	assert.Equal(t, uint32(7), records[0].sequence)
	assert.Equal(t, uint64(61), records[0].userData)
	assert.Equal(t, time.Unix(100, 250000), records[0].ts)
	assert.Equal(t, uint64(62), records[1].userData)
}

func Test_handleDrmEventsTruncated(t *testing.T) {
	buf := appendVblankEvent(nil, drmEventFlipComplete, vblankEvent{userData: 61})
	buf = appendVblankEvent(buf, drmEventFlipComplete, vblankEvent{userData: 62})

	var records []flipRecord
	n := handleDrmEvents(buf[:len(buf)-4], recordFlips(&records))
	assert.Equal(t, 1, n)

	// 长度字段非法时停止解析
	bad := make([]byte, drmEventHeaderLen)
	binary.NativeEndian.PutUint32(bad[0:4], drmEventFlipComplete)
	binary.NativeEndian.PutUint32(bad[4:8], 4)
	records = nil
	assert.Equal(t, 0, handleDrmEvents(bad, recordFlips(&records)))
	assert.Empty(t, records)

	assert.Equal(t, 0, handleDrmEvents(nil, recordFlips(&records)))
}

func Test_devicePageFlipDispatch(t *testing.T) {
	b := &fakeBackend{manualFlip: true}
	d, c := setupConnector(t, b)
	require.NoError(t, c.Initialize(nil))
	defer c.Uninitialize() // nolint
	waitFlipArms(t, b, 1)

	ctx := &eventContext{pageFlipHandler: d.handlePageFlip}
	// 未知的 connector 被忽略
	handleDrmEvents(appendVblankEvent(nil, drmEventFlipComplete, vblankEvent{userData: 1000}), ctx)
	c.mu.Lock()
	assert.True(t, c.pendingPageFlip)
	c.mu.Unlock()

	// 代数不对的完成事件被忽略
	userData := b.lastFlipUserData()
	connectorId, gen := splitPageFlipUserData(userData)
	assert.Equal(t, uint32(61), connectorId)
	handleDrmEvents(appendVblankEvent(nil, drmEventFlipComplete, vblankEvent{
		userData: uint64(gen+1)<<32 | 61}), ctx)
	c.mu.Lock()
	assert.True(t, c.pendingPageFlip)
	c.mu.Unlock()

	handleDrmEvents(appendVblankEvent(nil, drmEventFlipComplete, vblankEvent{
		userData: userData, tvSec: 5, sequence: 42, crtcId: 31}), ctx)
	c.mu.Lock()
	assert.False(t, c.pendingPageFlip)
	assert.Equal(t, uint32(42), c.lastFlipSequence)
	assert.Equal(t, time.Unix(5, 0), c.lastFlipTime)
	c.mu.Unlock()
}
