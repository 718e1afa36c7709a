// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"bytes"
	"os"
	"unsafe"

	"github.com/NeowayLabs/drm"
	"github.com/NeowayLabs/drm/ioctl"
	"github.com/NeowayLabs/drm/mode"
)

// drm/mode 只覆盖了 legacy modeset，plane、属性和 blob 的 ioctl 在这里补齐。

const (
	clientCapUniversalPlanes = 2

	objectConnector = 0xc0c0c0c0
	objectPlane     = 0xeeeeeeee

	pageFlipEvent = 0x01
)

type sysSetClientCap struct {
	capability uint64
	value      uint64
}

type sysGetPlaneResources struct {
	planeIdPtr  uint64
	countPlanes uint32
}

type sysGetPlane struct {
	planeId          uint32
	crtcId           uint32
	fbId             uint32
	possibleCrtcs    uint32
	gammaSize        uint32
	countFormatTypes uint32
	formatTypePtr    uint64
}

type sysObjGetProperties struct {
	propsPtr      uint64
	propValuesPtr uint64
	countProps    uint32
	objId         uint32
	objType       uint32
}

type sysGetProperty struct {
	valuesPtr      uint64
	enumBlobPtr    uint64
	propId         uint32
	flags          uint32
	name           [mode.PropNameLen]uint8
	countValues    uint32
	countEnumBlobs uint32
}

type sysPropertyEnum struct {
	value uint64
	name  [mode.PropNameLen]uint8
}

type sysGetBlob struct {
	blobId uint32
	length uint32
	data   uint64
}

type sysCrtcPageFlip struct {
	crtcId   uint32
	fbId     uint32
	flags    uint32
	reserved uint32
	userData uint64
}

var (
	// DRM_IOW(0x0D, struct drm_set_client_cap)
	ioctlSetClientCap = ioctl.NewCode(ioctl.Write,
		uint16(unsafe.Sizeof(sysSetClientCap{})), drm.IOCTLBase, 0x0D)

	// DRM_IOWR(0xAA, struct drm_mode_get_property)
	ioctlModeGetProperty = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetProperty{})), drm.IOCTLBase, 0xAA)

	// DRM_IOWR(0xAC, struct drm_mode_get_blob)
	ioctlModeGetPropBlob = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetBlob{})), drm.IOCTLBase, 0xAC)

	// DRM_IOWR(0xB0, struct drm_mode_crtc_page_flip)
	ioctlModePageFlip = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysCrtcPageFlip{})), drm.IOCTLBase, 0xB0)

	// DRM_IOWR(0xB5, struct drm_mode_get_plane_res)
	ioctlModeGetPlaneResources = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetPlaneResources{})), drm.IOCTLBase, 0xB5)

	// DRM_IOWR(0xB6, struct drm_mode_get_plane)
	ioctlModeGetPlane = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetPlane{})), drm.IOCTLBase, 0xB6)

	// DRM_IOWR(0xB9, struct drm_mode_obj_get_properties)
	ioctlModeObjGetProperties = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysObjGetProperties{})), drm.IOCTLBase, 0xB9)
)

func doIoctl(file *os.File, code uint32, arg unsafe.Pointer) error {
	return ioctl.Do(file.Fd(), uintptr(code), uintptr(arg))
}

func setClientCap(file *os.File, capability, value uint64) error {
	req := &sysSetClientCap{capability: capability, value: value}
	return doIoctl(file, ioctlSetClientCap, unsafe.Pointer(req))
}

func getPlaneResources(file *os.File) ([]uint32, error) {
	req := &sysGetPlaneResources{}
	err := doIoctl(file, ioctlModeGetPlaneResources, unsafe.Pointer(req))
	if err != nil {
		return nil, err
	}
	if req.countPlanes == 0 {
		return nil, nil
	}
	count := req.countPlanes
	planes := make([]uint32, count)
	req.planeIdPtr = uint64(uintptr(unsafe.Pointer(&planes[0])))
	err = doIoctl(file, ioctlModeGetPlaneResources, unsafe.Pointer(req))
	if err != nil {
		return nil, err
	}
	if req.countPlanes < count {
		count = req.countPlanes
	}
	return planes[:count], nil
}

// getPlane 不取格式列表，count_format_types 置零即可。
func getPlane(file *os.File, id uint32) (*sysGetPlane, error) {
	req := &sysGetPlane{planeId: id}
	err := doIoctl(file, ioctlModeGetPlane, unsafe.Pointer(req))
	if err != nil {
		return nil, err
	}
	return req, nil
}

func getObjectProperties(file *os.File, objId, objType uint32) (props []uint32, values []uint64, err error) {
	req := &sysObjGetProperties{objId: objId, objType: objType}
	err = doIoctl(file, ioctlModeObjGetProperties, unsafe.Pointer(req))
	if err != nil {
		return nil, nil, err
	}
	if req.countProps == 0 {
		return nil, nil, nil
	}
	count := req.countProps
	props = make([]uint32, count)
	values = make([]uint64, count)
	req.propsPtr = uint64(uintptr(unsafe.Pointer(&props[0])))
	req.propValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	err = doIoctl(file, ioctlModeObjGetProperties, unsafe.Pointer(req))
	if err != nil {
		return nil, nil, err
	}
	if req.countProps < count {
		count = req.countProps
	}
	return props[:count], values[:count], nil
}

func getPropertyName(file *os.File, id uint32) (string, error) {
	req := &sysGetProperty{propId: id}
	err := doIoctl(file, ioctlModeGetProperty, unsafe.Pointer(req))
	if err != nil {
		return "", err
	}
	// 计数非零时内核会往数组里写，必须给出缓冲区
	var (
		values []uint64
		enums  []sysPropertyEnum
	)
	if req.countValues > 0 {
		values = make([]uint64, req.countValues)
		req.valuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}
	if req.countEnumBlobs > 0 {
		enums = make([]sysPropertyEnum, req.countEnumBlobs)
		req.enumBlobPtr = uint64(uintptr(unsafe.Pointer(&enums[0])))
	}
	err = doIoctl(file, ioctlModeGetProperty, unsafe.Pointer(req))
	if err != nil {
		return "", err
	}
	name, _, _ := bytes.Cut(req.name[:], []byte{0})
	return string(name), nil
}

func getBlob(file *os.File, id uint32) ([]byte, error) {
	req := &sysGetBlob{blobId: id}
	err := doIoctl(file, ioctlModeGetPropBlob, unsafe.Pointer(req))
	if err != nil {
		return nil, err
	}
	if req.length == 0 {
		return nil, nil
	}
	data := make([]byte, req.length)
	req.data = uint64(uintptr(unsafe.Pointer(&data[0])))
	err = doIoctl(file, ioctlModeGetPropBlob, unsafe.Pointer(req))
	if err != nil {
		return nil, err
	}
	if int(req.length) < len(data) {
		data = data[:req.length]
	}
	return data, nil
}

func pageFlip(file *os.File, crtcId, fbId, flags uint32, userData uint64) error {
	req := &sysCrtcPageFlip{
		crtcId:   crtcId,
		fbId:     fbId,
		flags:    flags,
		userData: userData,
	}
	return doIoctl(file, ioctlModePageFlip, unsafe.Pointer(req))
}
