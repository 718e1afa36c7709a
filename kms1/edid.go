// SPDX-FileCopyrightText: 2026 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms1

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/linuxdeepin/go-lib/utils"
)

const (
	edidBlockLen        = 128
	edidDescriptorStart = 54
	edidDescriptorLen   = 18
	edidDescriptorCount = 4

	edidDescriptorTagName = 0xfc
)

var edidHeader = []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// parseEdid 解析出厂商和型号，任何解析失败都返回空字符串。
func parseEdid(edid []byte) (manufacturer, model string) {
	if len(edid) < edidBlockLen || !bytes.Equal(edid[:len(edidHeader)], edidHeader) {
		return "", ""
	}

	// 厂商 PNP id，3 个 5 位字母
	var brand = uint16(edid[8])<<8 | uint16(edid[9])
	var maInf []byte
	for k := uint(1); k <= 3; k++ {
		m := byte(((brand>>(15-5*k))&31)+'A') - 1
		if m < 'A' || m > 'Z' {
			return "", ""
		}
		maInf = append(maInf, m)
	}
	manufacturer = string(maInf)

	for i := 0; i < edidDescriptorCount; i++ {
		desc := edid[edidDescriptorStart+i*edidDescriptorLen : edidDescriptorStart+(i+1)*edidDescriptorLen]
		// 显示描述符前 3 字节为 0，第 4 字节是标签
		if desc[0] != 0 || desc[1] != 0 || desc[2] != 0 || desc[3] != edidDescriptorTagName {
			continue
		}
		model = parseEdidString(desc[5:])
		break
	}

	if model == "" {
		// 没有型号名时，用产品码代替
		code := uint16(edid[11])<<8 | uint16(edid[10])
		model = fmt.Sprintf("0x%04X", code)
	}
	return
}

func parseEdidString(data []byte) string {
	var result []byte
	for _, b := range data {
		if b == '\n' || b == 0 {
			break
		}
		if b >= ' ' && b <= '~' {
			result = append(result, b)
		}
	}
	return strings.TrimSpace(string(result))
}

// getConnectorUuid 生成跨重启稳定的 connector 标识，与显示器 edid 绑定。
func getConnectorUuid(name string, edid []byte) string {
	if len(edid) < edidBlockLen {
		return name + "||v1"
	}

	id, _ := utils.SumStrMd5(string(edid[:edidBlockLen]))
	if id == "" {
		return name + "||v1"
	}
	return name + "|" + id + "|v1"
}
