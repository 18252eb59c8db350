/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mcproto implements the binary MELSEC MC protocol (3E frame)
// subset spoken by the line controller: bit and data-register access
// for X/Y/M/D devices over a plain TCP session.
package mcproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrShortResponse = errors.New("short response from controller")
	ErrBadSubheader  = errors.New("unexpected response subheader")
	ErrEndCode       = errors.New("controller returned non-zero end code")
	ErrUnknownDevice = errors.New("unknown device token")
	ErrInvalidCount  = errors.New("invalid point count")
)

const (
	cmdBatchRead  = 0x0401
	cmdBatchWrite = 0x1401

	subcmdWord = 0x0000
	subcmdBit  = 0x0001

	// Monitoring timer in 250ms units. 0x0010 = 4s, bounding how long
	// the controller itself may take to answer.
	monitoringTimer = 0x0010
)

// deviceSpec maps a device prefix to its 3E device code and the number
// base used for the address digits. X and Y are numbered in octal on
// the FX/iQ-F series; M and D are decimal.
type deviceSpec struct {
	code byte
	base int
}

var deviceSpecs = map[string]deviceSpec{
	"X":  {code: 0x9C, base: 8},
	"Y":  {code: 0x9D, base: 8},
	"M":  {code: 0x90, base: 10},
	"SM": {code: 0x91, base: 10},
	"L":  {code: 0x92, base: 10},
	"D":  {code: 0xA8, base: 10},
	"SD": {code: 0xA9, base: 10},
}

// parseDevice splits a token such as "D0", "M100" or "X1" into its 3E
// device code and head device number.
func parseDevice(device string) (code byte, number uint32, err error) {
	device = strings.ToUpper(strings.TrimSpace(device))

	prefix := ""
	for i, r := range device {
		if r >= '0' && r <= '9' {
			prefix = device[:i]
			spec, ok := deviceSpecs[prefix]
			if !ok {
				return 0, 0, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
			}

			n, perr := strconv.ParseUint(device[i:], spec.base, 24)
			if perr != nil {
				return 0, 0, fmt.Errorf("%w: %q: %w", ErrUnknownDevice, device, perr)
			}

			return spec.code, uint32(n), nil
		}
	}

	return 0, 0, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
}

// buildRequest assembles a 3E binary frame for the given command. The
// payload is the write data, nil for reads.
func buildRequest(command, subcommand uint16, device string, points uint16, payload []byte) ([]byte, error) {
	code, number, err := parseDevice(device)
	if err != nil {
		return nil, err
	}

	// Everything after the request-length field: timer, command,
	// subcommand, head device (3 bytes), device code, point count.
	dataLen := 2 + 2 + 2 + 3 + 1 + 2 + len(payload)

	buf := make([]byte, 0, 9+dataLen)
	buf = append(buf, 0x50, 0x00) // subheader
	buf = append(buf, 0x00)       // network number
	buf = append(buf, 0xFF)       // PC number
	buf = append(buf, 0xFF, 0x03) // destination module I/O
	buf = append(buf, 0x00)       // destination module station

	buf = binary.LittleEndian.AppendUint16(buf, uint16(dataLen))
	buf = binary.LittleEndian.AppendUint16(buf, monitoringTimer)
	buf = binary.LittleEndian.AppendUint16(buf, command)
	buf = binary.LittleEndian.AppendUint16(buf, subcommand)
	buf = append(buf, byte(number), byte(number>>8), byte(number>>16))
	buf = append(buf, code)
	buf = binary.LittleEndian.AppendUint16(buf, points)
	buf = append(buf, payload...)

	return buf, nil
}

// parseResponseHeader validates the fixed 9-byte response header and
// returns the number of data bytes that follow it (end code included).
func parseResponseHeader(header []byte) (int, error) {
	if len(header) < 9 {
		return 0, ErrShortResponse
	}

	if header[0] != 0xD0 || header[1] != 0x00 {
		return 0, fmt.Errorf("%w: % x", ErrBadSubheader, header[:2])
	}

	return int(binary.LittleEndian.Uint16(header[7:9])), nil
}

// checkEndCode validates the first two data bytes of a response.
func checkEndCode(data []byte) error {
	if len(data) < 2 {
		return ErrShortResponse
	}

	if end := binary.LittleEndian.Uint16(data[:2]); end != 0 {
		return fmt.Errorf("%w: 0x%04X", ErrEndCode, end)
	}

	return nil
}

// packBits packs 0/1 values two per byte, first value in the high
// nibble, as required by bit-unit write requests.
func packBits(values []byte) []byte {
	packed := make([]byte, (len(values)+1)/2)

	for i, v := range values {
		var nibble byte
		if v != 0 {
			nibble = 1
		}

		if i%2 == 0 {
			packed[i/2] |= nibble << 4
		} else {
			packed[i/2] |= nibble
		}
	}

	return packed
}

// unpackBits is the inverse of packBits for bit-unit read responses.
func unpackBits(data []byte, count int) ([]byte, error) {
	if len(data) < (count+1)/2 {
		return nil, ErrShortResponse
	}

	values := make([]byte, count)

	for i := range values {
		b := data[i/2]
		if i%2 == 0 {
			b >>= 4
		}

		values[i] = b & 0x01
	}

	return values, nil
}
