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

package mcproto

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const defaultIOTimeout = 3 * time.Second

// Conn is a single MC-protocol session. It is not safe for concurrent
// use; the caller is expected to serialize access (the connection
// manager holds a lock for the duration of every exchange).
type Conn struct {
	nc      net.Conn
	timeout time.Duration
}

// Dial opens a TCP session to the controller. The timeout bounds both
// the dial and each subsequent request/response exchange; zero selects
// the default.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = defaultIOTimeout
	}

	d := net.Dialer{Timeout: timeout}

	nc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial controller: %w", err)
	}

	return &Conn{nc: nc, timeout: timeout}, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// ReadBits reads count consecutive bit devices starting at device,
// returning one 0/1 byte per point.
func (c *Conn) ReadBits(device string, count int) ([]byte, error) {
	if count < 1 || count > 0xFFFF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	req, err := buildRequest(cmdBatchRead, subcmdBit, device, uint16(count), nil)
	if err != nil {
		return nil, err
	}

	data, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}

	return unpackBits(data, count)
}

// WriteBits writes the given 0/1 values to consecutive bit devices
// starting at device.
func (c *Conn) WriteBits(device string, values []byte) error {
	if len(values) < 1 || len(values) > 0xFFFF {
		return fmt.Errorf("%w: %d", ErrInvalidCount, len(values))
	}

	req, err := buildRequest(cmdBatchWrite, subcmdBit, device, uint16(len(values)), packBits(values))
	if err != nil {
		return err
	}

	_, err = c.roundTrip(req)

	return err
}

// ReadSignedWords reads count signed 32-bit values starting at device.
// Each value spans two consecutive 16-bit data registers, low word
// first, matching how the controller program lays out its registers.
func (c *Conn) ReadSignedWords(device string, count int) ([]int32, error) {
	if count < 1 || count > 0x7FFF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	points := uint16(count * 2)

	req, err := buildRequest(cmdBatchRead, subcmdWord, device, points, nil)
	if err != nil {
		return nil, err
	}

	data, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}

	if len(data) < int(points)*2 {
		return nil, ErrShortResponse
	}

	values := make([]int32, count)
	for i := range values {
		values[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}

	return values, nil
}

// WriteSignedWords writes signed 32-bit values starting at device, two
// registers per value.
func (c *Conn) WriteSignedWords(device string, values []int32) error {
	if len(values) < 1 || len(values) > 0x7FFF {
		return fmt.Errorf("%w: %d", ErrInvalidCount, len(values))
	}

	payload := make([]byte, 0, len(values)*4)
	for _, v := range values {
		payload = binary.LittleEndian.AppendUint32(payload, uint32(v))
	}

	req, err := buildRequest(cmdBatchWrite, subcmdWord, device, uint16(len(values)*2), payload)
	if err != nil {
		return err
	}

	_, err = c.roundTrip(req)

	return err
}

// roundTrip sends one request frame and returns the response data with
// the end code already validated and stripped.
func (c *Conn) roundTrip(req []byte) ([]byte, error) {
	if err := c.nc.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := c.nc.Write(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	header := make([]byte, 9)
	if _, err := io.ReadFull(c.nc, header); err != nil {
		return nil, fmt.Errorf("read response header: %w", err)
	}

	dataLen, err := parseResponseHeader(header)
	if err != nil {
		return nil, err
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(c.nc, data); err != nil {
		return nil, fmt.Errorf("read response data: %w", err)
	}

	if err := checkEndCode(data); err != nil {
		return nil, err
	}

	return data[2:], nil
}
