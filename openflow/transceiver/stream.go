/*
 * Fabricd - A Spine-Leaf Fabric Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package transceiver

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"
)

// Stream is a buffered I/O channel on the switch connection.
type Stream struct {
	channel io.ReadWriteCloser

	reader struct {
		mutex sync.Mutex
		// NOTE:
		// rd needs locking, otherwise Peek()'s result slice can be
		// corrupted by subsequent Read() or ReadN() calls because
		// the result slice is just a pointer to the reader's internal
		// buffer, which will be overwritten by Read() and ReadN().
		rd      *bufio.Reader
		timeout time.Duration
	}

	writer struct {
		mutex   sync.Mutex
		wr      io.Writer
		timeout time.Duration
	}
}

type deadline interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// NewStream returns a new buffered I/O channel on top of channel.
func NewStream(channel io.ReadWriteCloser, bufSize int) *Stream {
	c := new(Stream)
	c.channel = channel
	c.reader.rd = bufio.NewReaderSize(channel, bufSize)
	c.writer.wr = channel

	return c
}

type dummyAddr struct{}

func (r dummyAddr) Network() string {
	return "DummyAddress"
}

func (r dummyAddr) String() string {
	return ""
}

func (r *Stream) RemoteAddr() net.Addr {
	type addr interface {
		RemoteAddr() net.Addr
	}

	v, ok := r.channel.(addr)
	if !ok {
		return dummyAddr{}
	}

	return v.RemoteAddr()
}

// SetReadTimeout sets read timeout of the underlying socket if it implements
// the deadline interface.
func (r *Stream) SetReadTimeout(t time.Duration) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	r.reader.timeout = t
}

// SetWriteTimeout sets write timeout of the underlying socket if it implements
// the deadline interface.
func (r *Stream) SetWriteTimeout(t time.Duration) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	r.writer.timeout = t
}

// NOTE: The caller should lock the reader mutex before calling this function.
func (r *Stream) setReadDeadline() {
	d, ok := r.channel.(deadline)
	if !ok {
		return
	}

	if r.reader.timeout > 0 {
		d.SetReadDeadline(time.Now().Add(r.reader.timeout))
	} else {
		d.SetReadDeadline(time.Time{})
	}
}

// NOTE: The caller should lock the writer mutex before calling this function.
func (r *Stream) setWriteDeadline() {
	d, ok := r.channel.(deadline)
	if !ok {
		return
	}

	if r.writer.timeout > 0 {
		d.SetWriteDeadline(time.Now().Add(r.writer.timeout))
	} else {
		d.SetWriteDeadline(time.Time{})
	}
}

// Peek returns the next n bytes without advancing the reader.
func (r *Stream) Peek(n int) ([]byte, error) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	if n <= 0 {
		return []byte{}, nil
	}

	r.setReadDeadline()
	v, err := r.reader.rd.Peek(n)
	if err != nil {
		return nil, err
	}

	// Deep copy of the peek result because v is a pointer to reader's
	// internal buffer that may be corrupted by subsequent read calls.
	p := make([]byte, len(v))
	copy(p, v)

	return p, nil
}

// ReadN reads exactly n bytes from the underlying socket.
func (r *Stream) ReadN(n int) (p []byte, err error) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	r.setReadDeadline()

	// Wait until we have n-bytes data in the reader or timeout.
	if _, err = r.reader.rd.Peek(n); err != nil {
		return nil, err
	}

	p = make([]byte, n)
	if _, err := io.ReadFull(r.reader.rd, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *Stream) Write(p []byte) (n int, err error) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	r.setWriteDeadline()
	return r.writer.wr.Write(p)
}

func (r *Stream) Close() error {
	return r.channel.Close()
}
