// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"unsafe"
)

// ReadWriteInfo describes one host memory region a device-style executable copies to (read)
// or from (write) the device during a call.
//
// They are built per call and are only valid during that call.
type ReadWriteInfo struct {
	Data        unsafe.Pointer
	SizeInBytes int
	Read        bool
}

// NewReadInfo describes a region copied from the host into the device.
func NewReadInfo(data unsafe.Pointer, sizeInBytes int) ReadWriteInfo {
	return ReadWriteInfo{Data: data, SizeInBytes: sizeInBytes, Read: true}
}

// NewWriteInfo describes a region copied from the device back to the host.
func NewWriteInfo(data unsafe.Pointer, sizeInBytes int) ReadWriteInfo {
	return ReadWriteInfo{Data: data, SizeInBytes: sizeInBytes}
}

// IsRead returns whether the region is read by the device (an upload).
func (i ReadWriteInfo) IsRead() bool { return i.Read }

// IsWrite returns whether the region is written by the device (a download).
func (i ReadWriteInfo) IsWrite() bool { return !i.Read }

// Bytes returns the region as a byte slice, or nil if it is empty.
func (i ReadWriteInfo) Bytes() []byte {
	if i.Data == nil || i.SizeInBytes == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(i.Data), i.SizeInBytes)
}

// String implements fmt.Stringer.
func (i ReadWriteInfo) String() string {
	direction := "write"
	if i.Read {
		direction = "read"
	}
	return fmt.Sprintf("%s %d bytes @%p", direction, i.SizeInBytes, i.Data)
}
