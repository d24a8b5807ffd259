// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"fmt"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/internal/bitvec"
)

// meshStorage manages the vertex/index data of every mesh
// of a Renderer in a single GPU buffer.
type meshStorage struct {
	gpu     driver.GPU
	buf     driver.Buffer
	spanMap bitvec.V[uint32]
}

const spanMapNBit = 32

// blocks returns the number of span blocks needed to
// store byteLen bytes.
func blocks(byteLen int) int { return (byteLen + (spanBlock - 1)) / spanBlock }

// fits reports whether byteLen bytes can be stored
// without replacing the GPU buffer.
func (b *meshStorage) fits(byteLen int) bool {
	_, ok := b.spanMap.SearchRange(blocks(byteLen))
	return ok
}

// store writes data into the GPU buffer.
// It returns a span identifying the buffer range where
// the data was stored.
// If the buffer is full, it is replaced by a larger one
// and the previous contents are copied. Callers must
// ensure that the GPU is not using the buffer when that
// happens.
func (b *meshStorage) store(data []byte) (span, error) {
	ns := blocks(len(data))
	is, ok := b.spanMap.SearchRange(ns)
	if !ok {
		// Grow at least twofold.
		nplus := max((ns+(spanMapNBit-1))/spanMapNBit, b.spanMap.Len()/spanMapNBit)
		bcap := int64(b.spanMap.Len()+nplus*spanMapNBit) * spanBlock
		buf, err := b.gpu.NewBuffer(bcap, true, driver.UVertexData|driver.UIndexData)
		if err != nil {
			return span{}, err
		}
		if b.buf != nil {
			copy(buf.Bytes(), b.buf.Bytes())
			b.buf.Destroy()
		}
		b.buf = buf
		b.spanMap.Grow(nplus)
		if is, ok = b.spanMap.SearchRange(ns); !ok {
			panic("unexpected failure from bitvec.V.SearchRange")
		}
	}
	copy(b.buf.Bytes()[is*spanBlock:], data)
	for i := range ns {
		b.spanMap.Set(is + i)
	}
	return span{is, is + ns}, nil
}

// free makes the blocks of s available for use when
// storing new data (it does not free GPU memory).
func (b *meshStorage) free(s span) {
	for i := s.start; i < s.end; i++ {
		b.spanMap.Unset(i)
	}
}

// destroy destroys the GPU buffer.
func (b *meshStorage) destroy() {
	if b.buf != nil {
		b.buf.Destroy()
	}
	*b = meshStorage{gpu: b.gpu}
}

// span defines a buffer range in number of blocks.
type span struct {
	start int
	end   int
}

// span block size.
const spanBlock = 512

// byteStart computes the span's first byte.
func (s span) byteStart() int64 { return int64(s.start) * spanBlock }

// byteEnd computes the span's one-past-the-end byte.
func (s span) byteEnd() int64 { return int64(s.end) * spanBlock }

// byteLen computes the span's byte length.
func (s span) byteLen() int64 { return int64(s.end-s.start) * spanBlock }

// String implements fmt.Stringer.
func (s span) String() string {
	return fmt.Sprintf("{%d(%dB) %d(%dB)}", s.start, s.byteStart(), s.end, s.byteEnd())
}
