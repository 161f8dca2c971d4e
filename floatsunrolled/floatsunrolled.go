// floatsunrolled is inspired by the SIMD blog post
// https://github.com/camdencheek/simd_blog/blob/main/main.go
//
// Slices whose length is not a multiple of UnrollBatch are handled by finishing the
// remainder one element at a time.
package floatsunrolled

import (
	"errors"
)

const UnrollBatch = 4

var (
	ErrSliceLengthMismatch       = errors.New("slices must have equal lengths")
	ErrOutputSliceLengthMismatch = errors.New("output slice length not the same as input")
)

func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(ErrSliceLengthMismatch)
	}

	var sum float64
	batched := len(a) - len(a)%UnrollBatch
	for i := 0; i < batched; i += UnrollBatch {
		aTmp := a[i : i+UnrollBatch : i+UnrollBatch]
		bTmp := b[i : i+UnrollBatch : i+UnrollBatch]
		s0 := aTmp[0] * bTmp[0]
		s1 := aTmp[1] * bTmp[1]
		s2 := aTmp[2] * bTmp[2]
		s3 := aTmp[3] * bTmp[3]
		sum += s0 + s1 + s2 + s3
	}
	for i := batched; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func SubTo(dst, s, t []float64) []float64 {
	if len(s) != len(t) {
		panic(ErrSliceLengthMismatch)
	}

	if dst == nil {
		dst = make([]float64, len(s))
	} else if len(dst) != len(s) {
		panic(ErrOutputSliceLengthMismatch)
	}

	batched := len(s) - len(s)%UnrollBatch
	for i := 0; i < batched; i += UnrollBatch {
		dstTmp := dst[i : i+UnrollBatch : i+UnrollBatch]
		sTmp := s[i : i+UnrollBatch : i+UnrollBatch]
		tTmp := t[i : i+UnrollBatch : i+UnrollBatch]
		dstTmp[0] = sTmp[0] - tTmp[0]
		dstTmp[1] = sTmp[1] - tTmp[1]
		dstTmp[2] = sTmp[2] - tTmp[2]
		dstTmp[3] = sTmp[3] - tTmp[3]
	}
	for i := batched; i < len(s); i++ {
		dst[i] = s[i] - t[i]
	}

	return dst
}

// AddScaledTo computes dst = y + alpha*s.
func AddScaledTo(dst, y []float64, alpha float64, s []float64) []float64 {
	if len(y) != len(s) {
		panic(ErrSliceLengthMismatch)
	}

	if dst == nil {
		dst = make([]float64, len(s))
	} else if len(dst) != len(s) {
		panic(ErrOutputSliceLengthMismatch)
	}

	batched := len(s) - len(s)%UnrollBatch
	for i := 0; i < batched; i += UnrollBatch {
		dstTmp := dst[i : i+UnrollBatch : i+UnrollBatch]
		yTmp := y[i : i+UnrollBatch : i+UnrollBatch]
		sTmp := s[i : i+UnrollBatch : i+UnrollBatch]
		dstTmp[0] = yTmp[0] + alpha*sTmp[0]
		dstTmp[1] = yTmp[1] + alpha*sTmp[1]
		dstTmp[2] = yTmp[2] + alpha*sTmp[2]
		dstTmp[3] = yTmp[3] + alpha*sTmp[3]
	}
	for i := batched; i < len(s); i++ {
		dst[i] = y[i] + alpha*s[i]
	}

	return dst
}
