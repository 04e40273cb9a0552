// Package partsize is the single arbiter of part counts and part sizes for
// both the multipart upload and ranged multipart download engines. It is a
// pure, deterministic function with no I/O and no package-level state.
package partsize

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

const (
	// MinPartSize is the smallest legal part size (except the final part,
	// which may be smaller than MinPartSize, and the size==0 case).
	MinPartSize int64 = 5 * 1024 * 1024 // 5 MiB

	// MaxPartSize is the largest legal part size.
	MaxPartSize int64 = 5 * 1024 * 1024 * 1024 // 5 GiB

	// MaxParts is the largest legal part count.
	MaxParts int = 10_000

	// MaxTotalSize is the largest legal total transfer size.
	MaxTotalSize int64 = 5 * 1024 * 1024 * 1024 * 1024 // 5 TiB

	// MinimalDownloadPartSize is the smallest total size for which the
	// download engine prefers ranged concurrent GETs over a single
	// sequential one (spec §4.4 step 3).
	MinimalDownloadPartSize int64 = 64 * 1024 * 1024 // 64 MiB
)

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func clampPartSize(partSize int64) int64 {
	if partSize < MinPartSize {
		return MinPartSize
	}
	if partSize > MaxPartSize {
		return MaxPartSize
	}
	return partSize
}

// Compute implements the five-case algorithm from spec §4.2: given a total
// size and optional caller hints for parts and/or partSize, it returns a
// legal (parts, partSize) pair such that parts*partSize >= size, parts is in
// [1, MaxParts], and partSize is either 0 (size==0) or in
// [MinPartSize, MaxPartSize].
func Compute(size int64, parts *int, partSize *int64) (int, int64, error) {
	if size < 0 {
		return 0, 0, fmt.Errorf("partsize: size must be non-negative, got %d", size)
	}
	if size > MaxTotalSize {
		return 0, 0, fmt.Errorf("partsize: size %s exceeds maximum total size %s",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(MaxTotalSize)))
	}

	// Case 1: empty transfer is always a single, zero-sized part.
	if size == 0 {
		return 1, 0, nil
	}

	switch {
	case parts != nil && partSize != nil:
		// Case 2: both hints supplied.
		ps := clampPartSize(*partSize)
		n := int(ceilDiv(size, ps))
		if n > MaxParts {
			return 0, 0, fmt.Errorf("partsize: %d parts of %s each exceeds the %d part limit for a %s transfer",
				n, humanize.Bytes(uint64(ps)), MaxParts, humanize.Bytes(uint64(size)))
		}
		if n < 1 {
			n = 1
		}
		return n, ps, nil

	case parts != nil:
		// Case 3: only a part count was requested.
		n := *parts
		if n < 1 {
			n = 1
		}
		ps := clampPartSize(ceilDiv(size, int64(n)))
		actual := int(ceilDiv(size, ps))
		if actual > MaxParts {
			return 0, 0, fmt.Errorf("partsize: requested %d parts requires %d after clamping part size to %s, exceeding the %d part limit",
				n, actual, humanize.Bytes(uint64(ps)), MaxParts)
		}
		if actual < 1 {
			actual = 1
		}
		return actual, ps, nil

	case partSize != nil:
		// Case 4: only a part size was requested; raise it if that would
		// need too many parts.
		ps := clampPartSize(*partSize)
		n := int(ceilDiv(size, ps))
		if n > MaxParts {
			ps = clampPartSize(ceilDiv(size, int64(MaxParts)))
			n = int(ceilDiv(size, ps))
		}
		if n < 1 {
			n = 1
		}
		return n, ps, nil

	default:
		// Case 5: no hints; prefer the minimum legal part size, only raising
		// it if that would exceed the part-count ceiling.
		ps := MinPartSize
		n := int(ceilDiv(size, ps))
		if n > MaxParts {
			ps = clampPartSize(ceilDiv(size, int64(MaxParts)))
			n = int(ceilDiv(size, ps))
		}
		if n < 1 {
			n = 1
		}
		return n, ps, nil
	}
}

// PartBounds returns the byte offset and length of part index i (0-based) out
// of n parts of size partSize covering a transfer of total bytes.
func PartBounds(i, n int, partSize, total int64) (offset, length int64) {
	offset = int64(i) * partSize
	if i == n-1 {
		length = total - offset
	} else {
		length = partSize
	}
	return offset, length
}
