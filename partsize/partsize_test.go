package partsize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int         { return &v }
func i64p(v int64) *int64     { return &v }

func TestComputeZeroSize(t *testing.T) {
	parts, size, err := Compute(0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, parts)
	assert.EqualValues(t, 0, size)
}

func TestComputeNoHints(t *testing.T) {
	cases := []struct {
		name      string
		size      int64
		wantParts int
	}{
		{"small", 1024, 1},
		{"exactly one part", MinPartSize, 1},
		{"two parts", MinPartSize + 1, 2},
		{"20MiB", 20 * 1024 * 1024, 4},
		{"100MiB", 100 * 1024 * 1024, 20},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			parts, size, err := Compute(c.size, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, c.wantParts, parts)
			assert.GreaterOrEqual(t, size, MinPartSize)
			assert.LessOrEqual(t, size, MaxPartSize)
			assert.GreaterOrEqual(t, int64(parts)*size, c.size)
		})
	}
}

func TestComputeNoHintsRaisesPartSizeWhenOverLimit(t *testing.T) {
	// A transfer so large that MinPartSize would need more than MaxParts
	// parts must raise the part size instead of failing.
	size := int64(MaxParts)*MinPartSize + 1
	parts, partSize, err := Compute(size, nil, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, parts, MaxParts)
	assert.Greater(t, partSize, MinPartSize)
	assert.GreaterOrEqual(t, int64(parts)*partSize, size)
}

func TestComputePartsHintOnly(t *testing.T) {
	parts, size, err := Compute(100*1024*1024, intp(10), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, parts)
	assert.GreaterOrEqual(t, int64(parts)*size, int64(100*1024*1024))
}

func TestComputePartsHintClampedUpwardWhenTooSmall(t *testing.T) {
	// Requesting many parts for a small total forces part size up to the
	// legal minimum, which then forces the part count back down.
	parts, size, err := Compute(1024, intp(100), nil)
	require.NoError(t, err)
	assert.Equal(t, MinPartSize, size)
	assert.Equal(t, 1, parts)
}

func TestComputePartSizeHintOnly(t *testing.T) {
	parts, size, err := Compute(100*1024*1024, nil, i64p(20*1024*1024))
	require.NoError(t, err)
	assert.EqualValues(t, 20*1024*1024, size)
	assert.Equal(t, 5, parts)
}

func TestComputePartSizeHintRaisedWhenExceedingMaxParts(t *testing.T) {
	size := int64(MaxParts)*MinPartSize + MinPartSize
	parts, partSize, err := Compute(size, nil, i64p(MinPartSize))
	require.NoError(t, err)
	assert.LessOrEqual(t, parts, MaxParts)
	assert.Greater(t, partSize, int64(MinPartSize))
}

func TestComputeBothHints(t *testing.T) {
	parts, size, err := Compute(100*1024*1024, intp(20), i64p(10*1024*1024))
	require.NoError(t, err)
	assert.EqualValues(t, 10*1024*1024, size)
	assert.Equal(t, 10, parts)
}

func TestComputeBothHintsRejectsTooManyParts(t *testing.T) {
	size := int64(MaxParts+1) * MinPartSize
	_, _, err := Compute(size, intp(MaxParts+1), i64p(MinPartSize))
	assert.Error(t, err)
}

func TestComputeRejectsOversizeTransfer(t *testing.T) {
	_, _, err := Compute(MaxTotalSize+1, nil, nil)
	assert.Error(t, err)
}

func TestComputeRejectsNegativeSize(t *testing.T) {
	_, _, err := Compute(-1, nil, nil)
	assert.Error(t, err)
}

// TestComputeTotality is the part-math totality property: for every legal
// hint combination over a spread of sizes, the returned (parts, partSize)
// must satisfy parts*partSize >= size, parts in [1, MaxParts], and partSize
// either 0 (size==0) or within [MinPartSize, MaxPartSize].
func TestComputeTotality(t *testing.T) {
	sizes := []int64{0, 1, MinPartSize - 1, MinPartSize, MinPartSize + 1,
		20 * 1024 * 1024, 100 * 1024 * 1024, 5 * 1024 * 1024 * 1024}
	hintSets := []struct {
		parts    *int
		partSize *int64
	}{
		{nil, nil},
		{intp(5), nil},
		{intp(20), nil},
		{intp(10), nil},
		{nil, i64p(10 * 1024 * 1024)},
		{intp(4), i64p(MinPartSize)},
	}

	for _, size := range sizes {
		for _, h := range hintSets {
			parts, partSize, err := Compute(size, h.parts, h.partSize)
			if err != nil {
				continue
			}
			assert.GreaterOrEqual(t, parts, 1)
			assert.LessOrEqual(t, parts, MaxParts)
			if size == 0 {
				assert.EqualValues(t, 0, partSize)
			} else {
				assert.GreaterOrEqual(t, partSize, MinPartSize)
				assert.LessOrEqual(t, partSize, MaxPartSize)
				assert.GreaterOrEqual(t, int64(parts)*partSize, size)
			}
		}
	}
}

func TestPartBounds(t *testing.T) {
	offset, length := PartBounds(0, 3, 10, 25)
	assert.EqualValues(t, 0, offset)
	assert.EqualValues(t, 10, length)

	offset, length = PartBounds(2, 3, 10, 25)
	assert.EqualValues(t, 20, offset)
	assert.EqualValues(t, 5, length)
}
