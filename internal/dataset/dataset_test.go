package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/rover_collector/internal/actuator"
	"github.com/relabs-tech/rover_collector/internal/fault"
	"github.com/relabs-tech/rover_collector/internal/frame"
)

func TestClassifyTotalOnSteeringRange(t *testing.T) {
	for angle := actuator.MinAngle; angle <= actuator.MaxAngle; angle++ {
		matches := 0
		for _, b := range Buckets() {
			if angle >= b.Min && angle <= b.Max {
				matches++
			}
		}
		require.LessOrEqual(t, matches, 1, "angle %d in more than one bucket", angle)

		label, ok := Classify(angle)
		if matches == 0 {
			assert.False(t, ok, "angle %d", angle)
			assert.Empty(t, label)
		} else {
			assert.True(t, ok, "angle %d", angle)
			assert.NotEmpty(t, label)
		}
	}
}

func TestBucketsDisjoint(t *testing.T) {
	bs := Buckets()
	for i := range bs {
		require.LessOrEqual(t, bs[i].Min, bs[i].Max)
		for j := i + 1; j < len(bs); j++ {
			overlap := bs[i].Min <= bs[j].Max && bs[j].Min <= bs[i].Max
			assert.False(t, overlap, "%s overlaps %s", bs[i].Label, bs[j].Label)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		angle int
		label string
		ok    bool
	}{
		{40, "", false},
		{49, "", false},
		{50, "50_69", true},
		{55, "50_69", true},
		{70, "70_89", true},
		{89, "70_89", true},
		{90, "90", true},
		{91, "91_110", true},
		{110, "91_110", true},
		{111, "111_130", true},
		{130, "111_130", true},
		{131, "", false},
		{135, "", false},
		{140, "", false},
	}
	for _, tt := range tests {
		label, ok := Classify(tt.angle)
		assert.Equal(t, tt.ok, ok, "angle %d", tt.angle)
		assert.Equal(t, tt.label, label, "angle %d", tt.angle)
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"50_69", "70_89", "90", "91_110", "111_130"}, Labels())
}

func TestFileName(t *testing.T) {
	at := time.Unix(1700000000, 123456789)
	assert.Equal(t, "1700000000.123456.jpg", FileName(at))
	assert.Equal(t, "1700000000.000001.jpg", FileName(time.Unix(1700000000, 1000)))
	assert.NotEqual(t, FileName(at), FileName(at.Add(time.Microsecond)))
}

func TestPrepareCreatesBucketDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dataset")
	w := NewWriter(root)
	require.NoError(t, w.Prepare())
	require.NoError(t, w.Prepare()) // idempotent

	for _, label := range Labels() {
		info, err := os.Stat(filepath.Join(root, label))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPersistRoutesByAngle(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)
	base := time.Unix(1700000000, 0)

	// angle 200 can not reach the writer: the controller clamps to 140 first
	angles := []int{55, 90, 135, 140}
	for i, a := range angles {
		f := frame.Captured{JPEG: []byte{0xFF, 0xD8, byte(i)}, At: base.Add(time.Duration(i) * time.Millisecond), Angle: a}
		label, ok := Classify(f.Angle)
		path, err := w.Persist(f, label, ok)
		require.NoError(t, err)
		if ok {
			assert.Equal(t, filepath.Join(root, label, FileName(f.At)), path)
		} else {
			assert.Empty(t, path)
		}
	}

	files, err := filepath.Glob(filepath.Join(root, "*", "*.jpg"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "50_69", filepath.Base(filepath.Dir(files[0])))
	assert.Equal(t, "90", filepath.Base(filepath.Dir(files[1])))

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0}, data)

	st := w.Stats()
	assert.Equal(t, map[string]int{"50_69": 1, "90": 1}, st.Saved)
	assert.Equal(t, 2, st.Skipped)
	assert.Equal(t, 0, st.Failed)
	assert.Equal(t, 2, st.Total())
}

func TestPersistWriteFailure(t *testing.T) {
	root := t.TempDir()
	// a regular file where the bucket directory should be
	require.NoError(t, os.WriteFile(filepath.Join(root, "90"), []byte("x"), 0o644))

	w := NewWriter(root)
	_, err := w.Persist(frame.Captured{JPEG: []byte{1}, At: time.Now(), Angle: 90}, "90", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrWriteFailure))
	assert.Equal(t, 1, w.Stats().Failed)
}
