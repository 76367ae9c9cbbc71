package hls

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCoversDuration(t *testing.T) {
	cases := []struct {
		duration      float64
		segmentLength float64
	}{
		{25, 10},
		{10, 10},
		{9.5, 10},
		{3600, 10},
		{123.456789, 3.5},
		{0.001, 10},
		{59.94, 4},
	}

	for _, tc := range cases {
		plan, err := Plan(tc.duration, tc.segmentLength)
		require.NoError(t, err)
		require.Len(t, plan, int(math.Ceil(tc.duration/tc.segmentLength)))

		var total float64
		next := 0.0
		for i, seg := range plan {
			assert.Equal(t, i, seg.Index)
			assert.InDelta(t, next, seg.Offset, 1e-9, "segments must be contiguous")
			assert.Greater(t, seg.Length, 0.0)
			next = seg.Offset + seg.Length
			total += seg.Length
		}

		assert.InDelta(t, tc.duration, total, 1e-9, "lengths must sum to the duration")
	}
}

func TestPlanExample(t *testing.T) {
	plan, err := Plan(25, 10)
	require.NoError(t, err)

	require.Equal(t, []Segment{
		{Index: 0, Offset: 0, Length: 10},
		{Index: 1, Offset: 10, Length: 10},
		{Index: 2, Offset: 20, Length: 5},
	}, plan)
}

func TestPlanRejectsInvalidInput(t *testing.T) {
	var durErr *InvalidDurationError
	_, err := Plan(0, 10)
	require.True(t, errors.As(err, &durErr))

	_, err = Plan(-5, 10)
	require.True(t, errors.As(err, &durErr))

	var cfgErr *InvalidConfigurationError
	_, err = Plan(25, 0)
	require.True(t, errors.As(err, &cfgErr))

	_, err = Plan(25, -1)
	require.True(t, errors.As(err, &cfgErr))
}

func TestRenderManifest(t *testing.T) {
	plan, err := Plan(25, 10)
	require.NoError(t, err)

	manifest := RenderManifest(plan)

	assert.True(t, strings.HasPrefix(manifest, "#EXTM3U\n"))
	assert.Contains(t, manifest, "#EXT-X-VERSION:3\n")
	assert.Contains(t, manifest, "#EXT-X-PLAYLIST-TYPE:VOD\n")
	assert.Contains(t, manifest, "#EXT-X-TARGETDURATION:11\n")
	assert.Contains(t, manifest, "#EXT-X-MEDIA-SEQUENCE:0\n")
	assert.True(t, strings.HasSuffix(manifest, "#EXT-X-ENDLIST\n"))

	assert.Equal(t, 3, strings.Count(manifest, "#EXTINF:"))
	assert.Contains(t, manifest, "#EXTINF:5.000000,\nhls-segment.ts?index=2&offset=20.000000&length=5.000000")
	assert.Contains(t, manifest, "hls-segment.ts?index=0&offset=0.000000&length=10.000000")
}

func TestRenderManifestDeterministic(t *testing.T) {
	first, err := Plan(3600.123, 7.5)
	require.NoError(t, err)
	second, err := Plan(3600.123, 7.5)
	require.NoError(t, err)

	assert.Equal(t, RenderManifest(first), RenderManifest(second))
}
