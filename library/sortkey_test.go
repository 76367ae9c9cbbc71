package library

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortKey(t *testing.T) {
	cases := []struct {
		name   string
		isFile bool
		want   string
	}{
		{"The Truman Show.mkv", true, "1:Truman Show, The"},
		{"An Easter Carol.mkv", true, "1:Easter Carol, An"},
		{"A Fish Called Wanda.mkv", true, "1:Fish Called Wanda, A"},
		{"Alien.mkv", true, "1:Alien"},
		{"The Simpsons", false, "0:Simpsons, The"},
		{"Movies", false, "0:Movies"},
		{"theory of everything.mkv", true, "1:theory of everything"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SortKey(tc.name, tc.isFile), "SortKey(%q, %v)", tc.name, tc.isFile)
	}
}

func TestSortKeyPairsVideoWithPoster(t *testing.T) {
	assert.Equal(t, SortKey("Alien.mkv", true), SortKey("Alien.jpg", true),
		"a video and its poster image must share a key")
}

func TestSortKeyDirectoriesFirst(t *testing.T) {
	keys := []string{
		SortKey("Zebra Movie.mkv", true),
		SortKey("Action", false),
		SortKey("Alien.mkv", true),
	}
	sort.Strings(keys)

	assert.Equal(t, "0:Action", keys[0])
}
