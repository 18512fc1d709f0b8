package toolversions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterStableExcludesPrereleases(t *testing.T) {
	versions := []string{"1.0.0", "1.1.0-rc1", "1.2.0-beta", "2.0.0"}
	got := FilterStable(versions, "")
	require.Equal(t, []string{"1.0.0", "2.0.0"}, got)
}

func TestFilterStableQueryPrefix(t *testing.T) {
	versions := []string{"18.19.0", "18.20.0", "20.1.0"}
	got := FilterStable(versions, "18")
	require.Equal(t, []string{"18.19.0", "18.20.0"}, got)
}

func TestBestStablePicksHighest(t *testing.T) {
	require.Equal(t, "1.2.3", BestStable([]string{"1.0.0", "1.2.3", "1.1.0"}))
}

func TestBestStableEmpty(t *testing.T) {
	require.Equal(t, "", BestStable(nil))
}
