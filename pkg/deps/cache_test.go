// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestListEntries(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	entries := []struct {
		dir    string
		head   string
		marker string
	}{
		{"asyn-R4-44", hash('a'), hash('a')},
		{"base-R7.0.8", hash('b'), hash('0')},
		{"calc-master", hash('c'), ""},
	}
	for _, e := range entries {
		place := filepath.Join(cache, e.dir)
		mustWrite(t, filepath.Join(place, fakeHeadFile), e.head)
		if e.marker != "" {
			mustWrite(t, filepath.Join(place, MarkerFileName), e.marker+"\n")
		}
	}
	mustWrite(t, filepath.Join(cache, ManifestFileName), "EPICS_BASE=/x\n")

	tests := []struct {
		pattern string
		want    map[string]string
	}{
		{"", map[string]string{"asyn-R4-44": "up-to-date", "base-R7.0.8": "stale", "calc-master": "never"}},
		{"base-*", map[string]string{"base-R7.0.8": "stale"}},
		{"{asyn,calc}-*", map[string]string{"asyn-R4-44": "up-to-date", "calc-master": "never"}},
		{"none-*", map[string]string{}},
	}

	for _, tt := range tests {
		got, err := ListEntries(context.Background(), newFakeVCS(), cache, tt.pattern)
		if err != nil {
			t.Fatalf("ListEntries(%q) error = %v", tt.pattern, err)
		}
		status := make(map[string]string, len(got))
		for _, e := range got {
			status[e.Name] = e.Status.String()
		}
		if diff := cmp.Diff(tt.want, status); diff != "" {
			t.Errorf("ListEntries(%q) mismatch (-want +got):\n%s", tt.pattern, diff)
		}
	}
}

func TestListEntriesMissingCacheAndBadPattern(t *testing.T) {
	t.Parallel()

	got, err := ListEntries(context.Background(), newFakeVCS(), filepath.Join(t.TempDir(), "absent"), "")
	if err != nil || len(got) != 0 {
		t.Errorf("ListEntries(missing) = %v, %v; want empty", got, err)
	}
	if _, err := ListEntries(context.Background(), newFakeVCS(), t.TempDir(), "[unterminated"); err == nil {
		t.Error("ListEntries() accepted an invalid pattern")
	}
}
