package store

import "testing"

func TestMatchesIgnore(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		patterns []string
		want     bool
	}{
		{"glob on final name", "/a/b/.git", []string{".git"}, true},
		{"literal equals final name", "/a/b/node_modules", []string{"node_modules"}, true},
		{"substring of full path unconditional", "/a/build/output/x.txt", []string{"/build/"}, true},
		{"component glob without separator", "/a/__pycache__/x.pyc", []string{"__pycache__"}, true},
		{"pattern with separator skips component shortcut", "/a/cache/x", []string{"cache/sub"}, false},
		{"no match", "/a/b/keep.txt", []string{".git", "node_modules"}, false},
		{"extension glob", "/a/b/debug.log", []string{"*.log"}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := MatchesIgnore(c.path, c.patterns)
			if got != c.want {
				t.Errorf("MatchesIgnore(%q, %v) = %v, want %v", c.path, c.patterns, got, c.want)
			}
		})
	}
}
