package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedSearchEntries(t *testing.T, st *Store) {
	t.Helper()
	ctx := context.Background()
	entries := []Entry{
		{Path: "/docs/report.txt", Name: "report.txt", ParentPath: "/docs", Kind: KindFile, Size: 100, MTime: 1},
		{Path: "/docs/reportage.md", Name: "reportage.md", ParentPath: "/docs", Kind: KindFile, Size: 200, MTime: 2},
		{Path: "/docs/sub/deep.txt", Name: "deep.txt", ParentPath: "/docs/sub", Kind: KindFile, Size: 5, MTime: 3},
		{Path: "/docs/sub", Name: "sub", ParentPath: "/docs", Kind: KindDirectory},
		{Path: "/other/unrelated.txt", Name: "unrelated.txt", ParentPath: "/other", Kind: KindFile, Size: 1, MTime: 4},
	}
	require.NoError(t, st.BatchAdd(ctx, entries))
	require.NoError(t, st.RebuildBigramIndex(ctx))
	require.NoError(t, st.RebuildTrigramIndex(ctx))
}

func TestSearchEmptyQueryReturnsAll(t *testing.T) {
	st := newTestStore(t)
	seedSearchEntries(t, st)

	res, err := st.Search(context.Background(), Query{MaxResults: 100})
	require.NoError(t, err)
	require.Equal(t, "all", res.Strategy)
	require.Len(t, res.Entries, 5)
}

func TestSearchOneCharUsesScan(t *testing.T) {
	st := newTestStore(t)
	seedSearchEntries(t, st)

	res, err := st.Search(context.Background(), Query{Text: "r"})
	require.NoError(t, err)
	require.Equal(t, "scan", res.Strategy)
	for _, e := range res.Entries {
		require.Contains(t, e.Name, "r")
	}
}

func TestSearchTwoCharsUsesBigram(t *testing.T) {
	st := newTestStore(t)
	seedSearchEntries(t, st)

	res, err := st.Search(context.Background(), Query{Text: "re"})
	require.NoError(t, err)
	require.Equal(t, "bigram", res.Strategy)

	names := map[string]bool{}
	for _, e := range res.Entries {
		names[e.Name] = true
	}
	require.True(t, names["report.txt"])
	require.True(t, names["reportage.md"])
}

func TestSearchThreeCharsUsesTrigram(t *testing.T) {
	st := newTestStore(t)
	seedSearchEntries(t, st)
	if !st.TrigramAvailable() {
		t.Skip("trigram tokenizer unavailable in this sqlite build")
	}

	res, err := st.Search(context.Background(), Query{Text: "por"})
	require.NoError(t, err)
	require.Equal(t, "trigram", res.Strategy)

	var found bool
	for _, e := range res.Entries {
		if e.Name == "report.txt" {
			found = true
		}
	}
	require.True(t, found, "report.txt contains the substring 'por'")
}

func TestSearchDepthFilter(t *testing.T) {
	st := newTestStore(t)
	seedSearchEntries(t, st)

	res, err := st.Search(context.Background(), Query{PathFilter: "/docs", Depth: 1})
	require.NoError(t, err)

	for _, e := range res.Entries {
		require.NotEqual(t, "/docs/sub/deep.txt", e.Path, "deep.txt is two components below /docs, should be excluded at depth 1")
	}

	var sawReport bool
	for _, e := range res.Entries {
		if e.Path == "/docs/report.txt" {
			sawReport = true
		}
	}
	require.True(t, sawReport)
}

func TestSearchKindFilter(t *testing.T) {
	st := newTestStore(t)
	seedSearchEntries(t, st)

	res, err := st.Search(context.Background(), Query{KindFilter: KindDirectory})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Equal(t, KindDirectory, res.Entries[0].Kind)
}

func TestSearchPathFilterScopesToPrefix(t *testing.T) {
	st := newTestStore(t)
	seedSearchEntries(t, st)

	res, err := st.Search(context.Background(), Query{PathFilter: "/other"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Equal(t, "unrelated.txt", res.Entries[0].Name)
}
