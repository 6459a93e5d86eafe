package source

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceReadsCSVInBatches(t *testing.T) {
	path := t.TempDir() + "/fixture.csv"
	content := "id,name\n1,alice\n2,bob\n3,carl\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src := NewFileSource(path)
	out, errc := src.IterBatches(context.Background(), 2, nil)

	var total int
	for batch := range out {
		total += len(batch.Records)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, 3, total)
}

func TestMultiFileSourceConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	p1 := dir + "/a.csv"
	p2 := dir + "/b.csv"
	require.NoError(t, os.WriteFile(p1, []byte("id,name\n1,alice\n"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("id,name\n2,bob\n"), 0o644))

	src := NewMultiFileSource([]string{p1, p2})
	out, errc := src.IterBatches(context.Background(), 10, nil)

	var names []string
	for batch := range out {
		for _, rec := range batch.Records {
			names = append(names, rec["name"].(string))
		}
	}
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestFileSourceRejectsUnknownExtension(t *testing.T) {
	path := t.TempDir() + "/fixture.unknown"
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	src := NewFileSource(path)
	out, errc := src.IterBatches(context.Background(), 2, nil)
	for range out {
	}
	err := <-errc
	assert.Error(t, err)
}
