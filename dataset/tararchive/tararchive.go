// Package tararchive indexes uncompressed tar archives so individual entries
// can be decoded straight out of the archive with random access, without
// unpacking datasets of thousands of images to disk.
package tararchive

import (
	"archive/tar"
	"io"

	"github.com/pkg/errors"
)

// Entry locates one file inside the archive.
type Entry struct {
	Offset int64
	Length int64
}

// Index maps archive paths to their byte ranges.
type Index map[string]Entry

// countingReader tracks how many bytes were consumed. It deliberately only
// implements io.Reader: exposing Seek would let the tar reader skip content
// behind the counter's back.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// BuildIndex scans the archive once and records the content offset and length
// of every regular file. The tar header format stores no offsets, so they are
// recovered by counting the bytes consumed up to each entry's content.
func BuildIndex(r io.Reader) (Index, error) {
	counter := &countingReader{r: r}
	tr := tar.NewReader(counter)
	index := Index{}
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return index, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading tar archive")
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		index[header.Name] = Entry{Offset: counter.n, Length: header.Size}
	}
}

// Open returns a reader over one archived file.
func (idx Index) Open(archive io.ReaderAt, path string) (*io.SectionReader, error) {
	entry, ok := idx[path]
	if !ok {
		return nil, errors.Errorf("no entry %q in the archive", path)
	}
	return io.NewSectionReader(archive, entry.Offset, entry.Length), nil
}
