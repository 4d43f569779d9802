package tararchive

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"go.viam.com/test"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		err := tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		})
		test.That(t, err, test.ShouldBeNil)
		_, err = tw.Write([]byte(content))
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, tw.Close(), test.ShouldBeNil)
	return buf.Bytes()
}

func TestIndexRoundTrip(t *testing.T) {
	files := map[string]string{
		"associations.txt":    "1.0 depth/1.png 1.1 rgb/1.png\n",
		"depth/1.png":         "not really a png but content enough",
		"rgb/1.png":           "other content",
		"some/deep/entry.txt": "x",
	}
	archive := buildArchive(t, files)

	index, err := BuildIndex(bytes.NewReader(archive))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(index), test.ShouldEqual, len(files))

	ra := bytes.NewReader(archive)
	for name, content := range files {
		r, err := index.Open(ra, name)
		test.That(t, err, test.ShouldBeNil)
		data, err := io.ReadAll(r)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(data), test.ShouldEqual, content)
	}
}

func TestOpenMissingEntry(t *testing.T) {
	archive := buildArchive(t, map[string]string{"a.txt": "a"})
	index, err := BuildIndex(bytes.NewReader(archive))
	test.That(t, err, test.ShouldBeNil)
	_, err = index.Open(bytes.NewReader(archive), "b.txt")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBuildIndexGarbage(t *testing.T) {
	_, err := BuildIndex(bytes.NewReader([]byte("definitely not a tar archive, but long enough to try")))
	test.That(t, err, test.ShouldNotBeNil)
}
