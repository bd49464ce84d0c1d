package exr

import "bytes"

// readerAtWrapper adapts a *bytes.Reader to io.ReaderAt for tests that
// build an in-memory file and immediately reopen it with OpenReader.
type readerAtWrapper struct {
	r *bytes.Reader
}

func (w *readerAtWrapper) ReadAt(p []byte, off int64) (int, error) {
	return w.r.ReadAt(p, off)
}
