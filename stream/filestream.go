package stream

import (
	"fmt"
	"io"
	"os"
)

// FileStream is an os.File-backed Stream. It keeps a shadow tell that is
// reconciled with the OS cursor after every operation, and offers Refresh
// to close and reopen the underlying handle so a reader observes writes a
// separate handle made after this one was opened (Design Note 4.9's
// rewrite of the original's "reopen" global-state workaround for stale
// read buffers).
type FileStream struct {
	path     string
	readonly bool
	file     *os.File
	tell     int64
}

// Open opens path for the stream. When readonly is false and the file does
// not exist, it is created; when clear is true and readonly is false, any
// existing contents are truncated.
func Open(path string, readonly bool, clear bool) (*FileStream, error) {
	var flags int
	switch {
	case readonly:
		flags = os.O_RDONLY
	case clear:
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	default:
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("stream: open %s: %w", path, err)
	}
	return &FileStream{path: path, readonly: readonly, file: f}, nil
}

// Accessible reports whether path can be opened for reading.
func Accessible(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Path returns the filesystem path backing the stream.
func (f *FileStream) Path() string { return f.path }

// ReadOnly reports whether the stream was opened read-only.
func (f *FileStream) ReadOnly() bool { return f.readonly }

func (f *FileStream) Read(p []byte) (int, error) {
	n, err := io.ReadFull(f.file, p)
	f.tell += int64(n)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return n, ErrEndOfStream
		}
		return n, err
	}
	return n, nil
}

func (f *FileStream) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := f.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (f *FileStream) Write(p []byte) (int, error) {
	if f.readonly {
		return 0, ErrReadOnly
	}
	n, err := f.file.Write(p)
	f.tell += int64(n)
	if err != nil {
		return n, fmt.Errorf("stream: write %s: %w", f.path, err)
	}
	if n != len(p) {
		return n, fmt.Errorf("stream: short write to %s", f.path)
	}
	return n, nil
}

func (f *FileStream) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	if err != nil {
		return 0, fmt.Errorf("stream: seek %s: %w", f.path, err)
	}
	f.tell = pos
	return pos, nil
}

func (f *FileStream) Tell() int64 { return f.tell }

// EOF reports whether the stream is positioned at its end, by attempting a
// 1-byte peek-and-restore read (mirroring the original file::eof, which
// there is no portable ftell-vs-fstat-free way to ask the OS directly for
// without this probe).
func (f *FileStream) EOF() bool {
	var b [1]byte
	n, err := f.file.Read(b[:])
	if n == 1 {
		_, _ = f.file.Seek(-1, SeekCur)
	}
	return err != nil || n == 0
}

func (f *FileStream) Flush() error {
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("stream: flush %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStream) Empty() bool { return Empty(f) }

// Refresh closes and reopens the underlying OS file handle while
// preserving the logical position, so subsequent reads observe bytes a
// different handle wrote after this stream was opened.
func (f *FileStream) Refresh() error {
	pos := f.tell
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("stream: refresh close %s: %w", f.path, err)
	}
	flags := os.O_RDONLY
	if !f.readonly {
		flags = os.O_RDWR
	}
	nf, err := os.OpenFile(f.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("stream: refresh open %s: %w", f.path, err)
	}
	f.file = nf
	if _, err := f.file.Seek(pos, SeekSet); err != nil {
		return fmt.Errorf("stream: refresh seek %s: %w", f.path, err)
	}
	f.tell = pos
	return nil
}

// Close releases the underlying OS file handle.
func (f *FileStream) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
