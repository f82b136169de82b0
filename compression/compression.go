/*
 * Copyright (c) 2021 Gilles Chehade <gilles@poolp.org>
 *
 * Permission to use, copy, modify, and distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
)

func Deflate(name string, buf []byte) ([]byte, error) {
	if name == "gzip" {
		return DeflateGzip(buf)
	}
	if name == "lz4" {
		return DeflateLZ4(buf)
	}
	return nil, fmt.Errorf("unsupported compression method %q", name)
}

func DeflateLZ4(buf []byte) ([]byte, error) {
	b := bytes.NewBuffer(make([]byte, 0, len(buf)))
	w := lz4.NewWriter(b)
	defer func() {
		_ = w.Close()
	}()

	if _, err := w.Write(buf); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func DeflateGzip(buf []byte) ([]byte, error) {
	b := bytes.NewBuffer(make([]byte, 0, len(buf)))
	w := gzip.NewWriter(b)
	defer func() {
		_ = w.Close()
	}()

	if _, err := w.Write(buf); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func Inflate(name string, buf []byte) ([]byte, error) {
	if name == "gzip" {
		return InflateGzip(buf)
	}
	if name == "lz4" {
		return InflateLZ4(buf)
	}
	return nil, fmt.Errorf("unsupported compression method %q", name)
}

func InflateLZ4(buf []byte) ([]byte, error) {
	return io.ReadAll(newLZ4Reader(bytes.NewBuffer(buf)))
}

// the lz4 writer emits no frame at all for empty input, an empty stream
// inflates to nothing rather than failing on a missing magic number
func newLZ4Reader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err == io.EOF {
		return bytes.NewReader(nil)
	}
	return lz4.NewReader(br)
}

func InflateGzip(buf []byte) ([]byte, error) {
	w, err := gzip.NewReader(bytes.NewBuffer(buf))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = w.Close()
	}()
	return io.ReadAll(w)
}

// NewWriter returns a compressing writer for the named method. Closing it
// flushes the compressed stream but leaves w open.
func NewWriter(name string, w io.Writer) (io.WriteCloser, error) {
	switch name {
	case "gzip":
		return gzip.NewWriter(w), nil
	case "lz4":
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unsupported compression method %q", name)
}

// DeflateStream compresses the content of r on the fly. The returned
// reader yields the compressed stream and reports any write error as a
// read error.
func DeflateStream(name string, r io.Reader) (io.Reader, error) {
	pr, pw := io.Pipe()

	w, err := NewWriter(name, pw)
	if err != nil {
		return nil, err
	}

	go func() {
		if _, err := io.Copy(w, r); err != nil {
			_ = w.Close()
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(w.Close())
	}()
	return pr, nil
}

// InflateStream wraps r with the decompressor for the named method.
func InflateStream(name string, r io.Reader) (io.Reader, error) {
	switch name {
	case "gzip":
		return gzip.NewReader(r)
	case "lz4":
		return newLZ4Reader(r), nil
	}
	return nil, fmt.Errorf("unsupported compression method %q", name)
}

// MethodFromName guesses the compression method of a container from its
// file name, returning "" for uncompressed containers.
func MethodFromName(name string) string {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return "gzip"
	case strings.HasSuffix(name, ".tar.lz4"):
		return "lz4"
	}
	return ""
}
