package diffile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const Extension = ".diff"

// FileName is the name a diff file is stored under inside a chain
// directory. Colons are not portable in file names and are replaced by
// dashes, the identity extracted back still compares equal.
func FileName(child string) string {
	return strings.ReplaceAll(child, ":", "-") + Extension
}

// WriteFile encodes d to pathname through a temporary sibling that is
// linked into place once fully written and synced. Diff files are never
// replaced, an existing pathname fails with an error matching
// fs.ErrExist.
func WriteFile(pathname string, d *Diff) (err error) {
	dir, base := filepath.Split(pathname)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", base, uuid.NewString()))

	fp, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fp.Close()
			os.Remove(tmp)
		}
	}()

	if err = Encode(fp, d); err != nil {
		return err
	}
	if err = fp.Sync(); err != nil {
		return err
	}
	if err = fp.Close(); err != nil {
		return err
	}

	// unlike rename, link refuses to clobber
	if err = os.Link(tmp, pathname); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(tmp)
}

// ReadFile decodes the diff file at pathname.
func ReadFile(pathname string, opts *DecodeOptions) (*Diff, error) {
	fp, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return Decode(fp, opts)
}

// IsDiffFile reports whether name looks like a finished diff file.
func IsDiffFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, Extension) && !strings.HasPrefix(base, ".")
}
