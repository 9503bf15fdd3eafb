package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/validation"
)

// RewriteSegment replaces the first "/from/" segment of the slash-separated
// relative path rel with "/to/". rel is treated as rooted, so "src/a.ts"
// matches a leading "src" directory. Paths without the segment are returned
// unchanged.
func RewriteSegment(rel, from, to string) string {
	rooted := "/" + strings.TrimPrefix(filepath.ToSlash(rel), "/")
	rewritten := strings.Replace(rooted, "/"+from+"/", "/"+to+"/", 1)
	return filepath.FromSlash(strings.TrimPrefix(rewritten, "/"))
}

// Materializer copies source files into an alternate output tree,
// relocating the first "from" directory segment to "to".
type Materializer struct {
	Cwd  string
	Out  string
	From string
	To   string
}

// Materialize copies every file and returns the destinations in input
// order. Files are independent; an empty list is a no-op.
func (m *Materializer) Materialize(files []string) ([]string, error) {
	dests := make([]string, 0, len(files))
	for _, file := range files {
		dest, err := m.Destination(file)
		if err != nil {
			return dests, err
		}
		if err := CopyFile(file, dest); err != nil {
			return dests, errors.WrapIO(err, errors.ErrCodeMaterialize, "failed to materialize file").
				WithPath(file)
		}
		dests = append(dests, dest)
	}
	return dests, nil
}

// Destination computes where file lands in the output tree.
func (m *Materializer) Destination(file string) (string, error) {
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(m.Cwd, file)
	}
	if !validation.Within(m.Cwd, abs) {
		return "", errors.NewValidationError(errors.ErrCodeInvalidPath,
			fmt.Sprintf("source file is outside the package directory %s", m.Cwd)).WithPath(file)
	}

	rel, err := filepath.Rel(m.Cwd, abs)
	if err != nil {
		return "", errors.WrapIO(err, errors.ErrCodeInvalidPath, "failed to relativize source file").
			WithPath(file)
	}
	return filepath.Join(m.Out, RewriteSegment(rel, m.From, m.To)), nil
}

// CopyFile copies src to dst byte for byte, creating parent directories and
// overwriting dst. The copy goes through a temporary file in the
// destination directory so readers never observe a partial file.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename into %s: %w", dst, err)
	}
	return nil
}

// WriteFile writes data to dst, creating parent directories.
func WriteFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
