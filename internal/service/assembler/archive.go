package assembler

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/oshokin/runtime-bundler/internal/failure"
)

// Format is a supported archive compression.
type Format string

// Supported formats.
const (
	FormatTarBzip2 Format = "tar.bz2"
	FormatTarGzip  Format = "tar.gz"
	FormatTarXz    Format = "tar.xz"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o644
)

var (
	errUnsupportedFormat = errors.New("unsupported archive format")
	errUnsafePath        = errors.New("archive entry escapes the extraction root")
)

// suffixes maps file name endings to formats; checked in order.
var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.bz2", FormatTarBzip2},
	{".tbz2", FormatTarBzip2},
	{".tar.gz", FormatTarGzip},
	{".tgz", FormatTarGzip},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
}

// DetectFormat picks the archive format from the path of a URL or file name.
func DetectFormat(rawURL string) (Format, error) {
	name := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		name = parsed.Path
	}

	name = strings.ToLower(path.Base(name))

	for _, s := range suffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.format, nil
		}
	}

	return "", failure.Configuration("detect archive format", rawURL, errUnsupportedFormat)
}

// Extract unpacks the archive at src into dest. Only directories and regular
// files are created; links and special entries are skipped.
func Extract(src string, format Format, dest string) error {
	file, err := os.Open(filepath.Clean(src))
	if err != nil {
		return failure.Filesystem("open archive", src, err)
	}

	defer func() {
		_ = file.Close()
	}()

	stream, err := decompress(file, format)
	if err != nil {
		return failure.Filesystem("decompress archive", src, err)
	}

	reader := tar.NewReader(stream)

	for {
		header, nextErr := reader.Next()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}

		if nextErr != nil {
			return failure.Filesystem("read archive", src, nextErr)
		}

		if err = extractEntry(reader, header, dest); err != nil {
			return err
		}
	}
}

func decompress(r io.Reader, format Format) (io.Reader, error) {
	switch format {
	case FormatTarBzip2:
		return bzip2.NewReader(r), nil
	case FormatTarGzip:
		return gzip.NewReader(r)
	case FormatTarXz:
		return xz.NewReader(r)
	default:
		return nil, fmt.Errorf("%q: %w", format, errUnsupportedFormat)
	}
}

func extractEntry(reader io.Reader, header *tar.Header, dest string) error {
	//nolint:exhaustive // Links and devices are never needed in the bundle.
	switch header.Typeflag {
	case tar.TypeDir:
		// "./" is the extraction root itself.
		if filepath.Clean(filepath.FromSlash(header.Name)) == "." {
			return nil
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		if err = os.MkdirAll(target, dirPermissions); err != nil {
			return failure.Filesystem("create directory", target, err)
		}
	case tar.TypeReg:
		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		return writeEntry(reader, target)
	}

	return nil
}

func writeEntry(reader io.Reader, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return failure.Filesystem("create directory", filepath.Dir(target), err)
	}

	//nolint:gosec // target is checked by safeJoin.
	output, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return failure.Filesystem("create file", target, err)
	}

	//nolint:gosec // The archive comes from the configured runtime distribution.
	if _, err = io.Copy(output, reader); err != nil {
		_ = output.Close()

		return failure.Filesystem("write file", target, err)
	}

	if err = output.Close(); err != nil {
		return failure.Filesystem("close file", target, err)
	}

	return nil
}

// safeJoin joins an archive entry name onto base, rejecting absolute names and "..".
func safeJoin(base, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(name)))
	if clean == "." || clean == "" || filepath.IsAbs(clean) || strings.HasPrefix(name, "/") {
		return "", failure.Filesystem("extract", name, errUnsafePath)
	}

	target := filepath.Join(base, clean)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", failure.Filesystem("extract", name, errUnsafePath)
	}

	return target, nil
}
