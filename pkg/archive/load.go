// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// MaxEntrySize is the largest single entry accepted when reading archives.
const MaxEntrySize = 64 * 1024 * 1024

// LoadDirectory builds an archive from the files below dir.
//
// If dir contains a spec file (see FindSpecFile) it is decoded and used as the
// archive's spec and is not stored as an entry. Otherwise the spec holds only a
// module id derived from the directory name. Symlinks are skipped. Unless
// WithCreateTime is given, the create time is the newest file modification time.
func LoadDirectory(dir string, opts ...LoadOption) (*ScriptArchive, error) {
	options := applyLoadOptions(opts)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive directory: %w", err)
	}

	spec := options.spec
	specFileName := ""
	if spec == nil {
		specPath, serializer, findErr := FindSpecFile(absDir)
		switch {
		case findErr == nil:
			data, readErr := os.ReadFile(specPath)
			if readErr != nil {
				return nil, fmt.Errorf("failed to read spec file: %w", readErr)
			}
			if spec, err = serializer.Deserialize(data); err != nil {
				return nil, err
			}
			specFileName = serializer.FileName()
		case errors.Is(findErr, ErrSpecFileNotFound):
			id := options.moduleID
			if id.IsZero() {
				var idErr error
				if id, idErr = ParseModuleID(filepath.Base(absDir)); idErr != nil {
					return nil, fmt.Errorf("cannot derive module id from directory name: %w", idErr)
				}
			}
			spec = NewModuleSpecBuilder(id).Build()
		default:
			return nil, findErr
		}
	}

	entries := make(map[string][]byte)
	var newest time.Time
	walkErr := filepath.WalkDir(absDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, relErr := filepath.Rel(absDir, p)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}
		name := filepath.ToSlash(rel)
		if name == specFileName {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("failed to get file info: %w", infoErr)
		}
		if info.Size() > MaxEntrySize {
			return fmt.Errorf("entry %s exceeds maximum size of %d bytes", name, MaxEntrySize)
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}

		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return fmt.Errorf("failed to read file %s: %w", p, readErr)
		}
		entries[name] = data
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to load archive directory: %w", walkErr)
	}

	return finishLoad(spec, entries, newest, options)
}

// LoadZip builds an archive from a ZIP file. See ReadZip.
func LoadZip(zipPath string, opts ...LoadOption) (a *ScriptArchive, err error) {
	f, err := os.Open(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat ZIP file: %w", err)
	}

	options := applyLoadOptions(opts)
	if options.spec == nil && options.moduleID.IsZero() {
		// Archives without a spec file are named after the ZIP file.
		base := strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
		if id, idErr := ParseModuleID(base); idErr == nil {
			opts = append(opts, withFallbackModuleID(id))
		}
	}
	return ReadZip(f, info.Size(), opts...)
}

// ReadZip builds an archive from a ZIP stream. Entries live at the ZIP root; a
// spec file at the root is decoded as the archive's spec. Entry names that are
// absolute or escape the root are rejected.
func ReadZip(r io.ReaderAt, size int64, opts ...LoadOption) (*ScriptArchive, error) {
	options := applyLoadOptions(opts)

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP archive: %w", err)
	}

	spec := options.spec
	entries := make(map[string][]byte)
	var newest time.Time
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if err := validateEntryName(file.Name); err != nil {
			return nil, err
		}
		if file.UncompressedSize64 > MaxEntrySize {
			return nil, fmt.Errorf("entry %s exceeds maximum size of %d bytes", file.Name, MaxEntrySize)
		}

		data, readErr := readZipFile(file)
		if readErr != nil {
			return nil, readErr
		}

		if serializer, ok := serializerForFileName(file.Name); ok && options.spec == nil {
			if spec, err = serializer.Deserialize(data); err != nil {
				return nil, err
			}
			continue
		}

		if file.Modified.After(newest) {
			newest = file.Modified
		}
		entries[file.Name] = data
	}

	if spec == nil {
		if options.fallbackID.IsZero() && options.moduleID.IsZero() {
			return nil, fmt.Errorf("ZIP archive has no spec file and no module id was given: %w", ErrSpecFileNotFound)
		}
		id := options.moduleID
		if id.IsZero() {
			id = options.fallbackID
		}
		spec = NewModuleSpecBuilder(id).Build()
	}

	return finishLoad(spec, entries, newest, options)
}

// WriteZip writes the archive's entries and a CUE spec file to w.
func WriteZip(w io.Writer, a *ScriptArchive) (err error) {
	zw := zip.NewWriter(w)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	serializer := cueSerializer{}
	specData, err := serializer.Serialize(a.spec)
	if err != nil {
		return err
	}
	if err := writeZipEntry(zw, serializer.FileName(), specData, a.createTime); err != nil {
		return err
	}

	for _, name := range a.EntryNames() {
		if err := writeZipEntry(zw, name, a.entries[name], a.createTime); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create ZIP entry %s: %w", name, err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write ZIP entry %s: %w", name, err)
	}
	return nil
}

func readZipFile(file *zip.File) (data []byte, err error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP entry %s: %w", file.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	data, err = io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read ZIP entry %s: %w", file.Name, err)
	}
	if len(data) > MaxEntrySize {
		return nil, fmt.Errorf("entry %s exceeds maximum size of %d bytes", file.Name, MaxEntrySize)
	}
	return data, nil
}

// validateEntryName rejects names that are empty, absolute, use backslashes, or
// escape the archive root.
func validateEntryName(name string) error {
	if name == "" {
		return errors.New("entry name must not be empty")
	}
	if strings.Contains(name, "\\") || path.IsAbs(name) {
		return fmt.Errorf("entry name %q must be a relative slash-separated path", name)
	}
	clean := path.Clean(name)
	if clean != name || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("entry name %q is not a clean path inside the archive", name)
	}
	return nil
}

func applyLoadOptions(opts []LoadOption) loadOptions {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// withFallbackModuleID names archives that carry no spec file.
func withFallbackModuleID(id ModuleID) LoadOption {
	return func(o *loadOptions) { o.fallbackID = id }
}

func finishLoad(spec *ModuleSpec, entries map[string][]byte, newest time.Time, options loadOptions) (*ScriptArchive, error) {
	if !options.moduleID.IsZero() && spec.moduleID != options.moduleID {
		b := spec.ToBuilder()
		b.moduleID = options.moduleID
		spec = b.Build()
	}

	createTime := options.createTime
	if createTime.IsZero() {
		createTime = newest
	}
	return NewScriptArchive(spec, createTime, entries)
}
