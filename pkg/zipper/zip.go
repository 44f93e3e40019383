// Package zipper archives artifact directories for publishing.
package zipper

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ZipDirectory writes every file under directory to the zip archive
// outputFilename, keeping paths relative to directory. When prefixes are
// given only entries whose relative path starts with one of them are kept.
func ZipDirectory(fs afero.Fs, directory, outputFilename string, prefixes ...string) (err error) {
	outFile, err := fs.Create(outputFilename)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer func() {
		if closeErr := outFile.Close(); err == nil {
			err = closeErr
		}
	}()

	zipWriter := zip.NewWriter(outFile)
	defer func() {
		if closeErr := zipWriter.Close(); err == nil {
			err = closeErr
		}
	}()

	output := filepath.Clean(outputFilename)
	return afero.Walk(fs, directory, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if filepath.Clean(filePath) == output {
			return nil
		}

		relPath, err := filepath.Rel(directory, filePath)
		if err != nil {
			return err
		}
		if relPath == "." || !hasAnyPrefix(relPath, prefixes) {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		} else {
			header.Method = zip.Deflate
		}

		zipFile, err := zipWriter.CreateHeader(header)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		fsFile, err := fs.Open(filePath)
		if err != nil {
			return err
		}
		defer fsFile.Close()

		_, err = io.Copy(zipFile, fsFile)
		return err
	})
}

func hasAnyPrefix(relPath string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}
	return false
}
