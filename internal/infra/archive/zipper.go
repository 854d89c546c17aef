package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mario-guerra/translation-service/internal/domain/port"
)

type ZipCreator struct{}

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

// CreateZip packages the given files into outputPath. Entry names are
// taken from the entries, not from the source file names.
func (z *ZipCreator) CreateZip(ctx context.Context, entries []port.ZipEntry, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := addEntry(zipWriter, entry); err != nil {
			return fmt.Errorf("add %s to zip: %w", entry.Name, err)
		}
	}

	return nil
}

func addEntry(zw *zip.Writer, entry port.ZipEntry) error {
	file, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = entry.Name
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}
