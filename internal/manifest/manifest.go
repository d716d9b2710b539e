// Package manifest writes the CSV file lists consumed by training loaders.
package manifest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	ColorFile  = "color.csv"
	NormalFile = "normal.csv"
)

// WriteColor lists the color images of imgDir in csvDir/color.csv.
func WriteColor(csvDir, imgDir string) (string, error) {
	return write(filepath.Join(csvDir, ColorFile), "color", imgDir)
}

// WriteNormal lists the normal images of imgDir in csvDir/normal.csv.
func WriteNormal(csvDir, imgDir string) (string, error) {
	return write(filepath.Join(csvDir, NormalFile), "normal", imgDir)
}

// List returns imgDir/<name> for every PNG in imgDir, sorted.
func List(imgDir string) ([]string, error) {
	entries, err := os.ReadDir(imgDir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	var rows []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		rows = append(rows, filepath.Join(imgDir, e.Name()))
	}
	sort.Strings(rows)
	return rows, nil
}

// write renders the whole file in memory first so a rerun over the same
// directory produces identical bytes.
func write(path, header, imgDir string) (string, error) {
	rows, err := List(imgDir)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{header}); err != nil {
		return "", err
	}
	for _, r := range rows {
		if err := w.Write([]string{r}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// Read returns the rows of a manifest without its header.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: missing header", path)
		}
		return nil, err
	}
	var rows []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, rec[0])
	}
}
