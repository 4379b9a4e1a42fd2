package bursts

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileResult holds the bursts parsed from one window file.
type FileResult struct {
	Name    string
	Bursts  []Burst
	Lines   int
	Skipped int
}

// ReadFile parses at most the first n lines of r; n <= 0 reads nothing.
// Lines that do not match the burst grammar are logged and skipped. Bursts
// come back in file order, so callers wanting the top N by magnitude must
// pre-sort the file.
func ReadFile(r io.Reader, name string, n int) (*FileResult, error) {
	log.Printf("Processing %s", name)

	res := &FileResult{Name: name}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for res.Lines < n && scanner.Scan() {
		res.Lines++
		line := strings.TrimRight(scanner.Text(), "\r")

		b, ok := ParseLine(line)
		if !ok {
			res.Skipped++
			log.Printf("No match on line %d", res.Lines)
			log.Printf(">>>%s", line)
			continue
		}
		res.Bursts = append(res.Bursts, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return res, nil
}

// ListFiles returns the regular files directly inside dir, sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ReadPath opens path and parses it with ReadFile.
func ReadPath(path string, n int) (*FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadFile(f, path, n)
}

// ReadPaths parses the first n lines of every file in paths, in order.
func ReadPaths(paths []string, n int) ([]*FileResult, error) {
	results := make([]*FileResult, 0, len(paths))
	for _, path := range paths {
		res, err := ReadPath(path, n)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
