// Package dataset reads ViVQA annotation files and groups them into batches.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// Header is the expected CSV header.
var Header = []string{"anno_id", "img_id", "image_path", "question", "answer"}

// ErrBadHeader is returned when a file does not start with Header.
var ErrBadHeader = errors.New("unexpected csv header")

// Sample is one annotated question about an image.
type Sample struct {
	AnnoID    string
	ImageID   string
	ImagePath string
	Question  string
	Answer    string
}

// Load reads samples from a CSV file. Relative image paths are resolved
// against the file's directory.
func Load(path string) ([]Sample, error) {
	f, err := os.Open(path) //nolint:gosec // dataset path is user-provided by design
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	samples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range samples {
		if p := samples[i].ImagePath; p != "" && !filepath.IsAbs(p) {
			samples[i].ImagePath = filepath.Join(dir, p)
		}
	}
	return samples, nil
}

// Read parses samples from CSV data with a Header line.
func Read(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range Header {
		if strings.TrimSpace(strings.ToLower(strings.TrimPrefix(header[i], "\ufeff"))) != name {
			return nil, fmt.Errorf("%w: got %v, want %v", ErrBadHeader, header, Header)
		}
	}

	var samples []Sample
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		samples = append(samples, Sample{
			AnnoID:    record[0],
			ImageID:   record[1],
			ImagePath: record[2],
			Question:  strings.TrimSpace(record[3]),
			Answer:    strings.TrimSpace(record[4]),
		})
	}
	return samples, nil
}

// Batches groups samples into batches of exactly size elements. A trailing
// partial batch is dropped. With a non-nil rng the samples are shuffled
// first; samples itself is never reordered.
func Batches(samples []Sample, size int, rng *rand.Rand) [][]Sample {
	if size <= 0 {
		return nil
	}
	order := make([]Sample, len(samples))
	copy(order, samples)
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([][]Sample, 0, len(order)/size)
	for start := 0; start+size <= len(order); start += size {
		batches = append(batches, order[start:start+size])
	}
	return batches
}

// Questions returns the questions of a batch.
func Questions(batch []Sample) []string {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = s.Question
	}
	return out
}

// Answers returns the answers of a batch.
func Answers(batch []Sample) []string {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = s.Answer
	}
	return out
}

// ImagePaths returns the image paths of a batch.
func ImagePaths(batch []Sample) []string {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = s.ImagePath
	}
	return out
}
