// Package attach ingests uploaded files into inline data-URI attachments.
// Reads are issued concurrently and awaited jointly; the resulting list
// preserves input order regardless of completion order.
package attach

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"simplecal/internal/model"
)

// DefaultMaxFileSize bounds a single attachment; data URIs are stored inline
// with the event record, so unbounded uploads would bloat the collection.
const DefaultMaxFileSize = 10 << 20 // 10 MiB

// File is one pending upload.
type File struct {
	Name   string
	Type   string // MIME type; defaults to application/octet-stream
	Reader io.Reader
}

// ReadAll reads every file into a data-URI attachment. All reads run
// concurrently; the call returns only when every read has settled. On any
// failure the joined error is returned and no attachments are produced.
func ReadAll(files []File, maxSize int64) ([]model.Attachment, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	out := make([]model.Attachment, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			att, err := readOne(f, maxSize)
			if err != nil {
				errs[i] = err
				return
			}
			out[i] = att
		}(i, f)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func readOne(f File, maxSize int64) (model.Attachment, error) {
	if f.Name == "" {
		return model.Attachment{}, errors.New("attach: file has no name")
	}

	data, err := io.ReadAll(io.LimitReader(f.Reader, maxSize+1))
	if err != nil {
		return model.Attachment{}, fmt.Errorf("attach: read %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxSize {
		return model.Attachment{}, fmt.Errorf("attach: %s exceeds %d bytes", f.Name, maxSize)
	}

	mimeType := f.Type
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return model.Attachment{
		Name:    f.Name,
		Type:    mimeType,
		DataURL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
