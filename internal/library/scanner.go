package library

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/audio"
	playerrors "github.com/jscyril/lightshow_player/pkg/errors"
)

// Scanner scans directories concurrently using a worker pool
type Scanner struct {
	workers    int
	metaReader *MetadataReader
}

// NewScanner creates a new file scanner
func NewScanner(workers int) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{
		workers:    workers,
		metaReader: NewMetadataReader(),
	}
}

// Scan walks paths and reads every supported file on a worker pool. Both
// channels are closed once the walk and all workers finish.
func (s *Scanner) Scan(ctx context.Context, paths []string) (<-chan *api.Song, <-chan error) {
	songs := make(chan *api.Song, 100)
	errs := make(chan error, 10)
	files := make(chan string, 100)

	report := func(err error) {
		select {
		case errs <- err:
		case <-ctx.Done():
		}
	}

	var walkers, workers sync.WaitGroup

	walkers.Add(1)
	go func() {
		defer walkers.Done()
		defer close(files)
		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}

			err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					report(&playerrors.ScanError{Path: p, Err: err})
					if d != nil && d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}
				if d.IsDir() && d.Name() == "beats" {
					return fs.SkipDir
				}
				if d.IsDir() || !audio.IsSupported(p) {
					return nil
				}

				select {
				case files <- p:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil && ctx.Err() == nil {
				report(&playerrors.ScanError{Path: path, Err: err})
			}
		}
	}()

	for i := 0; i < s.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for filePath := range files {
				song, err := s.metaReader.Read(filePath)
				if err != nil {
					report(&playerrors.ScanError{Path: filePath, Err: err})
					continue
				}

				select {
				case songs <- song:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		walkers.Wait()
		workers.Wait()
		close(songs)
		close(errs)
	}()

	return songs, errs
}

// ScanFile reads a single file
func (s *Scanner) ScanFile(filePath string) (*api.Song, error) {
	if !audio.IsSupported(filePath) {
		return nil, &playerrors.ScanError{Path: filePath, Err: playerrors.ErrInvalidFormat}
	}
	return s.metaReader.Read(filePath)
}
