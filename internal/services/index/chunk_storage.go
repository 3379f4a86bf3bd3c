package index

import (
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"
)

// ChunkRecord is the persisted form of an embedded advisory chunk.
type ChunkRecord struct {
	ID               string `badgerhold:"key"`
	AdvisoryFilename string
	SectionIndex     int
	Text             string
	SourceType       string
	Embedding        []float32
}

// ChunkStorage persists embedded chunks in BadgerDB so the corpus only
// has to be embedded once.
type ChunkStorage struct {
	store *badgerhold.Store
	path  string
}

// OpenChunkStorage opens (or creates) the chunk store at path.
func OpenChunkStorage(path string) (*ChunkStorage, error) {
	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store at %s: %w", path, err)
	}

	return &ChunkStorage{store: store, path: path}, nil
}

// Put inserts or replaces a chunk record
func (s *ChunkStorage) Put(record *ChunkRecord) error {
	if err := s.store.Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to store chunk %s: %w", record.ID, err)
	}
	return nil
}

// All returns every stored chunk record
func (s *ChunkStorage) All() ([]ChunkRecord, error) {
	var records []ChunkRecord
	if err := s.store.Find(&records, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	return records, nil
}

// Count returns the number of stored chunks
func (s *ChunkStorage) Count() (int, error) {
	count, err := s.store.Count(&ChunkRecord{}, badgerhold.Where("ID").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// Clear removes every stored chunk
func (s *ChunkStorage) Clear() error {
	if err := s.store.DeleteMatching(&ChunkRecord{}, badgerhold.Where("ID").Ne("")); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

// Close closes the underlying store
func (s *ChunkStorage) Close() error {
	return s.store.Close()
}

// RemoveChunkStorage deletes the store directory, forcing a re-embed on
// the next startup.
func RemoveChunkStorage(path string) error {
	return os.RemoveAll(path)
}
