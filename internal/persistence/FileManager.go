package persistence

import (
	"errors"
	"fmt"
	"freedomwall/internal/docstore"
	"freedomwall/internal/persistence/interfaces"
	"freedomwall/internal/providers"
	"os"

	json "github.com/goccy/go-json"
)

// FileManager writes and reads zstd-compressed JSON snapshots of an
// in-memory document store. Backends that persist on their own are skipped.
type FileManager struct {
	store      docstore.Snapshotter
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, store docstore.Backend, logger providers.Logger) *FileManager {
	snapshotter, _ := store.(docstore.Snapshotter)
	return &FileManager{
		compressor: compressor,
		store:      snapshotter,
		logger:     logger,
	}
}

func (f *FileManager) Enabled() bool {
	return f.store != nil
}

func (f *FileManager) SaveToFile(fileName string) (*docstore.Snapshot, error) {
	if !f.Enabled() {
		return nil, nil
	}
	snapshot := f.store.Snapshot()

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return nil, err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return nil, err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return nil, err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return nil, err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return nil, err
	}

	return snapshot, os.Rename(tmpFile, fileName)
}

func (f *FileManager) Close() {
	f.compressor.Close()
}

func (f *FileManager) LoadFromFile(fileName string) error {
	if !f.Enabled() {
		return nil
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	jsonData, err := f.compressor.Decompress(data)
	switch {
	case errors.Is(err, ErrNotCompressed):
		// Seed files may be written by hand as plain JSON.
		f.logger.Warnf(providers.TypeApp, "Snapshot %s is not compressed, reading as plain JSON", fileName)
		jsonData = data
	case err != nil:
		return fmt.Errorf("decompress snapshot %s: %w", fileName, err)
	}

	var snapshot docstore.Snapshot
	if err := json.Unmarshal(jsonData, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", fileName, err)
	}
	if snapshot.Version > docstore.SnapshotVersion {
		return fmt.Errorf("snapshot %s has unsupported version %d", fileName, snapshot.Version)
	}
	return f.store.Restore(&snapshot)
}
