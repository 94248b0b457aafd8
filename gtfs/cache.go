package gtfs

import (
	"encoding/gob"
	"fmt"
	"os"
)

// SaveCache writes the parsed index to a file using gob encoding, so a
// restart can skip re-parsing the GTFS tables.
//
// Thread safety: safe once the index is fully constructed.
func SaveCache(index *Index, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(index); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return nil
}

// LoadCache reads a previously saved index. On any error the caller should
// fall back to LoadDir and treat the cache as stale.
func LoadCache(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()
	var index Index
	if err := gob.NewDecoder(f).Decode(&index); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &index, nil
}
