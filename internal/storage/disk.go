package storage

import (
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of the local stores.
type Usage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	IndexBytes    int64 `json:"index_bytes"`
}

// Total returns the combined footprint.
func (u Usage) Total() int64 {
	return u.DatabaseBytes + u.IndexBytes
}

// MeasureUsage sums the sqlite database (including its -wal and -shm side files) and the
// search index directory. Missing paths contribute 0.
func MeasureUsage(databasePath, indexPath string) (Usage, error) {
	var u Usage
	for _, p := range []string{databasePath, databasePath + "-wal", databasePath + "-shm"} {
		if databasePath == "" {
			break
		}
		n, err := pathSize(p)
		if err != nil {
			return Usage{}, err
		}
		u.DatabaseBytes += n
	}
	n, err := pathSize(indexPath)
	if err != nil {
		return Usage{}, err
	}
	u.IndexBytes = n
	return u, nil
}

func pathSize(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.Walk(p, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi != nil && !fi.IsDir() {
			total += fi.Size()
		}
		return nil
	})
	return total, err
}
