package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// storedFile wraps a FileRecord with the insertion sequence used to keep
// ListFiles in insertion order.
type storedFile struct {
	Seq    uint64              `json:"seq"`
	Record metadata.FileRecord `json:"record"`
}

func encodeFile(f *storedFile) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal file record: %w", err)
	}
	return data, nil
}

func decodeFile(data []byte) (*storedFile, error) {
	var f storedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file record: %w", err)
	}
	return &f, nil
}

func encodeLock(entry *metadata.LockEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock entry: %w", err)
	}
	return data, nil
}

func decodeLock(data []byte) (*metadata.LockEntry, error) {
	var entry metadata.LockEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock entry: %w", err)
	}
	return &entry, nil
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func decodeSeq(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}
