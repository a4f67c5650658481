package utils

import (
	"fmt"
	"hash/crc32"

	"github.com/oklog/ulid/v2"
)

// CalculateHash generates a quoted CRC32 version tag for the data
func CalculateHash(data []byte) string {
	table := crc32.MakeTable(crc32.IEEE)
	return fmt.Sprintf("\"%08x\"", crc32.Checksum(data, table))
}

// NewID returns a new lexically sortable unique id
func NewID() string {
	return ulid.Make().String()
}
