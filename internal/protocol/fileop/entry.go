package fileop

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/wavebroker/internal/protocol"
)

type EntryType int32

const (
	EntryEnd       EntryType = 0
	EntryFile      EntryType = 1
	EntryDirectory EntryType = 2
)

func (t EntryType) String() string {
	switch t {
	case EntryEnd:
		return "end"
	case EntryFile:
		return "file"
	case EntryDirectory:
		return "dir"
	default:
		return fmt.Sprintf("attr(%d)", int32(t))
	}
}

// EntryNameOffset is where the entry name starts in a dir-read reply.
// attr:int32 and size:int32 are followed by reserved bytes.
const EntryNameOffset = 36

// Entry is one directory listing element.
type Entry struct {
	Type EntryType
	Size int32
	Name string
}

func (e Entry) IsDir() bool { return e.Type == EntryDirectory }

// IsDot reports the "." and ".." pseudo entries.
func (e Entry) IsDot() bool { return e.Name == "." || e.Name == ".." }

// DecodeEntry parses the rest of a dir-read reply. An EntryEnd result marks
// the end of the listing.
func DecodeEntry(rest []byte) (Entry, error) {
	if len(rest) < 8 {
		return Entry{}, fmt.Errorf("%w: fileop: directory entry is %d bytes", protocol.ErrFraming, len(rest))
	}
	e := Entry{
		Type: EntryType(int32(binary.LittleEndian.Uint32(rest[0:4]))),
		Size: int32(binary.LittleEndian.Uint32(rest[4:8])),
	}
	if e.Type == EntryEnd {
		return e, nil
	}
	if e.Type != EntryFile && e.Type != EntryDirectory {
		return Entry{}, fmt.Errorf("%w: fileop: unknown entry attribute %d", protocol.ErrProtocolSemantic, int32(e.Type))
	}
	if len(rest) <= EntryNameOffset {
		return Entry{}, fmt.Errorf("%w: fileop: directory entry has no name", protocol.ErrFraming)
	}
	name, err := ParsePath(rest[EntryNameOffset:])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", protocol.ErrFraming, err)
	}
	e.Name = name
	return e, nil
}

// EncodeEntry renders e as a dir-read reply rest.
func EncodeEntry(e Entry) []byte {
	out := make([]byte, EntryNameOffset, EntryNameOffset+len(e.Name)+1)
	binary.LittleEndian.PutUint32(out[0:4], uint32(e.Type))
	binary.LittleEndian.PutUint32(out[4:8], uint32(e.Size))
	if e.Type == EntryEnd {
		return out
	}
	return append(out, PathBody(e.Name)...)
}
