package fs

// image.go assembles file-system images in the fixed on-disk layout. The builder exists for the
// mkfs tool and for tests; the kernel itself never writes images.

import (
	"encoding/binary"
	"fmt"
)

// Builder accumulates entries and serializes them as a file-system image.
type Builder struct {
	entries []builderEntry
}

type builderEntry struct {
	name string
	typ  uint32
	data []byte
}

// NewBuilder returns a builder pre-populated with the "." directory entry, which every image
// carries so directory reads can list it.
func NewBuilder() *Builder {
	b := &Builder{}
	b.add(".", TypeDir, nil)

	return b
}

func (b *Builder) add(name string, typ uint32, data []byte) {
	b.entries = append(b.entries, builderEntry{name: name, typ: typ, data: data})
}

// AddFile adds a regular file. Names longer than MaxNameLen are truncated, as on disk.
func (b *Builder) AddFile(name string, data []byte) *Builder {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}

	b.add(name, TypeFile, data)

	return b
}

// AddTickDevice adds a directory entry for the periodic tick device.
func (b *Builder) AddTickDevice(name string) *Builder {
	b.add(name, TypeTick, nil)
	return b
}

// Build serializes the image: boot block, inode blocks for the regular files, then data blocks.
func (b *Builder) Build() ([]byte, error) {
	if len(b.entries) > MaxDentries {
		return nil, fmt.Errorf("%w: %d entries exceed %d", ErrImage, len(b.entries), MaxDentries)
	}

	// Regular files get inodes, in entry order. Devices and the directory use inode 0 harmlessly;
	// nothing dereferences it for them.
	var (
		inodes     []builderEntry
		inodeIndex = map[int]uint32{}
	)

	for i, e := range b.entries {
		if e.typ == TypeFile {
			if len(e.data) > MaxFileBlocks*BlockSize {
				return nil, fmt.Errorf("%w: %q: %d bytes", ErrImage, e.name, len(e.data))
			}

			inodeIndex[i] = uint32(len(inodes))
			inodes = append(inodes, e)
		}
	}

	numBlocks := 0
	for _, e := range inodes {
		numBlocks += (len(e.data) + BlockSize - 1) / BlockSize
	}

	image := make([]byte, (1+len(inodes)+numBlocks)*BlockSize)

	// Boot block.
	binary.LittleEndian.PutUint32(image[0:], uint32(len(b.entries)))
	binary.LittleEndian.PutUint32(image[4:], uint32(len(inodes)))
	binary.LittleEndian.PutUint32(image[8:], uint32(numBlocks))

	for i, e := range b.entries {
		off := bootHeaderLen + i*dentrySize
		copy(image[off:off+MaxNameLen], e.name)
		binary.LittleEndian.PutUint32(image[off+MaxNameLen:], e.typ)
		binary.LittleEndian.PutUint32(image[off+MaxNameLen+4:], inodeIndex[i])
	}

	// Inode and data blocks.
	nextBlock := uint32(0)

	for i, e := range inodes {
		ib := image[(1+i)*BlockSize:]
		binary.LittleEndian.PutUint32(ib, uint32(len(e.data)))

		for pos := 0; pos < len(e.data); pos += BlockSize {
			binary.LittleEndian.PutUint32(ib[4+(pos/BlockSize)*4:], nextBlock)

			dst := image[(1+uint32(len(inodes))+nextBlock)*BlockSize:]
			copy(dst[:BlockSize], e.data[pos:])

			nextBlock++
		}
	}

	return image, nil
}
