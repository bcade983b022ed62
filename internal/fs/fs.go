// Package fs reads the fixed on-disk file-system layout the kernel boots from.
//
// The layout is a sequence of 4 KB blocks: a boot block holding counts and up to 63 directory
// entries, one block per inode, then the data blocks. The format is external and read-only; this
// package only consumes it.
package fs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Fixed sizes of the on-disk layout.
const (
	BlockSize = 4096

	// MaxNameLen bounds a directory entry name. Names at the limit are not NUL-terminated.
	MaxNameLen = 32

	// MaxDentries is the number of directory entry slots in the boot block.
	MaxDentries = 63

	// MaxFileBlocks is the number of block indices an inode can hold.
	MaxFileBlocks = 1023

	dentrySize    = 64
	bootHeaderLen = 64
)

// File types stored in a directory entry.
const (
	TypeTick = 0 // The periodic tick device.
	TypeDir  = 1 // The directory itself.
	TypeFile = 2 // A regular data file.
)

// Errors returned by the file subsystem.
var (
	ErrImage    = errors.New("fs: bad image")
	ErrNotFound = errors.New("fs: no such file")
	ErrInode    = errors.New("fs: bad inode")
)

// Dentry is one directory entry: a bounded name, a file type, and an inode number.
type Dentry struct {
	Name  string
	Type  uint32
	Inode uint32
}

// FileSystem is a parsed, read-only view over a file-system image.
type FileSystem struct {
	raw []byte

	numDentries uint32
	numInodes   uint32
	numBlocks   uint32
}

// New validates the boot block of an image and returns a file system reading from it. The image
// bytes are retained, not copied.
func New(image []byte) (*FileSystem, error) {
	if len(image) < BlockSize {
		return nil, fmt.Errorf("%w: truncated boot block: %d bytes", ErrImage, len(image))
	}

	fsys := &FileSystem{
		raw:         image,
		numDentries: binary.LittleEndian.Uint32(image[0:]),
		numInodes:   binary.LittleEndian.Uint32(image[4:]),
		numBlocks:   binary.LittleEndian.Uint32(image[8:]),
	}

	if fsys.numDentries > MaxDentries {
		return nil, fmt.Errorf("%w: %d directory entries", ErrImage, fsys.numDentries)
	}

	want := int(1+fsys.numInodes+fsys.numBlocks) * BlockSize
	if len(image) < want {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrImage, len(image), want)
	}

	return fsys, nil
}

// NumDentries returns the number of directory entries.
func (fsys *FileSystem) NumDentries() int { return int(fsys.numDentries) }

func (fsys *FileSystem) dentryAt(index uint32) Dentry {
	off := bootHeaderLen + int(index)*dentrySize
	raw := fsys.raw[off : off+dentrySize]

	name := raw[:MaxNameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return Dentry{
		Name:  string(name),
		Type:  binary.LittleEndian.Uint32(raw[MaxNameLen:]),
		Inode: binary.LittleEndian.Uint32(raw[MaxNameLen+4:]),
	}
}

// DentryByName resolves a file name to its directory entry. Lookup compares at most MaxNameLen
// bytes, matching the bounded on-disk names.
func (fsys *FileSystem) DentryByName(name string) (Dentry, error) {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}

	for i := uint32(0); i < fsys.numDentries; i++ {
		if d := fsys.dentryAt(i); d.Name == name {
			return d, nil
		}
	}

	return Dentry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// DentryByIndex returns the directory entry at the given position.
func (fsys *FileSystem) DentryByIndex(index uint32) (Dentry, error) {
	if index >= fsys.numDentries {
		return Dentry{}, fmt.Errorf("%w: dentry %d of %d", ErrNotFound, index, fsys.numDentries)
	}

	return fsys.dentryAt(index), nil
}

func (fsys *FileSystem) inodeBlock(inode uint32) []byte {
	off := int(1+inode) * BlockSize
	return fsys.raw[off : off+BlockSize]
}

func (fsys *FileSystem) dataBlock(index uint32) ([]byte, error) {
	if index >= fsys.numBlocks {
		return nil, fmt.Errorf("%w: data block %d of %d", ErrInode, index, fsys.numBlocks)
	}

	off := int(1+fsys.numInodes+index) * BlockSize

	return fsys.raw[off : off+BlockSize], nil
}

// FileSize returns the byte length recorded in an inode.
func (fsys *FileSystem) FileSize(inode uint32) (int, error) {
	if inode >= fsys.numInodes {
		return 0, fmt.Errorf("%w: inode %d of %d", ErrInode, inode, fsys.numInodes)
	}

	return int(binary.LittleEndian.Uint32(fsys.inodeBlock(inode))), nil
}

// ReadData copies file bytes starting at offset into buf, stopping at end of file. It returns the
// number of bytes copied; reading at or past end of file returns zero.
func (fsys *FileSystem) ReadData(inode uint32, offset uint32, buf []byte) (int, error) {
	size, err := fsys.FileSize(inode)
	if err != nil {
		return 0, err
	}

	if int(offset) >= size {
		return 0, nil
	}

	length := len(buf)
	if remain := size - int(offset); length > remain {
		length = remain
	}

	ib := fsys.inodeBlock(inode)

	var (
		copied   int
		blockNum = int(offset) / BlockSize
		blockPos = int(offset) % BlockSize
	)

	for copied < length {
		index := binary.LittleEndian.Uint32(ib[4+blockNum*4:])

		block, err := fsys.dataBlock(index)
		if err != nil {
			return copied, err
		}

		n := copy(buf[copied:length], block[blockPos:])
		copied += n
		blockPos = 0
		blockNum++
	}

	return copied, nil
}

// ReadFileByName reads a file's bytes from offset zero into buf. It combines name resolution and
// data reads for callers that do not keep a position.
func (fsys *FileSystem) ReadFileByName(name string, buf []byte) (int, error) {
	d, err := fsys.DentryByName(name)
	if err != nil {
		return 0, err
	}

	if d.Type != TypeFile {
		return 0, fmt.Errorf("%w: %q is not a regular file", ErrNotFound, name)
	}

	return fsys.ReadData(d.Inode, 0, buf)
}
