// Package prog holds the built-in user programs: the shell spawned on each terminal at boot and
// the small utilities it can run. Each program is an executable image on the file system — magic
// bytes and an entry point — whose entry selects the program body the machine runs.
package prog

import (
	"encoding/binary"

	"github.com/psyche-os/psyche/internal/fs"
	"github.com/psyche-os/psyche/internal/kernel"
)

// Def describes one built-in program: its file name, the entry point recorded in its image, and
// the body that entry point selects.
type Def struct {
	Name  string
	Entry uint32
	Body  kernel.Program
}

// Table lists the built-in programs. Entry points are distinct link addresses within the
// program window's text region.
var Table = []Def{
	{Name: "shell", Entry: 0x08048094, Body: shellMain},
	{Name: "ls", Entry: 0x080480C4, Body: lsMain},
	{Name: "cat", Entry: 0x080480F8, Body: catMain},
	{Name: "hello", Entry: 0x08048128, Body: helloMain},
	{Name: "counter", Entry: 0x08048158, Body: counterMain},
	{Name: "pingpong", Entry: 0x0804818C, Body: pingpongMain},
}

// Bodies returns the entry-point registry for kernel.WithPrograms.
func Bodies() map[uint32]kernel.Program {
	out := make(map[uint32]kernel.Program, len(Table))

	for _, def := range Table {
		out[def.Entry] = def.Body
	}

	return out
}

// Image serializes a program as an executable image: the magic, the entry word at its fixed
// offset, and a stretch of text so the file is more than a bare header.
func Image(def Def) []byte {
	img := make([]byte, 256)

	copy(img, []byte{0x7F, 'E', 'L', 'F'})
	binary.LittleEndian.PutUint32(img[24:], def.Entry)
	copy(img[32:], def.Name)

	for i := 64; i < len(img); i += 4 {
		binary.LittleEndian.PutUint32(img[i:], def.Entry^uint32(i))
	}

	return img
}

// AddAll adds every built-in program image to a file-system image under construction.
func AddAll(b *fs.Builder) *fs.Builder {
	for _, def := range Table {
		b.AddFile(def.Name, Image(def))
	}

	return b
}

// DemoImage assembles the fallback disk: the tick device, the built-in programs, and a couple
// of files to poke at.
func DemoImage() ([]byte, error) {
	return AddAll(fs.NewBuilder().AddTickDevice("rtc")).
		AddFile("frame0.txt", []byte(fish0)).
		AddFile("frame1.txt", []byte(fish1)).
		Build()
}

const (
	fish0 = `
   o
  o      ______
   o  .-'      '-.
    ><((((°>    )
      '-.______.-'
`
	fish1 = `
   o
  o      ______
   o  .-'      '-.
      (    <°))))><
      '-.______.-'
`
)
