// Package fakedevice simulates a handset behind a fakeport.Port: AT replies,
// status pushes and an in-memory file system speaking the file protocol.
package fakedevice

import (
	"bytes"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/wavebroker/internal/protocol/fileop"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
	"github.com/danmuck/wavebroker/internal/testutil/fakeport"
)

// Call is one file protocol request as the device saw it.
type Call struct {
	Op   fileop.Opcode
	Path string
	Len  int
}

type Device struct {
	Port *fakeport.Port

	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	calls []Call

	// AT maps a command to its reply lines, terminal line included.
	AT map[string][]string
	// Echo repeats each AT command before its reply.
	Echo bool
	// OnStatus returns frames to push in reply to a status command.
	OnStatus func(command string) []frame.Frame
	// Override may replace the reply to any file request.
	Override func(op fileop.Opcode, body []byte) (frame.Frame, bool)
	// StrictDirDelete rejects deleting non-empty directories.
	StrictDirDelete bool
	// ReadChunk caps each read reply.
	ReadChunk int

	open      string
	readPos   int
	listing   []fileop.Entry
	listPos   int
	statusLog []string
}

func New() *Device {
	d := &Device{
		Port:            fakeport.New(),
		files:           map[string][]byte{},
		dirs:            map[string]bool{"/": true},
		AT:              map[string][]string{},
		StrictDirDelete: true,
		ReadChunk:       1024,
	}
	d.Port.OnWrite = d.handle
	return d
}

func (d *Device) AddDir(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirs[p] = true
}

func (d *Device) AddFile(p string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[p] = append([]byte{}, data...)
}

func (d *Device) File(p string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.files[p]
	return b, ok
}

func (d *Device) HasDir(p string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirs[p]
}

// Calls returns every file request so far.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call{}, d.calls...)
}

// StatusCommands returns every status command text received.
func (d *Device) StatusCommands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.statusLog...)
}

// Push feeds frames as if the device sent them unprompted.
func (d *Device) Push(frames ...frame.Frame) {
	for _, f := range frames {
		b, err := frame.Encode(f)
		if err != nil {
			panic(err)
		}
		d.Port.Feed(b)
	}
}

func (d *Device) handle(p []byte) {
	if len(p) > 0 && p[0] == frame.StartMarker {
		f, err := frame.Decode(p)
		if err != nil {
			return
		}
		d.handleFrame(f)
		return
	}
	cmd := strings.TrimRight(string(p), "\r\n")
	d.mu.Lock()
	lines, ok := d.AT[cmd]
	echo := d.Echo
	d.mu.Unlock()
	var out bytes.Buffer
	if echo {
		out.WriteString(cmd + "\r\n")
	}
	if !ok {
		lines = []string{"ERROR"}
	}
	for _, l := range lines {
		out.WriteString("\r\n" + l + "\r\n")
	}
	d.Port.Feed(out.Bytes())
}

func (d *Device) handleFrame(f frame.Frame) {
	switch f.Command {
	case frame.CommandStatus:
		d.mu.Lock()
		d.statusLog = append(d.statusLog, string(f.Payload))
		hook := d.OnStatus
		d.mu.Unlock()
		if hook != nil {
			d.Push(hook(string(f.Payload))...)
		}
	case frame.CommandFile:
		op, body, err := fileop.ParseRequest(f)
		if err != nil {
			return
		}
		if d.Override != nil {
			if reply, ok := d.Override(op, body); ok {
				d.record(op, body)
				d.Push(reply)
				return
			}
		}
		d.Push(fileop.Response(op, d.fileOp(op, body)))
	}
}

func pathOf(body []byte) string {
	p, _ := fileop.ParsePath(body)
	return p
}

func (d *Device) record(op fileop.Opcode, body []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := Call{Op: op, Len: len(body)}
	switch op {
	case fileop.OpOpen:
		if len(body) >= 4 && body[0] == 0x09 {
			c.Path = pathOf(body[4:])
		} else {
			c.Path = pathOf(body)
		}
	case fileop.OpDelete, fileop.OpDirCreate, fileop.OpDirDelete, fileop.OpDirOpen:
		c.Path = pathOf(body)
	}
	d.calls = append(d.calls, c)
}

var (
	okFile = fileop.Result{Status: 0, Code1: 3, Code2: 6}
	okDir  = fileop.Result{Status: 0, Code1: 3, Code2: 13}
	fail   = fileop.Result{Status: -1, Code1: 3, Code2: 6}
)

func (d *Device) fileOp(op fileop.Opcode, body []byte) fileop.Result {
	d.record(op, body)
	d.mu.Lock()
	defer d.mu.Unlock()

	switch op {
	case fileop.OpOpen:
		if len(body) >= 4 && body[0] == 0x09 {
			d.open = pathOf(body[4:])
			d.files[d.open] = []byte{}
			return okFile
		}
		p := pathOf(body)
		if _, ok := d.files[p]; !ok {
			return fail
		}
		d.open, d.readPos = p, 0
		return okFile
	case fileop.OpWrite:
		if d.open == "" {
			return fail
		}
		d.files[d.open] = append(d.files[d.open], body...)
		return fileop.Result{Status: int32(len(body)), Code1: 3, Code2: 6}
	case fileop.OpRead:
		data := d.files[d.open]
		end := d.readPos + d.ReadChunk
		if end > len(data) {
			end = len(data)
		}
		res := okFile
		res.Rest = append([]byte{}, data[d.readPos:end]...)
		d.readPos = end
		return res
	case fileop.OpClose:
		d.open = ""
		return okFile
	case fileop.OpDelete:
		p := pathOf(body)
		if _, ok := d.files[p]; !ok {
			return fail
		}
		delete(d.files, p)
		return okFile
	case fileop.OpDirCreate:
		d.dirs[pathOf(body)] = true
		return okFile
	case fileop.OpDirDelete:
		p := pathOf(body)
		if !d.dirs[p] {
			return fileop.Result{Status: -1, Code1: 3, Code2: 13}
		}
		if d.StrictDirDelete && len(d.children(p)) > 0 {
			return fileop.Result{Status: -5, Code1: 3, Code2: 13}
		}
		delete(d.dirs, p)
		return okDir
	case fileop.OpDirOpen:
		p := pathOf(body)
		if !d.dirs[p] {
			return fileop.Result{Status: -1, Code1: 3, Code2: 13}
		}
		d.listing = append([]fileop.Entry{
			{Type: fileop.EntryDirectory, Name: "."},
			{Type: fileop.EntryDirectory, Name: ".."},
		}, d.children(p)...)
		d.listPos = 0
		return okDir
	case fileop.OpDirRead:
		res := okDir
		if d.listPos >= len(d.listing) {
			res.Rest = fileop.EncodeEntry(fileop.Entry{Type: fileop.EntryEnd})
			return res
		}
		res.Rest = fileop.EncodeEntry(d.listing[d.listPos])
		d.listPos++
		return res
	case fileop.OpDirClose:
		d.listing = nil
		return okDir
	}
	return fail
}

func (d *Device) children(dir string) []fileop.Entry {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var out []fileop.Entry
	for p := range d.dirs {
		if name, ok := directChild(prefix, p); ok {
			out = append(out, fileop.Entry{Type: fileop.EntryDirectory, Name: name})
		}
	}
	for p, data := range d.files {
		if name, ok := directChild(prefix, p); ok {
			out = append(out, fileop.Entry{Type: fileop.EntryFile, Size: int32(len(data)), Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func directChild(prefix, p string) (string, bool) {
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	name := p[len(prefix):]
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
