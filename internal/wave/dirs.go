package wave

import (
	"fmt"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/protocol/fileop"
)

// DirReader yields the entries of one open remote directory. It is finite
// and cannot be restarted; the directory is closed when the end sentinel
// arrives or when Close is called.
type DirReader struct {
	dev    *Device
	remote string
	done   bool
}

// ReadDirectory opens remote for listing.
func (d *Device) ReadDirectory(remote string) (*DirReader, error) {
	res, err := d.FileCommand(fileop.OpDirOpen, fileop.PathBody(remote))
	if err != nil {
		return nil, err
	}
	if res.Status < 0 {
		return nil, statusErr(fileop.OpDirOpen, remote, res)
	}
	if !res.Codes(codeOK, codeDir) {
		d.warn(fileop.Warning{Op: fileop.OpDirOpen, Path: remote, Result: res, Want: wantDir})
	}
	return &DirReader{dev: d, remote: remote}, nil
}

// Next returns the next entry. ok is false once the listing has ended.
func (r *DirReader) Next() (fileop.Entry, bool, error) {
	if r.done {
		return fileop.Entry{}, false, nil
	}
	res, err := r.dev.FileCommand(fileop.OpDirRead, nil)
	if err != nil {
		r.done = true
		return fileop.Entry{}, false, err
	}
	if res.Status < 0 {
		_ = r.Close()
		return fileop.Entry{}, false, statusErr(fileop.OpDirRead, r.remote, res)
	}
	entry, err := fileop.DecodeEntry(res.Rest)
	if err != nil {
		_ = r.Close()
		return fileop.Entry{}, false, fmt.Errorf("wave: read %s: %w", r.remote, err)
	}
	if entry.Type == fileop.EntryEnd {
		return fileop.Entry{}, false, r.Close()
	}
	return entry, true, nil
}

// Close ends the listing early. It is a no-op after the end sentinel.
func (r *DirReader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	res, err := r.dev.FileCommand(fileop.OpDirClose, nil)
	if err != nil {
		return err
	}
	if len(res.Rest) > 0 || res.Status < 0 {
		r.dev.warn(fileop.Warning{Op: fileop.OpDirClose, Path: r.remote, Result: res, Want: "empty reply"})
	}
	return nil
}

// List returns every entry of remote, "." and ".." included.
func (d *Device) List(remote string) ([]fileop.Entry, error) {
	r, err := d.ReadDirectory(remote)
	if err != nil {
		return nil, err
	}
	var out []fileop.Entry
	for {
		e, ok, err := r.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, e)
	}
}

// DeleteDirectory removes remote. When recursive, the listing is read to
// the end first, then subdirectories and files are removed before the
// directory itself, since the device refuses to delete non-empty
// directories.
func (d *Device) DeleteDirectory(remote string, recursive bool) error {
	if recursive {
		entries, err := d.List(remote)
		if err != nil {
			return err
		}
		for _, e := range entries {
			child := path.Join(remote, e.Name)
			switch {
			case e.IsDir() && !e.IsDot():
				if err := d.DeleteDirectory(child, true); err != nil {
					return err
				}
			case e.Type == fileop.EntryFile:
				if err := d.DeleteFile(child); err != nil {
					return err
				}
			}
		}
	}
	res, err := d.FileCommand(fileop.OpDirDelete, fileop.PathBody(remote))
	if err != nil {
		return err
	}
	if res.Status < 0 {
		return statusErr(fileop.OpDirDelete, remote, res)
	}
	if res.Status != 0 || !res.Codes(codeOK, codeDir) {
		d.warn(fileop.Warning{Op: fileop.OpDirDelete, Path: remote, Result: res, Want: "status=0 " + wantDir})
	}
	log.Debug().Str("remote", remote).Bool("recursive", recursive).Msg("directory deleted")
	return nil
}
