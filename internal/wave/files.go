package wave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/observability"
	"github.com/danmuck/wavebroker/internal/protocol/channel"
	"github.com/danmuck/wavebroker/internal/protocol/fileop"
)

const (
	codeOK      uint16 = 3
	codeFile    uint16 = 6
	codeDir     uint16 = 13
	wantCode1          = "code1=3"
	wantFile           = "codes=(3,6)"
	wantDir            = "codes=(3,13)"
	wantDeleted        = "status=0 codes=(3,6)"
)

// TransferStats summarizes an upload or download.
type TransferStats struct {
	Bytes  int64
	Chunks int
}

// FileCommand sends one file protocol request and waits for its reply on
// the raw channel.
func (d *Device) FileCommand(op fileop.Opcode, body []byte) (fileop.Result, error) {
	start := time.Now()
	res, err := d.fileCommand(op, body)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.Status < 0:
		outcome = "status"
	}
	observability.RecordFileOp(op.String(), outcome, time.Since(start))
	return res, err
}

func (d *Device) fileCommand(op fileop.Opcode, body []byte) (fileop.Result, error) {
	if err := d.send(fileop.Request(op, body)); err != nil {
		return fileop.Result{}, err
	}
	m, err := d.demux.Receive(channel.Raw, d.opts.FileTimeout)
	if err != nil {
		return fileop.Result{}, fmt.Errorf("wave: file %s: %w", op, err)
	}
	return fileop.DecodeResponse(op, m.Frame)
}

func statusErr(op fileop.Opcode, remote string, res fileop.Result) error {
	return &fileop.StatusError{Op: op, Path: remote, Result: res}
}

// UploadFile copies localPath to remote.
func (d *Device) UploadFile(ctx context.Context, localPath, remote string) (TransferStats, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return TransferStats{}, fmt.Errorf("wave: upload %s: %w", localPath, err)
	}
	defer f.Close()
	return d.Upload(ctx, f, remote)
}

// Upload streams r to remote in ChunkSize writes. The first negative write
// status aborts the upload. Cancellation is observed between chunks.
func (d *Device) Upload(ctx context.Context, r io.Reader, remote string) (TransferStats, error) {
	var stats TransferStats
	res, err := d.FileCommand(fileop.OpOpen, fileop.OpenWriteBody(remote))
	if err != nil {
		return stats, err
	}
	if res.Status < 0 {
		return stats, statusErr(fileop.OpOpen, remote, res)
	}
	if res.Code1 != codeOK {
		d.warn(fileop.Warning{Op: fileop.OpOpen, Path: remote, Result: res, Want: wantCode1})
	}

	buf := make([]byte, d.opts.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			res, err := d.FileCommand(fileop.OpWrite, buf[:n])
			if err != nil {
				return stats, err
			}
			if res.Status < 0 {
				return stats, statusErr(fileop.OpWrite, remote, res)
			}
			if res.Code1 != codeOK {
				d.warn(fileop.Warning{Op: fileop.OpWrite, Path: remote, Result: res, Want: wantCode1})
			}
			stats.Bytes += int64(n)
			stats.Chunks++
			observability.RecordTransfer("upload", n)
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return stats, fmt.Errorf("wave: upload %s: %w", remote, readErr)
		}
	}

	res, err = d.FileCommand(fileop.OpClose, nil)
	if err != nil {
		return stats, err
	}
	if res.Status < 0 || res.Code1 != codeOK {
		d.warn(fileop.Warning{Op: fileop.OpClose, Path: remote, Result: res, Want: wantCode1})
	}
	log.Debug().Str("remote", remote).Int64("bytes", stats.Bytes).Int("chunks", stats.Chunks).Msg("upload complete")
	return stats, nil
}

// Download copies remote into w. Reads repeat until the device returns an
// empty chunk.
func (d *Device) Download(remote string, w io.Writer) (TransferStats, error) {
	var stats TransferStats
	res, err := d.FileCommand(fileop.OpOpen, fileop.PathBody(remote))
	if err != nil {
		return stats, err
	}
	if res.Status != 0 {
		return stats, statusErr(fileop.OpOpen, remote, res)
	}
	if !res.Codes(codeOK, codeFile) {
		d.warn(fileop.Warning{Op: fileop.OpOpen, Path: remote, Result: res, Want: wantFile})
	}

	var readErr error
	for {
		res, err := d.FileCommand(fileop.OpRead, nil)
		if err != nil {
			return stats, err
		}
		if res.Status < 0 {
			readErr = statusErr(fileop.OpRead, remote, res)
			break
		}
		if len(res.Rest) == 0 {
			break
		}
		if _, err := w.Write(res.Rest); err != nil {
			readErr = fmt.Errorf("wave: download %s: %w", remote, err)
			break
		}
		stats.Bytes += int64(len(res.Rest))
		stats.Chunks++
		observability.RecordTransfer("download", len(res.Rest))
	}

	res, err = d.FileCommand(fileop.OpClose, nil)
	if err != nil {
		return stats, errors.Join(readErr, err)
	}
	if res.Status < 0 || res.Code1 != codeOK {
		d.warn(fileop.Warning{Op: fileop.OpClose, Path: remote, Result: res, Want: wantCode1})
	}
	return stats, readErr
}

// DeleteFile removes remote.
func (d *Device) DeleteFile(remote string) error {
	res, err := d.FileCommand(fileop.OpDelete, fileop.PathBody(remote))
	if err != nil {
		return err
	}
	if res.Status < 0 {
		return statusErr(fileop.OpDelete, remote, res)
	}
	if res.Status != 0 || !res.Codes(codeOK, codeFile) {
		d.warn(fileop.Warning{Op: fileop.OpDelete, Path: remote, Result: res, Want: wantDeleted})
	}
	return nil
}

// CreateDirectory creates remote. Existing directories are reported by the
// device through the code pair only.
func (d *Device) CreateDirectory(remote string) error {
	res, err := d.FileCommand(fileop.OpDirCreate, fileop.PathBody(remote))
	if err != nil {
		return err
	}
	if res.Status < 0 {
		return statusErr(fileop.OpDirCreate, remote, res)
	}
	if !res.Codes(codeOK, codeFile) {
		d.warn(fileop.Warning{Op: fileop.OpDirCreate, Path: remote, Result: res, Want: wantFile})
	}
	return nil
}

// MakeDirAll creates remote and every missing parent, shallowest first.
func (d *Device) MakeDirAll(remote string) error {
	clean := path.Clean("/" + strings.TrimSpace(remote))
	if clean == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	cur := ""
	for _, p := range parts {
		cur += "/" + p
		if err := d.CreateDirectory(cur); err != nil {
			return err
		}
	}
	return nil
}
