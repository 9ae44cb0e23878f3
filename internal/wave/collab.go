package wave

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog/log"
)

// Manifest is what the packaging tools know about an application.
type Manifest struct {
	AppID   string
	Secret  string
	Version string
}

// ManifestReader loads an application manifest. Manifest parsing lives
// outside this module.
type ManifestReader interface {
	Manifest(appDir string) (Manifest, error)
}

// Signer produces a detached signature over files.
type Signer interface {
	Sign(paths ...string) (string, error)
}

// UploadPair maps one local file or directory to its device path.
type UploadPair struct {
	Local  string
	Remote string
	Dir    bool
}

// TreeWalker decides what to upload.
type TreeWalker interface {
	Walk(root string) ([]UploadPair, error)
}

// UploadTree creates every directory pair first, then uploads every file.
func (d *Device) UploadTree(ctx context.Context, pairs []UploadPair) (TransferStats, error) {
	var total TransferStats
	for _, p := range pairs {
		if !p.Dir {
			continue
		}
		if err := d.CreateDirectory(p.Remote); err != nil {
			return total, err
		}
	}
	for _, p := range pairs {
		if p.Dir {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		log.Info().Str("local", p.Local).Str("remote", p.Remote).Msg("put file")
		stats, err := d.UploadFile(ctx, p.Local, p.Remote)
		total.Bytes += stats.Bytes
		total.Chunks += stats.Chunks
		if err != nil {
			return total, fmt.Errorf("wave: upload %s: %w", p.Local, err)
		}
	}
	return total, nil
}

// AppPath joins elements under the application root of appID.
func AppPath(appID string, elem ...string) string {
	return path.Join(append([]string{AppRoot, appID}, elem...)...)
}

// StaleDebugFiles lists crash and memory reports left by earlier runs.
func StaleDebugFiles(appID string) []string {
	return []string{
		AppPath(appID, "Data", "memdebug_report.txt"),
		AppPath(appID, "Data", "Bin", "core"),
		AppPath(appID, "Data", "Bin", "Bin", "stackFrame.txt"),
		AppPath(appID, "Data", "Bin", "Bin", "Bin", "crashinfo.txt"),
		AppPath(appID, "Data", "memdebug.ini"),
		AppPath(appID, "Bin", "stackFrame.txt"),
		AppPath(appID, "Bin", "stackFrame.txtcore"),
		AppPath(appID, "Bin", "stackFrame.txtcorecrashinfo.txt"),
	}
}
