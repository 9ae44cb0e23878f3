package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/protocol/fileop"
	"github.com/danmuck/wavebroker/internal/wave"
)

func runInfo(dev *wave.Device, out io.Writer) error {
	model, err := dev.Model()
	if err != nil {
		return err
	}
	mem, err := dev.UserMemory()
	if err != nil {
		return err
	}
	w, h, err := dev.LCDInfo()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "model:  %s\nmemory: %d bytes\nlcd:    %dx%d\n", model, mem, w, h)
	return nil
}

func runLs(dev *wave.Device, out io.Writer, dirs []string) error {
	for _, dir := range dirs {
		entries, err := dev.List(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Files in %s:\n", dir)
		for _, e := range entries {
			suffix := ""
			if e.IsDir() {
				suffix = "/"
			}
			fmt.Fprintf(out, "%8d %s%s\n", e.Size, e.Name, suffix)
		}
	}
	return nil
}

func runRm(dev *wave.Device, files []string) error {
	for _, f := range files {
		if err := dev.DeleteFile(f); err != nil {
			return err
		}
	}
	return nil
}

func runRmdir(dev *wave.Device, recursive bool, dirs []string) error {
	for _, d := range dirs {
		if err := dev.DeleteDirectory(d, recursive); err != nil {
			return err
		}
	}
	return nil
}

func runMkdir(dev *wave.Device, parents bool, dirs []string) error {
	for _, d := range dirs {
		var err error
		if parents {
			err = dev.MakeDirAll(d)
		} else {
			err = dev.CreateDirectory(d)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runPut(ctx context.Context, dev *wave.Device, out io.Writer, local, remote string) error {
	stats, err := dev.UploadFile(ctx, local, remote)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "put %s -> %s (%d bytes, %d chunks)\n", local, remote, stats.Bytes, stats.Chunks)
	return nil
}

func runGet(dev *wave.Device, out io.Writer, remote, local string) error {
	f, err := os.Create(local)
	if err != nil {
		return err
	}
	stats, err := dev.Download(remote, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "get %s -> %s (%d bytes)\n", remote, local, stats.Bytes)
	return nil
}

// installPlan is everything install needs besides the device.
type installPlan struct {
	AppID  string
	Exe    string
	Root   string
	Walker wave.TreeWalker
}

// runInstall uploads the local tree of an application, installs it and
// launches its executable.
func runInstall(ctx context.Context, dev *wave.Device, out io.Writer, plan installPlan) error {
	pairs, err := plan.Walker.Walk(plan.Root)
	if err != nil {
		return err
	}
	size, err := treeSize(pairs)
	if err != nil {
		return err
	}

	if err := runInfo(dev, out); err != nil {
		return err
	}
	possible, err := dev.InstallCondition(plan.AppID, size)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "installation possible: %t\n", possible)

	reports, err := dev.Terminate(plan.AppID)
	if err != nil {
		return err
	}
	for _, r := range reports {
		log.Debug().Str("app", plan.AppID).Str("report", r.Body).Msg("terminate")
	}

	for _, stale := range wave.StaleDebugFiles(plan.AppID) {
		err := dev.DeleteFile(stale)
		var statusErr *fileop.StatusError
		if errors.As(err, &statusErr) {
			log.Debug().Str("path", stale).Msg("no stale file")
			continue
		}
		if err != nil {
			return err
		}
	}

	if err := dev.MakeDirAll(wave.AppPath(plan.AppID)); err != nil {
		return err
	}
	stats, err := dev.UploadTree(ctx, pairs)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "uploaded %d bytes in %d chunks\n", stats.Bytes, stats.Chunks)

	installed, err := dev.Install(plan.AppID)
	if err != nil {
		return err
	}
	if !installed {
		fmt.Fprintln(out, "Failed to install")
		return fmt.Errorf("install %s refused by device", plan.AppID)
	}
	fmt.Fprintln(out, "Installed")
	return dev.Run(plan.AppID, plan.Exe)
}
