package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/arc/binary2"
	"github.com/joshuapare/diskkit/arc/gzipsingle"
	"github.com/joshuapare/diskkit/arc/lbr"
	"github.com/joshuapare/diskkit/disk/img"
	"github.com/joshuapare/diskkit/fs"
	"github.com/joshuapare/diskkit/sniff"
)

// container is whatever a path turned out to hold: a disk image (with a
// filesystem volume when one was recognized) or a file archive.
type container struct {
	path string
	kind sniff.Kind

	img *img.Image
	vol *fs.Volume // nil when no filesystem probe matched

	archive *arc.Archive
	stream  *arc.FileStream
}

func identify(path string) (sniff.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return sniff.Result{}, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return sniff.Result{}, err
	}
	return sniff.Identify(f, fi.Size(), path), nil
}

// openContainer identifies path and binds the matching engine. Disk images
// additionally get the structural scan so health state is ready to report.
func openContainer(path string, writable bool) (*container, error) {
	res, err := identify(path)
	if err != nil {
		return nil, err
	}
	c := &container{path: path, kind: res.Kind}

	switch res.Kind {
	case sniff.KindBinary2, sniff.KindLBR, sniff.KindGzip:
		st, err := arc.OpenFileStream(path)
		if err != nil {
			return nil, err
		}
		a, err := arc.New(archiveOps(res.Kind), st, slog.Default())
		if err != nil {
			st.Close()
			return nil, err
		}
		c.stream = st
		c.archive = a
		return c, nil

	case sniff.KindSectorImage, sniff.KindBlockImage, sniff.KindNibble, sniff.KindTwoIMG:
		im, err := img.Open(path, writable)
		if err != nil {
			return nil, err
		}
		c.img = im
		vol, err := fs.Analyze(im.Dev)
		switch {
		case errors.Is(err, fs.ErrUnrecognized):
			slog.Debug("no filesystem recognized", "path", path)
		case err != nil:
			im.Close()
			return nil, err
		default:
			if err := vol.PrepareFileAccess(true); err != nil {
				im.Close()
				return nil, err
			}
			c.vol = vol
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%s: unrecognized container", path)
	}
}

func archiveOps(k sniff.Kind) arc.Ops {
	switch k {
	case sniff.KindBinary2:
		return binary2.NewOps()
	case sniff.KindLBR:
		return lbr.NewOps()
	default:
		return gzipsingle.NewOps()
	}
}

func (c *container) Close() {
	if c.vol != nil {
		c.vol.Close()
	}
	if c.img != nil {
		c.img.Close()
	}
	if c.archive != nil {
		c.archive.Close()
	}
	if c.stream != nil {
		c.stream.Close()
	}
}
