//go:build !linux && !darwin && !windows

package project

import (
	"io/fs"
	"time"
)

func birthTime(_ string, info fs.FileInfo) time.Time {
	return info.ModTime()
}
