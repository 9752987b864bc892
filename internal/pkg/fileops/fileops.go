package fileops

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/dariaos/ota-backend/internal/pkg/bufpool"

	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrTargetExists reports a refused overwrite.
var ErrTargetExists = errors.New("target file already exists")

// minFreeRatio is the free-space floor kept after an upload commits.
const minFreeRatio = 0.05

func CopyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(source)

	dest, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, os.ModePerm)
	if err != nil {
		return err
	}
	defer func(destFile *os.File) {
		if err := destFile.Close(); err != nil {
			zap.L().Error("Failed to close file",
				zap.String("file", destFile.Name()),
				zap.Error(err),
			)
		}
	}(dest)

	buf := bufpool.GetBuffer()
	defer bufpool.PutBuffer(buf)
	_, err = io.CopyBuffer(dest, source, *buf)
	return err
}

// MoveNoReplace moves src to dst, refusing to overwrite an existing dst.
// Rename is attempted first; a cross-device move falls back to copy+remove.
func MoveNoReplace(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return ErrTargetExists
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", dst)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !errors.Is(err, unix.EXDEV) {
		return errors.Wrapf(err, "rename %s to %s", src, dst)
	}

	if err := CopyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return errors.Wrapf(err, "copy %s to %s", src, dst)
	}
	return os.Remove(src)
}

// StreamInfo summarizes a completed transfer for truncation detection.
type StreamInfo struct {
	Size   int64
	MD5    string
	SHA256 string
}

// SaveStream writes r to path, accounting size, md5 and sha256 along the
// way. The md5 feeds the v1 payload checksum, the sha256 the file record.
func SaveStream(r io.Reader, path string) (*StreamInfo, error) {
	dest, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.ModePerm)
	if err != nil {
		return nil, err
	}

	var (
		md5Hash    = md5.New()
		sha256Hash = sha256.New()
	)
	buf := bufpool.GetBuffer()
	defer bufpool.PutBuffer(buf)

	size, err := io.CopyBuffer(io.MultiWriter(dest, md5Hash, sha256Hash), r, *buf)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &StreamInfo{
		Size:   size,
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
	}, nil
}

// CheckHeadroom reports whether writing requiredBytes below dir would drop
// free space under 5% of the volume's capacity. An unknown capacity is not
// treated as a failure.
func CheckHeadroom(dir string, requiredBytes int64) (ok bool, remaining int64, err error) {
	if requiredBytes <= 0 {
		return true, 0, nil
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return false, 0, errors.Wrapf(err, "statfs %s", dir)
	}
	var (
		total     = int64(stat.Blocks) * stat.Bsize
		available = int64(stat.Bavail) * stat.Bsize
	)
	if total == 0 {
		return true, 0, nil
	}
	projected := available - requiredBytes
	if float64(projected) < float64(total)*minFreeRatio {
		return false, projected, nil
	}
	return true, projected, nil
}
