package sftp

import (
	"os"
	"time"

	"github.com/postalsys/gossh/wireutil"
)

// Attribute presence flags (SSH_FILEXFER_ATTR_*, v3 wire values).
const (
	attrSize        = 0x00000001
	attrUIDGID      = 0x00000002
	attrPermissions = 0x00000004
	attrACModTime   = 0x00000008
	attrExtended    = 0x80000000
)

// Attributes mirrors the SFTP ATTRS structure (draft-ietf-secsh-filexfer
// §5): a sparse, flag-gated set of stat fields rather than a fixed struct,
// since SSH_FXP_SETSTAT/FSETSTAT only transmit the fields the caller wants
// changed.
type Attributes struct {
	HasSize        bool
	Size           uint64
	HasUIDGID      bool
	UID, GID       uint32
	HasPermissions bool
	Permissions    uint32
	HasTimes       bool
	ATime, MTime   time.Time
	Extended       map[string]string
}

func decodeAttrs(buf *wireutil.Buffer) (Attributes, error) {
	var a Attributes
	flags, err := buf.ReadUint32()
	if err != nil {
		return a, err
	}
	if flags&attrSize != 0 {
		a.HasSize = true
		if a.Size, err = buf.ReadUint64(); err != nil {
			return a, err
		}
	}
	if flags&attrUIDGID != 0 {
		a.HasUIDGID = true
		if a.UID, err = buf.ReadUint32(); err != nil {
			return a, err
		}
		if a.GID, err = buf.ReadUint32(); err != nil {
			return a, err
		}
	}
	if flags&attrPermissions != 0 {
		a.HasPermissions = true
		if a.Permissions, err = buf.ReadUint32(); err != nil {
			return a, err
		}
	}
	if flags&attrACModTime != 0 {
		a.HasTimes = true
		atime, err := buf.ReadUint32()
		if err != nil {
			return a, err
		}
		mtime, err := buf.ReadUint32()
		if err != nil {
			return a, err
		}
		a.ATime = time.Unix(int64(atime), 0)
		a.MTime = time.Unix(int64(mtime), 0)
	}
	if flags&attrExtended != 0 {
		count, err := buf.ReadUint32()
		if err != nil {
			return a, err
		}
		a.Extended = make(map[string]string, count)
		for i := uint32(0); i < count; i++ {
			k, err := buf.ReadString()
			if err != nil {
				return a, err
			}
			v, err := buf.ReadString()
			if err != nil {
				return a, err
			}
			a.Extended[string(k)] = string(v)
		}
	}
	return a, nil
}

func encodeAttrs(b *wireutil.Builder, a Attributes) {
	var flags uint32
	if a.HasSize {
		flags |= attrSize
	}
	if a.HasUIDGID {
		flags |= attrUIDGID
	}
	if a.HasPermissions {
		flags |= attrPermissions
	}
	if a.HasTimes {
		flags |= attrACModTime
	}
	b.WriteUint32(flags)
	if a.HasSize {
		b.WriteUint64(a.Size)
	}
	if a.HasUIDGID {
		b.WriteUint32(a.UID).WriteUint32(a.GID)
	}
	if a.HasPermissions {
		b.WriteUint32(a.Permissions)
	}
	if a.HasTimes {
		b.WriteUint32(uint32(a.ATime.Unix())).WriteUint32(uint32(a.MTime.Unix()))
	}
}

// FileMode translates the POSIX permission bits into an os.FileMode,
// folding in the type bits SFTP's "permissions" field also carries
// (S_IFDIR/S_IFLNK and friends, per the st_mode convention draft-ietf-
// secsh-filexfer borrows from POSIX stat(2)).
func (a Attributes) FileMode() os.FileMode {
	if !a.HasPermissions {
		return 0
	}
	perm := os.FileMode(a.Permissions & 0777)
	switch a.Permissions & 0170000 {
	case 0040000:
		perm |= os.ModeDir
	case 0120000:
		perm |= os.ModeSymlink
	case 0020000:
		perm |= os.ModeCharDevice | os.ModeDevice
	case 0060000:
		perm |= os.ModeDevice
	case 0010000:
		perm |= os.ModeNamedPipe
	case 0140000:
		perm |= os.ModeSocket
	}
	return perm
}

// IsDir reports whether the attributes describe a directory.
func (a Attributes) IsDir() bool {
	return a.HasPermissions && a.Permissions&0170000 == 0040000
}
