package workflow

import (
	"fmt"
	"time"
)

// Version identifies one saved revision of a submission.
type Version struct {
	Major int
	Minor int
	Label string
}

// VersionLabel renders YYYYMMDD_V{major}.{minor} for the UTC date of at.
func VersionLabel(at time.Time, major, minor int) string {
	return fmt.Sprintf("%s_V%d.%d", at.UTC().Format("20060102"), major, minor)
}

// InitialVersion is the version a new submission starts at.
func InitialVersion(now time.Time) Version {
	return Version{Major: 1, Minor: 0, Label: VersionLabel(now, 1, 0)}
}

// NextVersion bumps the minor number. Rows saved before versioning existed
// carry no numbers and are treated as 0.0.
func NextVersion(major, minor *int, now time.Time) Version {
	maj, min := 0, 0
	if major != nil {
		maj = *major
	}
	if minor != nil {
		min = *minor
	}
	min++
	return Version{Major: maj, Minor: min, Label: VersionLabel(now, maj, min)}
}
