package domain

import "fmt"

type BuildInfo struct {
	Version string
	Commit  string
}

func (self BuildInfo) String() string {
	return fmt.Sprintf("%s (%s)", self.Version, self.Commit)
}

var Build BuildInfo
