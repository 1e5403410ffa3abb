// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time:
//
//	go build -ldflags "-X doppler/pkg/build.buildName=doppler \
//	  -X doppler/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	  -X doppler/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X doppler/pkg/build.buildVersion=v0.1.0"
//
// Development builds carry "unknown" for every field.
package build

import (
	"errors"
	"fmt"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name    string `json:"name"`
	Time    string `json:"time"`
	Commit  string `json:"commit"`
	Version string `json:"version"`
}

// String renders Info for the version command.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:    "unknown",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize copies the ldflags variables into the build info. It returns
// an error naming every missing flag and leaves the info untouched in that
// case.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, fmt.Errorf("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, fmt.Errorf("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, fmt.Errorf("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, fmt.Errorf("BuildVersion is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// Get returns a copy of the current build information.
func Get() Info {
	return *buildFlags
}
