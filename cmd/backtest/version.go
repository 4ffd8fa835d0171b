package main

import (
	"fmt"
	"runtime"
)

const (
	ProjectName    = "Buffer Zone Backtest"
	ProjectVersion = "0.3.0"
	ProjectRepo    = "github.com/ducminhle1904/bufferzone-backtest"
)

// Build information, overridden with -ldflags "-X main.BuildCommit=..."
var (
	BuildDate   = "unknown"
	BuildCommit = "dev"
)

// VersionInfo contains version and build information
type VersionInfo struct {
	ProjectName  string `json:"project_name"`
	Version      string `json:"version"`
	BuildDate    string `json:"build_date"`
	BuildCommit  string `json:"build_commit"`
	GoVersion    string `json:"go_version"`
	Architecture string `json:"architecture"`
	Repository   string `json:"repository"`
}

// GetVersionInfo returns complete version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		ProjectName:  ProjectName,
		Version:      ProjectVersion,
		BuildDate:    BuildDate,
		BuildCommit:  BuildCommit,
		GoVersion:    runtime.Version(),
		Architecture: runtime.GOOS + "/" + runtime.GOARCH,
		Repository:   ProjectRepo,
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%s v%s (%s, %s) %s %s", v.ProjectName, v.Version, v.BuildCommit, v.BuildDate, v.GoVersion, v.Architecture)
}
