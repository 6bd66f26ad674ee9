//go:build !windows

package module

func defaultHost() Host { return &FileHost{Dir: "."} }
