package main

import (
	// Filesystem probes register themselves.
	_ "github.com/joshuapare/diskkit/fs/dos3"
	_ "github.com/joshuapare/diskkit/fs/pascal"
)

func main() {
	execute()
}
