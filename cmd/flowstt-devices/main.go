// Command flowstt-devices lists the audio input devices visible to the
// reference (portaudio) backend, for diagnosing capture issues without a
// live OS-specific native stack.
package main

import (
	"fmt"
	"os"

	"github.com/gordonklaus/portaudio"

	"github.com/jeff-barlow-spady/ramble/pkg/audio"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "initialize portaudio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	backend := audio.NewReferenceBackend()
	devices, err := backend.ListInputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list input devices: %v\n", err)
		os.Exit(1)
	}

	if len(devices) == 0 {
		fmt.Println("no input devices found")
		return
	}

	fmt.Println("input devices:")
	for _, d := range devices {
		fmt.Printf("  [%s] %s\n", d.ID, d.Name)
	}
}
