package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediabridge/replaykit/mjr"
)

var infoCmd = &cobra.Command{
	Use:   "info <container>",
	Short: "Show a container's header and index summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := mjr.ReadInfo(path)
	if err != nil {
		return err
	}

	media := "audio"
	clockKHz := uint64(48)
	if info.Video() {
		media = "video"
		clockKHz = 90
	}
	fmt.Printf("Media type: %s\n", media)
	fmt.Printf("Codec:      %s\n", info.Codec)
	if info.Created > 0 {
		fmt.Printf("Created:    %s\n", time.UnixMicro(info.Created).UTC().Format(time.RFC3339))
	}
	if info.FirstWrite > 0 {
		fmt.Printf("First write: %s\n", time.UnixMicro(info.FirstWrite).UTC().Format(time.RFC3339))
	}

	list, err := mjr.Build(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return err
	}
	fmt.Printf("Frames:     %d\n", list.Len())
	if list.Len() > 1 {
		ticks := list.At(list.Len()-1).Timestamp - list.At(0).Timestamp
		fmt.Printf("Duration:   %s\n", time.Duration(ticks/clockKHz)*time.Millisecond)
	}
	return nil
}
