// Package media hands out credentials for the audio/video backend used by
// proximity calls and screen sharing.
package media

import (
	"context"
	"fmt"
)

// JoinInfo contains what a client needs to connect to a media room.
type JoinInfo struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

// Engine abstracts the media backend.
type Engine interface {
	// GenerateJoinInfo creates join credentials for one participant.
	GenerateJoinInfo(ctx context.Context, roomName, identity, displayName string) (*JoinInfo, error)
}

// RoomName is the media room shared by everyone in an office room.
func RoomName(officeRoomID string) string {
	return "skyoffice-" + officeRoomID
}

// ComputerRoomName is the media room used for screen sharing at a computer.
func ComputerRoomName(officeRoomID, computerID string) string {
	return fmt.Sprintf("skyoffice-%s-computer-%s", officeRoomID, computerID)
}
