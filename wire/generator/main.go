package main

import (
	"github.com/outofforest/proton"
	"github.com/outofforest/videocall/wire"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message[wire.Hello](),
		proton.Message[wire.PacketWrapper](),
		proton.Message[wire.MediaManagementPacket](),
		proton.Message[wire.MediaPacket](),
	)
}
