package main

import "github.com/Penitant/app-voice-recorder/cmd"

func main() {
	cmd.Execute()
}
