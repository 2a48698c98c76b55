package main

import "github.com/hearingdesk/speaker-attribution/cmd"

func main() {
	cmd.Execute()
}
