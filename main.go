package main

import (
	"log"
)

var (
	GitCommit string
	GitTag    string
	BuildTime string
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		log.Fatal("bookmate exited: ", err)
	}
}
