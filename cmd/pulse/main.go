package main

import (
	"os"

	"horse.fit/pulse/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
