package main

import "github.com/architeacher/gpstracker/internal/runtime"

func main() {
	runtime.New().Run()
}
