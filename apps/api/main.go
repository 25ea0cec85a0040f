package main

import (
	_ "net/http/pprof" // registers the /debug/pprof handlers
)

func main() {
	startWithDig()
}
