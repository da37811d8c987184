// Command resolvectl resolves asset mentions from the terminal using the same pipeline
// as the HTTP service.
package main

import "os"

func main() {
	os.Exit(newCLI(os.Stdout, os.Stderr).run(os.Args[1:]))
}
