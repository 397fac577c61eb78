// Command gardenctl builds, inspects and renders processing graphs from
// patch files, and serves a running graph for introspection.
package main

func main() {
	Execute()
}
