// Command snowpit retrieves, inspects, and searches SnowPilot snow pit
// observations.
package main

func main() {
	Execute()
}
