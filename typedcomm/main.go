// Command typedcomm runs the demo programs of the typedcomm library.
package main

import "github.com/sarchlab/typedcomm/typedcomm/cmd"

func main() {
	cmd.Execute()
}
