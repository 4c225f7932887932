// pmsquery is the operator CLI for the query understanding service.
package main

import "github.com/shortalex12333/Cloud-PMS-sub001/internal/interfaces/cli"

func main() {
	cli.Execute()
}
