// SPDX-License-Identifier: MPL-2.0

package main

import cmd "secup/cmd/secup"

func main() {
	cmd.Execute()
}
