// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/scriptvault/scriptvault/cmd/scriptvault"

func main() {
	cmd.Execute()
}
