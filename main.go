package main

import (
	"github.com/banbox/banfut/entry"
	_ "github.com/banbox/banfut/strategy"
)

func main() {
	entry.RunCmd()
}
