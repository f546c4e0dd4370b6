//go:build !debug

package bridge

import "github.com/zeptools/gw-dbbridge/script"

func traced(_ string, fn script.Func) script.Func {
	return fn
}
