//go:build alloc_throw

package signal

func raise(err error) {
	if err != nil {
		panic(err)
	}
}
