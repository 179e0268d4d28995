package crypto

import "runtime"

// Zero overwrites b so key material does not linger after use.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	clear(b)
	runtime.KeepAlive(b)
}
