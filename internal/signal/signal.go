// Package signal implements the engine-local failure signal described in
// spec section 6 ("ENABLE_THROW"). Built with -tags alloc_throw, every
// malloc/free failure additionally panics with the triggering error;
// otherwise Raise is a no-op and callers observe only the nil/false return
// that every engine already produces on failure.
package signal

// Raise signals a failure. With -tags alloc_throw it panics with err; the
// default build ignores it. Either way the caller that triggered the
// failure still returns its normal nil/false result.
func Raise(err error) {
	raise(err)
}
