package domain

// Logger is the minimal logging surface components accept. The stdlib
// *log.Logger satisfies it, as do zerolog-backed adapters.
type Logger interface {
	Printf(format string, v ...interface{})
}
