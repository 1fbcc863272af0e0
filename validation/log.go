package validation

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/davecgh/go-spew/spew"
)

// log is a logger that is initialized with no output filters. This means
// the package will not perform any logging by default until the caller
// requests it.
var log = btclog.Disabled

// DisableLog disables all library log output. Logging output is disabled
// by default until UseLogger is called.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// logClosure is used to defer expensive log formatting until the logging
// level actually requires it.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}

// spewStatus dumps the full per-node outcome of a run for trace logs.
func spewStatus(s *Status) string {
	return spew.Sdump(s.states)
}
