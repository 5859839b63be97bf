package logger

type nopLogger struct{}

var _ Logger = nopLogger{}

// Nop returns a Logger that discards everything. A link created with
// debug output disabled logs through it.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Fatal(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }
func (nopLogger) Level() Level { return FatalLevel }
func (nopLogger) SetLevel(Level) {}
