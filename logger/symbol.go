package logger

// Domain glyphs used as a structured field, not embedded in the message.
// Keeps log lines queryable by event kind while leaving the message text
// free of decoration.
const (
	SymbolTick  = "○" // tick-loop pass
	SymbolFire  = "●" // alarm fired / dispatched
	SymbolStore = "▤" // store read/write
	SymbolBus   = "»" // bus publish/subscribe
)

// SymbolInfow logs with any symbol, for dynamic symbol usage.
func SymbolInfow(symbol, msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}
