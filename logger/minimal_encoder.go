package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Color palette for the console encoder — a muted forest-green scheme, easy
// on the eyes for long-running tick-loop output.
const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorTime   = "\x1b[38;5;107m" // mid green
	colorComp   = "\x1b[38;5;208m" // warm orange
	colorFg     = "\x1b[38;5;223m" // soft beige
	colorID     = "\x1b[38;5;109m" // blue-green
	colorNumber = "\x1b[38;5;175m" // muted purple
	warnFg      = "\x1b[38;5;179m"
	warnBg      = "\x1b[48;5;58m"
	errFg       = "\x1b[38;5;167m"
	errBg       = "\x1b[48;5;52m"
)

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  controller  alarm fired  alarm-42"
type minimalEncoder struct {
	zapcore.Encoder // embedded for field serialization fallback
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	final.AppendString(colorTime)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorComp)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(colorFg)
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(extractFieldValues(fields))
	}

	final.AppendString("\n")
	return final, nil
}

func levelColorString(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + warnBg + warnFg + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + errBg + errFg + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + errBg + errFg + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens dotted component names: scheduler.tick -> s.tick
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

func getFieldValue(field zapcore.Field) string {
	if field.Type == zapcore.StringType {
		return field.String
	}
	switch field.Type {
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// extractFieldValues pulls a handful of high-signal values out of the
// structured fields for compact console display; everything else is still
// captured in the JSON-mode encoder used for production output.
func extractFieldValues(fields []zapcore.Field) string {
	var values []string
	for _, field := range fields {
		switch field.Key {
		case "code_id", "alarm_id", "occurrence_local_date":
			if v := getFieldValue(field); v != "" {
				values = append(values, colorID+v+colorReset)
			}
		case "due_count", "tick", "duration_ms":
			if v := getFieldValue(field); v != "" {
				values = append(values, colorNumber+v+colorReset)
			}
		}
	}
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, " ")
}
