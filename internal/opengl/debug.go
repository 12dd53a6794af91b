package opengl

import (
	"unsafe"

	gl43 "github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"
)

// EnableDebugOutput routes KHR_debug messages to the logger. Contexts
// without the extension or without 4.3 entry points are left untouched.
func EnableDebugOutput(logger *zap.Logger) bool {
	if logger == nil {
		return false
	}
	if err := gl43.Init(); err != nil {
		logger.Info("debug output unavailable", zap.Error(err))
		return false
	}
	if !hasExtension("GL_KHR_debug") {
		logger.Info("debug output unavailable", zap.String("missing", "GL_KHR_debug"))
		return false
	}
	gl43.Enable(gl43.DEBUG_OUTPUT)
	gl43.Enable(gl43.DEBUG_OUTPUT_SYNCHRONOUS)
	gl43.DebugMessageCallback(func(source, gltype, id, severity uint32, length int32, message string, userParam unsafe.Pointer) {
		fields := []zap.Field{
			zap.Uint32("id", id),
			zap.Uint32("source", source),
			zap.Uint32("type", gltype),
		}
		switch severity {
		case gl43.DEBUG_SEVERITY_HIGH:
			logger.Error(message, fields...)
		case gl43.DEBUG_SEVERITY_MEDIUM:
			logger.Warn(message, fields...)
		case gl43.DEBUG_SEVERITY_NOTIFICATION:
			// driver chatter
		default:
			logger.Debug(message, fields...)
		}
	}, nil)
	return true
}

func hasExtension(name string) bool {
	var n int32
	gl43.GetIntegerv(gl43.NUM_EXTENSIONS, &n)
	for i := int32(0); i < n; i++ {
		if gl43.GoStr(gl43.GetStringi(gl43.EXTENSIONS, uint32(i))) == name {
			return true
		}
	}
	return false
}
