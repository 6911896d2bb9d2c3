package logging

import (
	"log/slog"
	"time"
)

// Common field names so every component logs the same keys.
const (
	FieldService    = "service"
	FieldIdentityID = "identity_id"
	FieldAddress    = "address"
	FieldIP         = "ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldCode       = "code"
	FieldFlow       = "flow"
	FieldTokenID    = "token_id"
	FieldEventID    = "event_id"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func IdentityID(id string) slog.Attr {
	return slog.String(FieldIdentityID, id)
}

func Address(addr string) slog.Attr {
	return slog.String(FieldAddress, addr)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration reports d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for err. A nil error logs as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func Code(code string) slog.Attr {
	return slog.String(FieldCode, code)
}

func Flow(name string) slog.Attr {
	return slog.String(FieldFlow, name)
}

func TokenID(id string) slog.Attr {
	return slog.String(FieldTokenID, id)
}

func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}
